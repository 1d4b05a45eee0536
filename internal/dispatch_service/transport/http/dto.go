package http

import (
	"github.com/google/uuid"

	"github.com/zapdesk/golang_services/internal/dispatch_service/app"
)

// MessageDTO is one outbound message in a send or bulk request.
type MessageDTO struct {
	Phone          string   `json:"phone" validate:"required"`
	SpecialistCode string   `json:"specialist_code" validate:"required"`
	TemplateID     string   `json:"template_id,omitempty" validate:"omitempty,uuid"`
	Text           string   `json:"text,omitempty"`
	Variables      []string `json:"variables,omitempty"`
}

// BulkSendRequest DTO for POST /messages/bulk.
type BulkSendRequest struct {
	Tag      string       `json:"tag" validate:"required"`
	Messages []MessageDTO `json:"messages" validate:"required,min=1,dive"`
}

// GenericErrorResponse wraps error messages for JSON responses.
type GenericErrorResponse struct {
	Error string `json:"error"`
}

// WebhookOutcomeResponse reports how an inbound webhook payload was
// handled.
type WebhookOutcomeResponse struct {
	Outcome string `json:"outcome"`
	Reason  string `json:"reason,omitempty"`
}

func (d MessageDTO) toMessageRequest() (app.MessageRequest, error) {
	req := app.MessageRequest{
		Phone:          d.Phone,
		SpecialistCode: d.SpecialistCode,
		Text:           d.Text,
		Variables:      d.Variables,
	}
	if d.TemplateID != "" {
		templateID, err := uuid.Parse(d.TemplateID)
		if err != nil {
			return app.MessageRequest{}, err
		}
		req.TemplateID = uuid.NullUUID{UUID: templateID, Valid: true}
	}
	return req, nil
}
