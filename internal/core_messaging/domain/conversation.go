package domain

import (
	"time"

	"github.com/google/uuid"
)

// MessageDirection tells which side authored a conversation record.
type MessageDirection string

const (
	DirectionOperator MessageDirection = "operator"
	DirectionContact  MessageDirection = "contact"
)

// Conversation is a single message record between a line and a contact.
// Compliance, reputation and routing all derive their views from these
// records.
type Conversation struct {
	ID           uuid.UUID        `json:"id"`
	LineID       uuid.UUID        `json:"line_id"`
	ContactPhone string           `json:"contact_phone"`
	OperatorID   uuid.NullUUID    `json:"operator_id,omitempty"`
	Direction    MessageDirection `json:"direction"`
	Body         string           `json:"body"`
	TemplateName *string          `json:"template_name,omitempty"`
	// Tabulated marks a closed conversation; open (untabulated) records
	// drive least-loaded routing.
	Tabulated bool      `json:"tabulated"`
	CreatedAt time.Time `json:"created_at"`
}

// Template is a pre-approved outbound message body with {{n}} slots.
type Template struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Language  string    `json:"language"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}
