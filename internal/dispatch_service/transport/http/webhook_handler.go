package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"

	inbound "github.com/zapdesk/golang_services/internal/inbound_processor_service/domain"
)

// EventPublisher forwards normalized gateway events to NATS. Satisfied
// by messagebroker.NatsClient.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// WebhookHandler is the inbound boundary: it normalizes raw gateway
// payloads and hands them to the consumer service over NATS. Partial
// or unknown payloads are acknowledged and dropped so the gateway
// never retries noise.
type WebhookHandler struct {
	publisher EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewWebhookHandler(publisher EventPublisher, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		publisher: publisher,
		logger:    logger.With("handler", "gateway_webhook"),
		now:       time.Now,
	}
}

func (h *WebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/webhooks/gateway", h.handleWebhook)
}

func (h *WebhookHandler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	var payload inbound.WebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		logger.WarnContext(ctx, "Malformed webhook body", "error", err)
		writeJSON(w, http.StatusBadRequest, GenericErrorResponse{Error: "Invalid webhook payload"})
		return
	}

	event, ignoreReason := inbound.Normalize(payload, h.now())
	if ignoreReason != "" {
		logger.DebugContext(ctx, "Webhook payload ignored", "event", payload.Event, "reason", ignoreReason)
		writeJSON(w, http.StatusAccepted, WebhookOutcomeResponse{Outcome: "ignored", Reason: ignoreReason})
		return
	}

	subject := inbound.SubjectMessageEvents
	var body any = event.Message
	if event.Connection != nil {
		subject = inbound.SubjectConnectionEvents
		body = event.Connection
	}

	data, err := json.Marshal(body)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to marshal normalized event", "error", err, "subject", subject)
		writeJSON(w, http.StatusInternalServerError, GenericErrorResponse{Error: "Failed to process event"})
		return
	}
	if err := h.publisher.Publish(ctx, subject, data); err != nil {
		logger.ErrorContext(ctx, "Failed to publish gateway event", "error", err, "subject", subject)
		writeJSON(w, http.StatusInternalServerError, GenericErrorResponse{Error: "Failed to queue event"})
		return
	}

	logger.InfoContext(ctx, "Gateway event queued", "subject", subject, "instance", payload.Instance)
	writeJSON(w, http.StatusAccepted, WebhookOutcomeResponse{Outcome: "queued"})
}
