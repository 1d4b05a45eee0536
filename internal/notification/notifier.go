package notification

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/zapdesk/golang_services/internal/platform/messagebroker"
)

// NATS subjects for cross-service events and queues.
const (
	SubjectNewMessage        = "notifications.message.new"
	SubjectLineAssigned      = "notifications.line.assigned"
	SubjectLineBanned        = "notifications.line.banned"
	SubjectReallocationQueue = "lines.reallocation.queue"
	SubjectPendingInbound    = "inbound.pending"
)

// NewMessageEvent announces a routed inbound message.
type NewMessageEvent struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	LineID         uuid.UUID `json:"line_id"`
	ContactPhone   string    `json:"contact_phone"`
	OperatorID     uuid.UUID `json:"operator_id"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// LineAssignedEvent announces a new line-operator binding.
type LineAssignedEvent struct {
	LineID     uuid.UUID `json:"line_id"`
	OperatorID uuid.UUID `json:"operator_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// LineBannedEvent announces a recorded (not yet confirmed) ban or
// disconnect report for a line.
type LineBannedEvent struct {
	LineID         uuid.UUID `json:"line_id"`
	ReportedStatus string    `json:"reported_status"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// ReallocationRequest asks for an operator to be re-bound to a line.
type ReallocationRequest struct {
	OperatorID uuid.UUID `json:"operator_id"`
	SegmentID  string    `json:"segment_id,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// PendingInboundMessage is an inbound message with nobody online to
// take it; consumers deliver it later.
type PendingInboundMessage struct {
	LineID       uuid.UUID `json:"line_id"`
	ContactPhone string    `json:"contact_phone"`
	Body         string    `json:"body"`
	ReceivedAt   time.Time `json:"received_at"`
}

// Notifier publishes best-effort events to NATS. Publish failures are
// logged and swallowed: delivery is not guaranteed and must never fail
// the primary path.
type Notifier struct {
	nats   *messagebroker.NatsClient
	logger *slog.Logger
}

func NewNotifier(nats *messagebroker.NatsClient, logger *slog.Logger) *Notifier {
	return &Notifier{nats: nats, logger: logger.With("component", "notifier")}
}

func (n *Notifier) NewMessage(ctx context.Context, event NewMessageEvent) {
	n.publish(ctx, SubjectNewMessage, event)
}

func (n *Notifier) LineAssigned(ctx context.Context, event LineAssignedEvent) {
	n.publish(ctx, SubjectLineAssigned, event)
}

func (n *Notifier) LineBanned(ctx context.Context, event LineBannedEvent) {
	n.publish(ctx, SubjectLineBanned, event)
}

// EnqueueReallocation places an unlinked operator on the reallocation
// queue. Unlike notifications, queue placement errors are returned so
// callers can log how many operators were actually enqueued.
func (n *Notifier) EnqueueReallocation(ctx context.Context, req ReallocationRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return n.nats.Publish(ctx, SubjectReallocationQueue, payload)
}

// EnqueuePendingInbound queues an inbound message for later delivery.
func (n *Notifier) EnqueuePendingInbound(ctx context.Context, msg PendingInboundMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return n.nats.Publish(ctx, SubjectPendingInbound, payload)
}

func (n *Notifier) publish(ctx context.Context, subject string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		n.logger.ErrorContext(ctx, "Failed to marshal notification", "subject", subject, "error", err)
		return
	}
	if err := n.nats.Publish(ctx, subject, payload); err != nil {
		n.logger.WarnContext(ctx, "Failed to publish notification (best-effort, dropped)",
			"subject", subject, "error", err)
	}
}
