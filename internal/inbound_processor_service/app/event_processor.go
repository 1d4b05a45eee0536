package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	convapp "github.com/zapdesk/golang_services/internal/conversation_service/app"
	convrepo "github.com/zapdesk/golang_services/internal/conversation_service/repository"
	coredomain "github.com/zapdesk/golang_services/internal/core_messaging/domain"
	"github.com/zapdesk/golang_services/internal/inbound_processor_service/domain"
	"github.com/zapdesk/golang_services/internal/inbound_processor_service/repository"
	"github.com/zapdesk/golang_services/internal/notification"
)

// Outcome is the typed result of handling one gateway event. Handlers
// never panic or propagate per-event failures to the consumer loop.
type Outcome string

const (
	OutcomeIgnored   Outcome = "ignored"
	OutcomeQueued    Outcome = "queued"
	OutcomeProcessed Outcome = "processed"
	OutcomeError     Outcome = "error"
)

// InboundRouter decides which operator takes an inbound message.
type InboundRouter interface {
	RouteInbound(ctx context.Context, contactPhone string, lineID uuid.UUID) (convapp.RouteResult, error)
}

// LineResolver maps a gateway instance to its line record.
type LineResolver interface {
	GetByGatewayInstance(ctx context.Context, instance string) (*coredomain.Line, error)
}

// GroupNameFetcher resolves group display names from the gateway.
type GroupNameFetcher interface {
	FetchGroupName(ctx context.Context, instance, groupID string) (string, error)
}

// EventNotifier publishes the processor's downstream events. Satisfied
// by notification.Notifier.
type EventNotifier interface {
	NewMessage(ctx context.Context, event notification.NewMessageEvent)
	LineBanned(ctx context.Context, event notification.LineBannedEvent)
	EnqueuePendingInbound(ctx context.Context, msg notification.PendingInboundMessage) error
}

// EventProcessor turns normalized gateway events into routed
// conversations and line-state proposals. Connection reports are
// advisory: the processor records them but never flips a line's status
// itself.
type EventProcessor struct {
	lines    LineResolver
	router   InboundRouter
	convRepo convrepo.ConversationRepository
	contacts convrepo.ContactRepository
	reports  repository.LineStateReportRepository
	groups   GroupNameFetcher
	notifier EventNotifier
	logger   *slog.Logger
	now      func() time.Time
}

func NewEventProcessor(
	lines LineResolver,
	router InboundRouter,
	conversations convrepo.ConversationRepository,
	contacts convrepo.ContactRepository,
	reports repository.LineStateReportRepository,
	groups GroupNameFetcher,
	notifier EventNotifier,
	logger *slog.Logger,
) *EventProcessor {
	return &EventProcessor{
		lines:    lines,
		router:   router,
		convRepo: conversations,
		contacts: contacts,
		reports:  reports,
		groups:   groups,
		notifier: notifier,
		logger:   logger.With("component", "inbound_event_processor"),
		now:      time.Now,
	}
}

// HandleMessage routes one inbound message and persists it. When
// nobody is online to take it, the message goes to the pending queue
// instead of being dropped.
func (p *EventProcessor) HandleMessage(ctx context.Context, event domain.MessageEvent) Outcome {
	line, err := p.lines.GetByGatewayInstance(ctx, event.Instance)
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to resolve line for inbound message", "error", err, "instance", event.Instance)
		return p.countMessage(OutcomeError)
	}
	if line == nil {
		p.logger.WarnContext(ctx, "Inbound message for unknown gateway instance", "instance", event.Instance)
		return p.countMessage(OutcomeIgnored)
	}

	contactName := ""
	if event.GroupID != "" {
		name, err := p.groups.FetchGroupName(ctx, event.Instance, event.GroupID)
		if err != nil {
			p.logger.WarnContext(ctx, "Failed to fetch group name", "error", err, "group_id", event.GroupID)
		} else {
			contactName = name
		}
	}

	now := p.now()
	contact := &coredomain.Contact{ID: uuid.New(), Phone: event.Sender, Name: contactName, CreatedAt: now, UpdatedAt: now}
	if err := p.contacts.Upsert(ctx, contact); err != nil {
		p.logger.ErrorContext(ctx, "Failed to upsert contact for inbound message", "error", err, "sender", event.Sender)
		return p.countMessage(OutcomeError)
	}

	route, err := p.router.RouteInbound(ctx, event.Sender, line.ID)
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to route inbound message", "error", err, "sender", event.Sender, "line_id", line.ID)
		return p.countMessage(OutcomeError)
	}

	conv := &coredomain.Conversation{
		ID:           uuid.New(),
		LineID:       line.ID,
		ContactPhone: event.Sender,
		OperatorID:   route.OperatorID,
		Direction:    coredomain.DirectionContact,
		Body:         event.Body,
		CreatedAt:    now,
	}
	if err := p.convRepo.Create(ctx, conv); err != nil {
		p.logger.ErrorContext(ctx, "Failed to persist inbound conversation", "error", err, "sender", event.Sender)
		return p.countMessage(OutcomeError)
	}

	if route.Queued {
		pending := notification.PendingInboundMessage{
			LineID:       line.ID,
			ContactPhone: event.Sender,
			Body:         event.Body,
			ReceivedAt:   event.ReceivedAt,
		}
		if err := p.notifier.EnqueuePendingInbound(ctx, pending); err != nil {
			p.logger.ErrorContext(ctx, "Failed to enqueue pending inbound message", "error", err, "line_id", line.ID)
			return p.countMessage(OutcomeError)
		}
		return p.countMessage(OutcomeQueued)
	}

	p.notifier.NewMessage(ctx, notification.NewMessageEvent{
		ConversationID: conv.ID,
		LineID:         line.ID,
		ContactPhone:   event.Sender,
		OperatorID:     route.OperatorID.UUID,
		OccurredAt:     now,
	})
	return p.countMessage(OutcomeProcessed)
}

// HandleConnection records a ban/disconnect proposal for later
// confirmation. Healthy states carry no action.
func (p *EventProcessor) HandleConnection(ctx context.Context, event domain.ConnectionEvent) Outcome {
	status, relevant := reportedStatus(event.State)
	if !relevant {
		return p.countConnection(OutcomeIgnored)
	}

	line, err := p.lines.GetByGatewayInstance(ctx, event.Instance)
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to resolve line for connection event", "error", err, "instance", event.Instance)
		return p.countConnection(OutcomeError)
	}
	if line == nil {
		p.logger.WarnContext(ctx, "Connection event for unknown gateway instance", "instance", event.Instance)
		return p.countConnection(OutcomeIgnored)
	}

	now := p.now()
	report := &coredomain.LineStateReport{
		ID:             uuid.New(),
		LineID:         line.ID,
		ReportedStatus: status,
		Source:         "gateway_webhook",
		Confirmed:      false,
		CreatedAt:      now,
	}
	if err := p.reports.Create(ctx, report); err != nil {
		p.logger.ErrorContext(ctx, "Failed to record line state report", "error", err, "line_id", line.ID)
		return p.countConnection(OutcomeError)
	}

	p.logger.InfoContext(ctx, "Line state proposal recorded",
		"line_id", line.ID, "reported_status", status, "reason", event.Reason)
	p.notifier.LineBanned(ctx, notification.LineBannedEvent{
		LineID:         line.ID,
		ReportedStatus: string(status),
		OccurredAt:     now,
	})
	return p.countConnection(OutcomeProcessed)
}

func (p *EventProcessor) countMessage(outcome Outcome) Outcome {
	inboundEventsCounter.WithLabelValues("message", string(outcome)).Inc()
	return outcome
}

func (p *EventProcessor) countConnection(outcome Outcome) Outcome {
	inboundEventsCounter.WithLabelValues("connection", string(outcome)).Inc()
	return outcome
}

// reportedStatus maps gateway connection states to proposal statuses.
// States that do not indicate trouble are not reported.
func reportedStatus(state string) (coredomain.LineStatus, bool) {
	switch state {
	case "banned":
		return coredomain.LineStatusBanned, true
	case "close", "disconnected", "logged_out":
		return coredomain.LineStatusDisconnected, true
	default:
		return "", false
	}
}
