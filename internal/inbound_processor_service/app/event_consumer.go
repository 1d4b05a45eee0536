package app

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/zapdesk/golang_services/internal/inbound_processor_service/domain"
	"github.com/zapdesk/golang_services/internal/platform/messagebroker"
)

const consumerQueueGroup = "inbound-processor"

// EventConsumer subscribes to the normalized gateway event subjects and
// feeds the processor. A bad event is logged and dropped; the
// subscription keeps running.
type EventConsumer struct {
	nats      *messagebroker.NatsClient
	processor *EventProcessor
	logger    *slog.Logger
}

func NewEventConsumer(natsClient *messagebroker.NatsClient, processor *EventProcessor, logger *slog.Logger) *EventConsumer {
	return &EventConsumer{
		nats:      natsClient,
		processor: processor,
		logger:    logger.With("component", "inbound_event_consumer"),
	}
}

// Start subscribes to both event subjects. Subscriptions live until the
// NATS connection drains.
func (c *EventConsumer) Start(ctx context.Context) error {
	_, err := c.nats.Subscribe(ctx, domain.SubjectMessageEvents, consumerQueueGroup, func(msg *nats.Msg) {
		var event domain.MessageEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			c.logger.ErrorContext(ctx, "Failed to decode message event", "error", err, "subject", msg.Subject)
			return
		}
		outcome := c.processor.HandleMessage(ctx, event)
		c.logger.DebugContext(ctx, "Message event handled", "sender", event.Sender, "outcome", outcome)
	})
	if err != nil {
		return err
	}

	_, err = c.nats.Subscribe(ctx, domain.SubjectConnectionEvents, consumerQueueGroup, func(msg *nats.Msg) {
		var event domain.ConnectionEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			c.logger.ErrorContext(ctx, "Failed to decode connection event", "error", err, "subject", msg.Subject)
			return
		}
		outcome := c.processor.HandleConnection(ctx, event)
		c.logger.DebugContext(ctx, "Connection event handled", "instance", event.Instance, "outcome", outcome)
	})
	if err != nil {
		return err
	}

	c.logger.InfoContext(ctx, "Inbound event consumer started",
		"subjects", []string{domain.SubjectMessageEvents, domain.SubjectConnectionEvents}, "queue_group", consumerQueueGroup)
	return nil
}
