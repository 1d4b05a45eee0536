package domain

import (
	"encoding/json"
	"time"
)

// NATS subjects carrying normalized gateway events from the webhook
// boundary to the consumer.
const (
	SubjectMessageEvents    = "gateway.events.message"
	SubjectConnectionEvents = "gateway.events.connection"
)

// Webhook event kinds the gateway is known to emit.
const (
	EventMessageUpsert    = "message-upsert"
	EventConnectionUpdate = "connection-update"
)

// MessageEvent is a normalized inbound message from a contact.
type MessageEvent struct {
	Instance   string    `json:"instance"`
	Sender     string    `json:"sender"`
	Body       string    `json:"body"`
	GroupID    string    `json:"group_id,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// ConnectionEvent is a normalized line connection-state change report.
type ConnectionEvent struct {
	Instance   string    `json:"instance"`
	State      string    `json:"state"`
	Reason     string    `json:"reason,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// WebhookPayload is the raw tagged-union body posted by the gateway.
// Data's shape depends on Event.
type WebhookPayload struct {
	Event    string          `json:"event"`
	Instance string          `json:"instance"`
	Data     json.RawMessage `json:"data"`
}

type rawMessageData struct {
	Sender  string `json:"sender"`
	Body    string `json:"body"`
	GroupID string `json:"group_id"`
	FromMe  bool   `json:"from_me"`
}

type rawConnectionData struct {
	State  string `json:"state"`
	Reason string `json:"reason"`
}

// NormalizedEvent holds exactly one of the two event types.
type NormalizedEvent struct {
	Message    *MessageEvent
	Connection *ConnectionEvent
}

// Normalize validates and converts a raw webhook payload. A non-empty
// ignore reason means the payload should be acknowledged and dropped:
// unknown kinds and partial payloads are expected gateway noise, not
// errors.
func Normalize(payload WebhookPayload, now time.Time) (*NormalizedEvent, string) {
	if payload.Instance == "" {
		return nil, "missing instance"
	}

	switch payload.Event {
	case EventMessageUpsert:
		var data rawMessageData
		if err := json.Unmarshal(payload.Data, &data); err != nil {
			return nil, "malformed message data"
		}
		if data.FromMe {
			return nil, "own outbound echo"
		}
		if data.Sender == "" {
			return nil, "missing sender"
		}
		if data.Body == "" {
			return nil, "missing body"
		}
		return &NormalizedEvent{Message: &MessageEvent{
			Instance:   payload.Instance,
			Sender:     data.Sender,
			Body:       data.Body,
			GroupID:    data.GroupID,
			ReceivedAt: now,
		}}, ""

	case EventConnectionUpdate:
		var data rawConnectionData
		if err := json.Unmarshal(payload.Data, &data); err != nil {
			return nil, "malformed connection data"
		}
		if data.State == "" {
			return nil, "missing state"
		}
		return &NormalizedEvent{Connection: &ConnectionEvent{
			Instance:   payload.Instance,
			State:      data.State,
			Reason:     data.Reason,
			ReceivedAt: now,
		}}, ""

	default:
		return nil, "unknown event kind"
	}
}
