package gateway

import (
	"context"
	"fmt"
	"time"
)

// SendResult is the gateway's acknowledgement of an accepted message.
type SendResult struct {
	GatewayMessageID string
	Channel          string // "fallback" or "official"
}

// RecentMessage is one entry from the gateway's recent-traffic listing.
type RecentMessage struct {
	Sender  string
	Body    string
	GroupID string
	SentAt  time.Time
}

// Client is the outbound messaging gateway surface. Instance-scoped
// calls address a connected line by its gateway instance name; the
// cloud variant talks to the official channel API directly with the
// line's own credentials.
type Client interface {
	SendText(ctx context.Context, instance, phone, text string) (*SendResult, error)
	SendTemplate(ctx context.Context, instance, phone, templateName, language string, variables []string) (*SendResult, error)
	SendTemplateCloud(ctx context.Context, numberID, token, templateName string, variables []string) (*SendResult, error)
	SendTyping(ctx context.Context, instance, phone string) error
	FetchGroupName(ctx context.Context, instance, groupID string) (string, error)
	FetchRecentMessages(ctx context.Context, instance string, limit int) ([]RecentMessage, error)
}

// Error carries the gateway's HTTP status and message for a rejected
// call.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("gateway error: status %d, message: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("gateway error: status %d", e.StatusCode)
}
