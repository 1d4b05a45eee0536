package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	complianceRepo "github.com/zapdesk/golang_services/internal/compliance_service/repository"
	conversationRepo "github.com/zapdesk/golang_services/internal/conversation_service/repository"
	"github.com/zapdesk/golang_services/internal/core_messaging/domain"
)

// CPCWindow is the minimum interval between unsolicited contacts to the
// same party, lifted as soon as the contact replies.
const CPCWindow = 24 * time.Hour

// Decision is the gate verdict for one outbound new-contact send.
type Decision struct {
	Allowed bool
	Reason  string
	// RetryAfter is the remaining CPC wait; zero unless the denial came
	// from the contact window.
	RetryAfter time.Duration
}

// Gate enforces the contact-per-client window and the blocklist.
type Gate struct {
	blocklistRepo complianceRepo.BlocklistRepository
	convRepo      conversationRepo.ConversationRepository
	logger        *slog.Logger
	now           func() time.Time
}

func NewGate(
	blocklistRepo complianceRepo.BlocklistRepository,
	convRepo conversationRepo.ConversationRepository,
	logger *slog.Logger,
) *Gate {
	return &Gate{
		blocklistRepo: blocklistRepo,
		convRepo:      convRepo,
		logger:        logger.With("component", "compliance_gate"),
		now:           time.Now,
	}
}

// CanContact evaluates one outbound new-contact send to contactPhone.
// The blocklist is checked first and independently of the CPC rule.
func (g *Gate) CanContact(ctx context.Context, contactPhone string) (Decision, error) {
	blocked, reason, err := g.blocklistRepo.IsBlocked(ctx, contactPhone)
	if err != nil {
		return Decision{}, fmt.Errorf("blocklist lookup: %w", err)
	}
	if blocked {
		if reason == "" {
			reason = "contact is blocklisted"
		}
		g.logger.InfoContext(ctx, "Send denied by blocklist", "contact_phone", contactPhone, "reason", reason)
		return Decision{Allowed: false, Reason: reason}, nil
	}

	records, err := g.convRepo.ListByContact(ctx, contactPhone)
	if err != nil {
		return Decision{}, fmt.Errorf("loading conversation history: %w", err)
	}
	if len(records) == 0 {
		return Decision{Allowed: true}, nil
	}

	firstInteraction := firstOperatorMessage(records)
	if firstInteraction == nil {
		// The contact reached out first; no window applies.
		return Decision{Allowed: true}, nil
	}

	if contactRepliedAfter(records, firstInteraction.CreatedAt) {
		return Decision{Allowed: true}, nil
	}

	elapsed := g.now().Sub(firstInteraction.CreatedAt)
	if elapsed >= CPCWindow {
		return Decision{Allowed: true}, nil
	}

	remaining := CPCWindow - elapsed
	g.logger.InfoContext(ctx, "Send denied by contact window",
		"contact_phone", contactPhone, "retry_after", remaining)
	return Decision{
		Allowed:    false,
		Reason:     "contact window not elapsed and no reply received",
		RetryAfter: remaining,
	}, nil
}

// DeniedError converts a denial into the shared error type for callers
// that propagate errors instead of decisions.
func (d Decision) DeniedError() error {
	if d.Allowed {
		return nil
	}
	return &domain.ComplianceDeniedError{Reason: d.Reason, RetryAfter: d.RetryAfter}
}

func firstOperatorMessage(records []*domain.Conversation) *domain.Conversation {
	for _, rec := range records {
		if rec.Direction == domain.DirectionOperator {
			return rec
		}
	}
	return nil
}

func contactRepliedAfter(records []*domain.Conversation, after time.Time) bool {
	for _, rec := range records {
		if rec.Direction == domain.DirectionContact && rec.CreatedAt.After(after) {
			return true
		}
	}
	return false
}
