package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/zapdesk/golang_services/internal/core_messaging/domain"
)

// ConversationRepository persists conversation records (one row per
// message). Readers include the compliance gate (per-contact history),
// the reputation scorer (per-line 7-day window) and the router
// (open-conversation load counts).
type ConversationRepository interface {
	Create(ctx context.Context, conv *domain.Conversation) error
	// ListByContact returns every record for the contact phone ordered by
	// created_at ascending.
	ListByContact(ctx context.Context, contactPhone string) ([]*domain.Conversation, error)
	// ListByLineSince returns records on the line created at or after
	// since, ordered by created_at ascending.
	ListByLineSince(ctx context.Context, lineID uuid.UUID, since time.Time) ([]*domain.Conversation, error)
	// CountOpenByOperatorOnLine counts untabulated records assigned to the
	// operator on the line.
	CountOpenByOperatorOnLine(ctx context.Context, operatorID, lineID uuid.UUID) (int, error)
	// CountOutboundByLineSince counts operator-sent records on the line at
	// or after since; used for hourly/daily rate ceilings.
	CountOutboundByLineSince(ctx context.Context, lineID uuid.UUID, since time.Time) (int, error)
}

// ContactRepository upserts contacts touched by dispatch and routing.
type ContactRepository interface {
	Upsert(ctx context.Context, contact *domain.Contact) error
}

// StickyBindingRepository stores (contact, line) -> operator routes.
type StickyBindingRepository interface {
	// Get returns the binding for the key, expired or not, or (nil, nil)
	// when none exists.
	Get(ctx context.Context, contactPhone string, lineID uuid.UUID) (*domain.ConversationOperatorBinding, error)
	// Upsert creates or replaces the binding for the key with the given
	// operator and expiry.
	Upsert(ctx context.Context, binding *domain.ConversationOperatorBinding) error
}

// OperatorDirectory is the router's view of operator presence. The
// postgres implementation lives with the allocation service's operator
// repository.
type OperatorDirectory interface {
	// ListOnlineBoundToLine returns online operators holding an active
	// binding to the line, in stable (binding creation) order.
	ListOnlineBoundToLine(ctx context.Context, lineID uuid.UUID) ([]*domain.Operator, error)
	// ListOnlineAssociatedWithLine returns any online operator, admin or
	// supervisor associated with the line's segment, in stable order.
	ListOnlineAssociatedWithLine(ctx context.Context, lineID uuid.UUID) ([]*domain.Operator, error)
}
