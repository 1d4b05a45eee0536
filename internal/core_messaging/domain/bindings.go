package domain

import (
	"time"

	"github.com/google/uuid"
)

// LineOperatorBinding joins an operator to a line. An operator holds at
// most one active binding; a line holds up to its segment's cap, all
// same-segment.
type LineOperatorBinding struct {
	ID         uuid.UUID `json:"id"`
	LineID     uuid.UUID `json:"line_id"`
	OperatorID uuid.UUID `json:"operator_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// ConversationOperatorBinding is the sticky route for inbound traffic:
// (contact, line) -> operator, valid until ExpiresAt.
type ConversationOperatorBinding struct {
	ID           uuid.UUID `json:"id"`
	ContactPhone string    `json:"contact_phone"`
	LineID       uuid.UUID `json:"line_id"`
	OperatorID   uuid.UUID `json:"operator_id"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// StickyBindingTTL is the rolling validity window of a sticky route.
const StickyBindingTTL = 24 * time.Hour

// Expired reports whether the binding is past its expiry at now.
func (b *ConversationOperatorBinding) Expired(now time.Time) bool {
	return !now.Before(b.ExpiresAt)
}

// LineStateReport is an advisory ban/disconnect proposal from the
// gateway's connection-state webhook. Reports are confirmed by an
// external monitor before the line status actually changes.
type LineStateReport struct {
	ID             uuid.UUID  `json:"id"`
	LineID         uuid.UUID  `json:"line_id"`
	ReportedStatus LineStatus `json:"reported_status"`
	Source         string     `json:"source"`
	Confirmed      bool       `json:"confirmed"`
	CreatedAt      time.Time  `json:"created_at"`
}
