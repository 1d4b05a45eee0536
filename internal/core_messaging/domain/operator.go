package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// OperatorRole distinguishes routing fallback candidates.
type OperatorRole string

const (
	RoleOperator   OperatorRole = "operator"
	RoleSupervisor OperatorRole = "supervisor"
	RoleAdmin      OperatorRole = "admin"
)

// Operator is a human agent who holds at most one line at a time.
type Operator struct {
	ID        uuid.UUID     `json:"id"`
	Name      string        `json:"name"`
	Email     string        `json:"email"`
	Role      OperatorRole  `json:"role"`
	SegmentID uuid.NullUUID `json:"segment_id,omitempty"`
	Online    bool          `json:"online"`
	// LineID is the legacy single-line pointer kept in sync with the
	// operator's active LineOperatorBinding.
	LineID    uuid.NullUUID `json:"line_id,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// SpecialistCode is the operator's email local-part, used by bulk
// dispatch payloads to address an operator.
func (o *Operator) SpecialistCode() string {
	if idx := strings.Index(o.Email, "@"); idx >= 0 {
		return o.Email[:idx]
	}
	return o.Email
}

// Contact is an external party reachable through a line.
type Contact struct {
	ID        uuid.UUID `json:"id"`
	Phone     string    `json:"phone"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
