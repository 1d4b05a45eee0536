package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/zapdesk/golang_services/internal/core_messaging/domain"
)

// LineRepository reads line records for allocation and dispatch.
// Methods taking a pgx.Tx participate in the allocation critical
// section and expect the caller to own the transaction.
type LineRepository interface {
	GetLine(ctx context.Context, lineID uuid.UUID) (*domain.Line, error)
	// GetLineForUpdate locks the line row (SELECT ... FOR UPDATE) so the
	// capacity check-then-assign sequence cannot race.
	GetLineForUpdate(ctx context.Context, tx pgx.Tx, lineID uuid.UUID) (*domain.Line, error)
	// ListAllocatableBySegment returns active lines in the segment whose
	// gateway instance is enabled, in creation order.
	ListAllocatableBySegment(ctx context.Context, segmentID uuid.UUID) ([]*domain.Line, error)
	// ListBySegment returns all lines in the segment regardless of status.
	ListBySegment(ctx context.Context, segmentID uuid.UUID) ([]*domain.Line, error)
	// GetByGatewayInstance resolves the line owning a gateway instance key.
	GetByGatewayInstance(ctx context.Context, instance string) (*domain.Line, error)
}

// LineBindingRepository persists line-operator bindings.
type LineBindingRepository interface {
	GetActiveByOperator(ctx context.Context, operatorID uuid.UUID) (*domain.LineOperatorBinding, error)
	ListByLineTx(ctx context.Context, tx pgx.Tx, lineID uuid.UUID) ([]*domain.LineOperatorBinding, error)
	CountByLineTx(ctx context.Context, tx pgx.Tx, lineID uuid.UUID) (int, error)
	// ListOperatorSegmentsByLineTx returns the segment of every operator
	// currently bound to the line, for the same-segment invariant check.
	ListOperatorSegmentsByLineTx(ctx context.Context, tx pgx.Tx, lineID uuid.UUID) ([]uuid.NullUUID, error)
	CreateTx(ctx context.Context, tx pgx.Tx, binding *domain.LineOperatorBinding) error
	DeleteTx(ctx context.Context, tx pgx.Tx, bindingID uuid.UUID) error
}

// OperatorRepository reads operators and maintains the legacy line
// pointer. It also backs the conversation router's directory views.
type OperatorRepository interface {
	GetByID(ctx context.Context, operatorID uuid.UUID) (*domain.Operator, error)
	// FindBySpecialistCode matches the email local-part used by dispatch
	// payloads to address operators.
	FindBySpecialistCode(ctx context.Context, code string) (*domain.Operator, error)
	UpdateLinePointerTx(ctx context.Context, tx pgx.Tx, operatorID uuid.UUID, lineID uuid.NullUUID) error
	ListOnlineBoundToLine(ctx context.Context, lineID uuid.UUID) ([]*domain.Operator, error)
	ListOnlineAssociatedWithLine(ctx context.Context, lineID uuid.UUID) ([]*domain.Operator, error)
}

// SegmentRepository reads segment records.
type SegmentRepository interface {
	GetByID(ctx context.Context, segmentID uuid.UUID) (*domain.Segment, error)
	GetByName(ctx context.Context, name string) (*domain.Segment, error)
}

// SettingsRepository reads pool-wide settings.
type SettingsRepository interface {
	// SharedModeEnabled reports the pool-wide flag that lifts the
	// per-line operator cap.
	SharedModeEnabled(ctx context.Context) (bool, error)
}
