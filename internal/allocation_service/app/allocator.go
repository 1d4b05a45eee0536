package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/zapdesk/golang_services/internal/allocation_service/repository"
	"github.com/zapdesk/golang_services/internal/core_messaging/domain"
	"github.com/zapdesk/golang_services/internal/notification"
	"github.com/zapdesk/golang_services/internal/platform/database"
)

// AssignmentNotifier announces new line-operator bindings.
type AssignmentNotifier interface {
	LineAssigned(ctx context.Context, event notification.LineAssignedEvent)
}

// ReallocationQueue receives operators unlinked by capacity enforcement.
type ReallocationQueue interface {
	EnqueueReallocation(ctx context.Context, req notification.ReallocationRequest) error
}

// Allocator assigns operators to lines under segment and capacity
// constraints. The capacity check-then-assign sequence runs inside a
// transaction holding a row lock on the candidate line.
type Allocator struct {
	db          database.PgxIface
	lineRepo    repository.LineRepository
	bindingRepo repository.LineBindingRepository
	opRepo      repository.OperatorRepository
	segmentRepo repository.SegmentRepository
	settings    repository.SettingsRepository

	defaultSegmentName string
	policy             RemovalPolicy
	notifier           AssignmentNotifier
	queue              ReallocationQueue
	logger             *slog.Logger
	now                func() time.Time
}

func NewAllocator(
	db database.PgxIface,
	lineRepo repository.LineRepository,
	bindingRepo repository.LineBindingRepository,
	opRepo repository.OperatorRepository,
	segmentRepo repository.SegmentRepository,
	settings repository.SettingsRepository,
	defaultSegmentName string,
	policy RemovalPolicy,
	notifier AssignmentNotifier,
	queue ReallocationQueue,
	logger *slog.Logger,
) *Allocator {
	return &Allocator{
		db:                 db,
		lineRepo:           lineRepo,
		bindingRepo:        bindingRepo,
		opRepo:             opRepo,
		segmentRepo:        segmentRepo,
		settings:           settings,
		defaultSegmentName: defaultSegmentName,
		policy:             policy,
		notifier:           notifier,
		queue:              queue,
		logger:             logger.With("component", "line_allocator"),
		now:                time.Now,
	}
}

// EnsureLine returns the line the operator should send through,
// reusing the operator's current active line or provisioning a binding
// to a free line in the operator's segment, then the default segment.
func (a *Allocator) EnsureLine(ctx context.Context, operatorID uuid.UUID) (uuid.UUID, error) {
	operator, err := a.opRepo.GetByID(ctx, operatorID)
	if err != nil {
		lineAllocationsCounter.WithLabelValues("error").Inc()
		return uuid.Nil, err
	}

	existing, err := a.bindingRepo.GetActiveByOperator(ctx, operatorID)
	if err != nil {
		lineAllocationsCounter.WithLabelValues("error").Inc()
		return uuid.Nil, err
	}
	if existing != nil {
		line, err := a.lineRepo.GetLine(ctx, existing.LineID)
		if err != nil {
			lineAllocationsCounter.WithLabelValues("error").Inc()
			return uuid.Nil, err
		}
		if line.Status == domain.LineStatusActive {
			lineAllocationsCounter.WithLabelValues("reused").Inc()
			return line.ID, nil
		}
		// The bound line went bad; release it so a fresh one can be
		// assigned below.
		if err := a.unbind(ctx, existing, operatorID); err != nil {
			lineAllocationsCounter.WithLabelValues("error").Inc()
			return uuid.Nil, err
		}
		a.logger.InfoContext(ctx, "Released operator from inactive line",
			"operator_id", operatorID, "line_id", line.ID, "line_status", line.Status)
	}

	if operator.SegmentID.Valid {
		lineID, found, err := a.assignWithinSegment(ctx, operator, operator.SegmentID.UUID)
		if err != nil {
			lineAllocationsCounter.WithLabelValues("error").Inc()
			return uuid.Nil, err
		}
		if found {
			lineAllocationsCounter.WithLabelValues("assigned").Inc()
			return lineID, nil
		}
	}

	defaultSegment, err := a.segmentRepo.GetByName(ctx, a.defaultSegmentName)
	if err != nil {
		lineAllocationsCounter.WithLabelValues("error").Inc()
		return uuid.Nil, err
	}
	if defaultSegment != nil && (!operator.SegmentID.Valid || defaultSegment.ID != operator.SegmentID.UUID) {
		lineID, found, err := a.assignWithinSegment(ctx, operator, defaultSegment.ID)
		if err != nil {
			lineAllocationsCounter.WithLabelValues("error").Inc()
			return uuid.Nil, err
		}
		if found {
			lineAllocationsCounter.WithLabelValues("assigned").Inc()
			return lineID, nil
		}
	}

	lineAllocationsCounter.WithLabelValues("none_available").Inc()
	return uuid.Nil, domain.ErrNoLineAvailable
}

// assignWithinSegment walks allocatable lines in creation order and
// takes the first one that accepts the operator.
func (a *Allocator) assignWithinSegment(ctx context.Context, operator *domain.Operator, segmentID uuid.UUID) (uuid.UUID, bool, error) {
	lines, err := a.lineRepo.ListAllocatableBySegment(ctx, segmentID)
	if err != nil {
		return uuid.Nil, false, err
	}
	for _, line := range lines {
		err := a.Assign(ctx, line.ID, operator.ID)
		if err == nil {
			return line.ID, true, nil
		}
		if errors.Is(err, domain.ErrCapacityExceeded) || errors.Is(err, domain.ErrSegmentMismatch) {
			continue
		}
		return uuid.Nil, false, err
	}
	return uuid.Nil, false, nil
}

// Assign binds operatorID to lineID. The line row is locked for the
// duration of the transaction so concurrent assignments serialize;
// binding creation and the legacy operator line pointer update commit
// atomically.
func (a *Allocator) Assign(ctx context.Context, lineID, operatorID uuid.UUID) error {
	operator, err := a.opRepo.GetByID(ctx, operatorID)
	if err != nil {
		return err
	}
	sharedMode, err := a.settings.SharedModeEnabled(ctx)
	if err != nil {
		return err
	}

	txErr := pgx.BeginFunc(ctx, a.db, func(tx pgx.Tx) error {
		line, err := a.lineRepo.GetLineForUpdate(ctx, tx, lineID)
		if err != nil {
			return err
		}
		if line.Status != domain.LineStatusActive {
			return domain.ErrLineNotActive
		}

		boundSegments, err := a.bindingRepo.ListOperatorSegmentsByLineTx(ctx, tx, lineID)
		if err != nil {
			return err
		}

		if sharedMode {
			// Shared mode removes the cap but still requires every bound
			// operator to share the line's segment.
			if line.SegmentID.Valid && (!operator.SegmentID.Valid || operator.SegmentID.UUID != line.SegmentID.UUID) {
				return domain.ErrSegmentMismatch
			}
		} else {
			for _, seg := range boundSegments {
				if seg != operator.SegmentID {
					return domain.ErrSegmentMismatch
				}
			}
			cap, err := a.lineCapacity(ctx, line)
			if err != nil {
				return err
			}
			count, err := a.bindingRepo.CountByLineTx(ctx, tx, lineID)
			if err != nil {
				return err
			}
			if count >= cap {
				return domain.ErrCapacityExceeded
			}
		}

		binding := &domain.LineOperatorBinding{
			ID:         uuid.New(),
			LineID:     lineID,
			OperatorID: operatorID,
			CreatedAt:  a.now(),
		}
		if err := a.bindingRepo.CreateTx(ctx, tx, binding); err != nil {
			return err
		}
		return a.opRepo.UpdateLinePointerTx(ctx, tx, operatorID, uuid.NullUUID{UUID: lineID, Valid: true})
	})
	if txErr != nil {
		return txErr
	}

	a.logger.InfoContext(ctx, "Operator bound to line", "operator_id", operatorID, "line_id", lineID)
	a.notifier.LineAssigned(ctx, notification.LineAssignedEvent{
		LineID: lineID, OperatorID: operatorID, OccurredAt: a.now(),
	})
	return nil
}

func (a *Allocator) lineCapacity(ctx context.Context, line *domain.Line) (int, error) {
	if !line.SegmentID.Valid {
		return domain.DefaultMaxOperatorsPerLine, nil
	}
	segment, err := a.segmentRepo.GetByID(ctx, line.SegmentID.UUID)
	if err != nil {
		return 0, err
	}
	if segment == nil || segment.MaxOperatorsPerLine <= 0 {
		return domain.DefaultMaxOperatorsPerLine, nil
	}
	return segment.MaxOperatorsPerLine, nil
}

// ApplySegmentCapacity enforces a lowered per-line operator cap across
// a segment. Excess bindings are removed by the configured policy, each
// removed operator's line pointer is cleared, and removed operators who
// are online are enqueued for reallocation exactly once. Each line is
// processed in its own transaction so no line is ever visible over
// capacity to a concurrent allocation.
func (a *Allocator) ApplySegmentCapacity(ctx context.Context, segmentID uuid.UUID, maxOperators int) (int, error) {
	if maxOperators < 0 {
		return 0, &domain.ValidationError{Field: "maxOperators", Reason: "must be non-negative"}
	}

	lines, err := a.lineRepo.ListBySegment(ctx, segmentID)
	if err != nil {
		return 0, err
	}

	totalRemoved := 0
	var removedOperators []uuid.UUID

	for _, line := range lines {
		var removedHere []uuid.UUID
		txErr := pgx.BeginFunc(ctx, a.db, func(tx pgx.Tx) error {
			if _, err := a.lineRepo.GetLineForUpdate(ctx, tx, line.ID); err != nil {
				return err
			}
			bindings, err := a.bindingRepo.ListByLineTx(ctx, tx, line.ID)
			if err != nil {
				return err
			}
			excess := len(bindings) - maxOperators
			if excess <= 0 {
				return nil
			}
			for _, binding := range a.policy.SelectForRemoval(bindings, excess) {
				if err := a.bindingRepo.DeleteTx(ctx, tx, binding.ID); err != nil {
					return err
				}
				if err := a.opRepo.UpdateLinePointerTx(ctx, tx, binding.OperatorID, uuid.NullUUID{}); err != nil {
					return err
				}
				removedHere = append(removedHere, binding.OperatorID)
			}
			return nil
		})
		if txErr != nil {
			return totalRemoved, fmt.Errorf("enforcing capacity on line %s: %w", line.ID, txErr)
		}
		totalRemoved += len(removedHere)
		removedOperators = append(removedOperators, removedHere...)
	}

	capacityRemovalsCounter.Add(float64(totalRemoved))

	for _, operatorID := range removedOperators {
		operator, err := a.opRepo.GetByID(ctx, operatorID)
		if err != nil {
			a.logger.ErrorContext(ctx, "Failed to load removed operator for reallocation", "error", err, "operator_id", operatorID)
			continue
		}
		if !operator.Online {
			continue
		}
		req := notification.ReallocationRequest{OperatorID: operatorID, EnqueuedAt: a.now()}
		if operator.SegmentID.Valid {
			req.SegmentID = operator.SegmentID.UUID.String()
		}
		if err := a.queue.EnqueueReallocation(ctx, req); err != nil {
			a.logger.ErrorContext(ctx, "Failed to enqueue operator for reallocation", "error", err, "operator_id", operatorID)
		}
	}

	a.logger.InfoContext(ctx, "Segment capacity enforced",
		"segment_id", segmentID, "max_operators", maxOperators, "removed", totalRemoved)
	return totalRemoved, nil
}

// unbind releases an operator's current binding in a short transaction.
func (a *Allocator) unbind(ctx context.Context, binding *domain.LineOperatorBinding, operatorID uuid.UUID) error {
	return pgx.BeginFunc(ctx, a.db, func(tx pgx.Tx) error {
		if err := a.bindingRepo.DeleteTx(ctx, tx, binding.ID); err != nil {
			return err
		}
		return a.opRepo.UpdateLinePointerTx(ctx, tx, operatorID, uuid.NullUUID{})
	})
}
