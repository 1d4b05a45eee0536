package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/zapdesk/golang_services/internal/conversation_service/repository"
	"github.com/zapdesk/golang_services/internal/core_messaging/domain"
)

// RouteResult is the outcome of routing one inbound message.
type RouteResult struct {
	// OperatorID is set when an operator was selected.
	OperatorID uuid.NullUUID
	// Sticky is true when an unexpired binding decided the route.
	Sticky bool
	// Queued is true when no online operator could take the message; the
	// caller must enqueue it for later delivery. No binding is written.
	Queued bool
}

// Router binds inbound contacts to operators with 24h rolling
// stickiness and distributes unbound traffic by least load.
type Router struct {
	stickyRepo repository.StickyBindingRepository
	convRepo   repository.ConversationRepository
	directory  repository.OperatorDirectory
	logger     *slog.Logger
	now        func() time.Time
}

func NewRouter(
	stickyRepo repository.StickyBindingRepository,
	convRepo repository.ConversationRepository,
	directory repository.OperatorDirectory,
	logger *slog.Logger,
) *Router {
	return &Router{
		stickyRepo: stickyRepo,
		convRepo:   convRepo,
		directory:  directory,
		logger:     logger.With("component", "conversation_router"),
		now:        time.Now,
	}
}

// RouteInbound resolves the operator for an inbound message from
// contactPhone on lineID. An unexpired sticky binding wins and gets its
// expiry refreshed; otherwise the least-loaded online operator bound to
// the line is chosen, falling back to any online operator, admin or
// supervisor associated with the line. When nobody is available the
// result is Queued and no binding is created.
func (r *Router) RouteInbound(ctx context.Context, contactPhone string, lineID uuid.UUID) (RouteResult, error) {
	now := r.now()

	binding, err := r.stickyRepo.Get(ctx, contactPhone, lineID)
	if err != nil {
		return RouteResult{}, fmt.Errorf("looking up sticky binding: %w", err)
	}
	if binding != nil && !binding.Expired(now) {
		// Refresh keeps the bound operator; only the expiry rolls forward.
		if err := r.writeBinding(ctx, binding, contactPhone, lineID, binding.OperatorID, now); err != nil {
			return RouteResult{}, err
		}
		r.logger.DebugContext(ctx, "Routed via sticky binding",
			"contact_phone", contactPhone, "line_id", lineID, "operator_id", binding.OperatorID)
		return RouteResult{OperatorID: uuid.NullUUID{UUID: binding.OperatorID, Valid: true}, Sticky: true}, nil
	}

	operator, err := r.selectOperator(ctx, contactPhone, lineID)
	if err != nil {
		return RouteResult{}, err
	}
	if operator == nil {
		r.logger.InfoContext(ctx, "No online operator available for inbound message",
			"contact_phone", contactPhone, "line_id", lineID)
		return RouteResult{Queued: true}, nil
	}

	if err := r.writeBinding(ctx, binding, contactPhone, lineID, operator.ID, now); err != nil {
		return RouteResult{}, err
	}
	r.logger.InfoContext(ctx, "Bound inbound contact to operator",
		"contact_phone", contactPhone, "line_id", lineID, "operator_id", operator.ID)
	return RouteResult{OperatorID: uuid.NullUUID{UUID: operator.ID, Valid: true}}, nil
}

// selectOperator picks the least-loaded online operator bound to the
// line, breaking ties by stable (binding creation) order.
func (r *Router) selectOperator(ctx context.Context, contactPhone string, lineID uuid.UUID) (*domain.Operator, error) {
	candidates, err := r.directory.ListOnlineBoundToLine(ctx, lineID)
	if err != nil {
		return nil, fmt.Errorf("listing online operators bound to line: %w", err)
	}

	if len(candidates) == 0 {
		fallback, err := r.directory.ListOnlineAssociatedWithLine(ctx, lineID)
		if err != nil {
			return nil, fmt.Errorf("listing fallback operators for line: %w", err)
		}
		if len(fallback) == 0 {
			return nil, nil
		}
		return fallback[0], nil
	}

	var best *domain.Operator
	bestLoad := 0
	for _, candidate := range candidates {
		load, err := r.convRepo.CountOpenByOperatorOnLine(ctx, candidate.ID, lineID)
		if err != nil {
			return nil, fmt.Errorf("counting open conversations for operator %s: %w", candidate.ID, err)
		}
		if best == nil || load < bestLoad {
			best = candidate
			bestLoad = load
		}
	}
	return best, nil
}

func (r *Router) writeBinding(ctx context.Context, existing *domain.ConversationOperatorBinding, contactPhone string, lineID, operatorID uuid.UUID, now time.Time) error {
	binding := &domain.ConversationOperatorBinding{
		ID:           uuid.New(),
		ContactPhone: contactPhone,
		LineID:       lineID,
		OperatorID:   operatorID,
		ExpiresAt:    now.Add(domain.StickyBindingTTL),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if existing != nil {
		binding.ID = existing.ID
		binding.CreatedAt = existing.CreatedAt
	}
	if err := r.stickyRepo.Upsert(ctx, binding); err != nil {
		return fmt.Errorf("refreshing sticky binding: %w", err)
	}
	return nil
}
