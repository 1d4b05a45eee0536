package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/zapdesk/golang_services/internal/core_messaging/domain"
)

// CapacityEnforcer applies a new per-line operator cap across a
// segment. Satisfied by the allocator.
type CapacityEnforcer interface {
	ApplySegmentCapacity(ctx context.Context, segmentID uuid.UUID, maxOperators int) (int, error)
}

// SetCapacityRequest DTO for PUT /segments/{segmentID}/capacity.
type SetCapacityRequest struct {
	MaxOperators *int `json:"max_operators" validate:"required,min=0"`
}

// SetCapacityResponse reports how many bindings the enforcement
// removed.
type SetCapacityResponse struct {
	OperatorsRemoved int `json:"operators_removed"`
}

type SegmentHandler struct {
	allocator CapacityEnforcer
	validate  *validator.Validate
	logger    *slog.Logger
}

func NewSegmentHandler(allocator CapacityEnforcer, validate *validator.Validate, logger *slog.Logger) *SegmentHandler {
	return &SegmentHandler{
		allocator: allocator,
		validate:  validate,
		logger:    logger.With("handler", "segment"),
	}
}

func (h *SegmentHandler) RegisterRoutes(r chi.Router) {
	r.Put("/segments/{segmentID}/capacity", h.handleSetCapacity)
}

func (h *SegmentHandler) handleSetCapacity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	segmentID, err := uuid.Parse(chi.URLParam(r, "segmentID"))
	if err != nil {
		h.jsonError(ctx, w, logger, "Invalid segment ID format", http.StatusBadRequest)
		return
	}

	var req SetCapacityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(ctx, w, logger, "Invalid request payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.jsonError(ctx, w, logger, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	removed, err := h.allocator.ApplySegmentCapacity(ctx, segmentID, *req.MaxOperators)
	if err != nil {
		var validationErr *domain.ValidationError
		if errors.As(err, &validationErr) {
			h.jsonError(ctx, w, logger, validationErr.Error(), http.StatusBadRequest)
			return
		}
		logger.ErrorContext(ctx, "Failed to apply segment capacity", "error", err, "segment_id", segmentID)
		h.jsonError(ctx, w, logger, "Failed to apply segment capacity", http.StatusInternalServerError)
		return
	}

	logger.InfoContext(ctx, "Segment capacity applied",
		"segment_id", segmentID, "max_operators", *req.MaxOperators, "operators_removed", removed)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(SetCapacityResponse{OperatorsRemoved: removed})
}

func (h *SegmentHandler) jsonError(ctx context.Context, w http.ResponseWriter, logger *slog.Logger, message string, statusCode int) {
	logger.WarnContext(ctx, "API error response", "status_code", statusCode, "message", message)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
