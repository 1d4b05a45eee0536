package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	reputation "github.com/zapdesk/golang_services/internal/reputation_service/app"
)

// RateInfoReader reports a line's rate standing, reputation included.
type RateInfoReader interface {
	Info(ctx context.Context, lineID uuid.UUID) (reputation.Info, error)
}

type ReputationHandler struct {
	rateGate RateInfoReader
	logger   *slog.Logger
}

func NewReputationHandler(rateGate RateInfoReader, logger *slog.Logger) *ReputationHandler {
	return &ReputationHandler{
		rateGate: rateGate,
		logger:   logger.With("handler", "reputation"),
	}
}

func (h *ReputationHandler) RegisterRoutes(r chi.Router) {
	r.Get("/lines/{lineID}/reputation", h.handleGetReputation)
}

func (h *ReputationHandler) handleGetReputation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	lineID, err := uuid.Parse(chi.URLParam(r, "lineID"))
	if err != nil {
		logger.WarnContext(ctx, "Invalid line ID format", "line_id", chi.URLParam(r, "lineID"))
		writeJSON(w, http.StatusBadRequest, GenericErrorResponse{Error: "Invalid line ID format"})
		return
	}

	info, err := h.rateGate.Info(ctx, lineID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to compute line rate info", "error", err, "line_id", lineID)
		writeJSON(w, http.StatusInternalServerError, GenericErrorResponse{Error: "Failed to compute line reputation"})
		return
	}

	writeJSON(w, http.StatusOK, info)
}
