package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/zapdesk/golang_services/internal/dispatch_service/app"
)

// Dispatcher is the handler's view of the dispatch pipeline.
type Dispatcher interface {
	SendSingle(ctx context.Context, req app.SingleRequest) app.SingleResult
	SendBulk(ctx context.Context, req app.BulkRequest) app.BulkResult
}

type DispatchHandler struct {
	pipeline Dispatcher
	validate *validator.Validate
	logger   *slog.Logger
}

func NewDispatchHandler(pipeline Dispatcher, validate *validator.Validate, logger *slog.Logger) *DispatchHandler {
	return &DispatchHandler{
		pipeline: pipeline,
		validate: validate,
		logger:   logger.With("handler", "dispatch"),
	}
}

func (h *DispatchHandler) RegisterRoutes(r chi.Router) {
	r.Post("/messages/send", h.handleSend)
	r.Post("/messages/bulk", h.handleBulk)
}

func (h *DispatchHandler) handleSend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	var dto MessageDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.jsonError(ctx, w, logger, "Invalid request payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(dto); err != nil {
		h.jsonError(ctx, w, logger, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}
	msg, err := dto.toMessageRequest()
	if err != nil {
		h.jsonError(ctx, w, logger, "Invalid template_id", http.StatusBadRequest)
		return
	}

	result := h.pipeline.SendSingle(ctx, app.SingleRequest{
		Phone:          msg.Phone,
		SpecialistCode: msg.SpecialistCode,
		TemplateID:     msg.TemplateID,
		Text:           msg.Text,
		Variables:      msg.Variables,
		CallerIP:       callerIP(r),
	})

	status := http.StatusOK
	if !result.Success {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, result)
}

func (h *DispatchHandler) handleBulk(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	var dto BulkSendRequest
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.jsonError(ctx, w, logger, "Invalid request payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(dto); err != nil {
		h.jsonError(ctx, w, logger, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	req := app.BulkRequest{Tag: dto.Tag, CallerIP: callerIP(r)}
	for _, m := range dto.Messages {
		msg, err := m.toMessageRequest()
		if err != nil {
			h.jsonError(ctx, w, logger, "Invalid template_id for phone "+m.Phone, http.StatusBadRequest)
			return
		}
		req.Messages = append(req.Messages, msg)
	}

	logger.InfoContext(ctx, "Bulk send accepted", "tag", dto.Tag, "messages", len(dto.Messages))
	result := h.pipeline.SendBulk(ctx, req)
	writeJSON(w, result.Status.HTTPStatus(), result)
}

func (h *DispatchHandler) jsonError(ctx context.Context, w http.ResponseWriter, logger *slog.Logger, message string, statusCode int) {
	logger.WarnContext(ctx, "API error response", "status_code", statusCode, "message", message)
	writeJSON(w, statusCode, GenericErrorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// callerIP extracts the remote address for audit. A forwarded header
// wins over the socket peer when present.
func callerIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
