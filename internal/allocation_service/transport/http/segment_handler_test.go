package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCapacityEnforcer struct{ mock.Mock }

func (m *MockCapacityEnforcer) ApplySegmentCapacity(ctx context.Context, segmentID uuid.UUID, maxOperators int) (int, error) {
	args := m.Called(ctx, segmentID, maxOperators)
	return args.Int(0), args.Error(1)
}

func newSegmentRouter(enforcer CapacityEnforcer) *chi.Mux {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewSegmentHandler(enforcer, validator.New(), logger)
	r := chi.NewRouter()
	r.Route("/api/v1", handler.RegisterRoutes)
	return r
}

func TestSegmentHandler_AppliesCapacity(t *testing.T) {
	segmentID := uuid.New()
	enforcer := new(MockCapacityEnforcer)
	enforcer.On("ApplySegmentCapacity", mock.Anything, segmentID, 1).Return(2, nil)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/segments/"+segmentID.String()+"/capacity",
		strings.NewReader(`{"max_operators":1}`))
	rec := httptest.NewRecorder()
	newSegmentRouter(enforcer).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp SetCapacityResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.OperatorsRemoved)
	enforcer.AssertExpectations(t)
}

func TestSegmentHandler_RejectsMissingCapacity(t *testing.T) {
	enforcer := new(MockCapacityEnforcer)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/segments/"+uuid.NewString()+"/capacity",
		strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	newSegmentRouter(enforcer).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	enforcer.AssertNotCalled(t, "ApplySegmentCapacity", mock.Anything, mock.Anything, mock.Anything)
}

func TestSegmentHandler_RejectsBadSegmentID(t *testing.T) {
	enforcer := new(MockCapacityEnforcer)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/segments/not-a-uuid/capacity",
		strings.NewReader(`{"max_operators":1}`))
	rec := httptest.NewRecorder()
	newSegmentRouter(enforcer).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
