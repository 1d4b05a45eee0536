package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	reputation "github.com/zapdesk/golang_services/internal/reputation_service/app"
)

type MockRateInfoReader struct{ mock.Mock }

func (m *MockRateInfoReader) Info(ctx context.Context, lineID uuid.UUID) (reputation.Info, error) {
	args := m.Called(ctx, lineID)
	return args.Get(0).(reputation.Info), args.Error(1)
}

func newReputationRouter(reader RateInfoReader) *chi.Mux {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewReputationHandler(reader, logger)
	r := chi.NewRouter()
	r.Route("/api/v1", handler.RegisterRoutes)
	return r
}

func TestReputationHandler_ReturnsInfo(t *testing.T) {
	lineID := uuid.New()
	reader := new(MockRateInfoReader)
	reader.On("Info", mock.Anything, lineID).Return(reputation.Info{
		HourlyCount: 12,
		DailyCount:  80,
		Reputation:  reputation.Snapshot{HealthScore: 72.5, ResponseRate: 80},
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/lines/"+lineID.String()+"/reputation", nil)
	rec := httptest.NewRecorder()
	newReputationRouter(reader).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var info reputation.Info
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, 12, info.HourlyCount)
	assert.InDelta(t, 72.5, info.Reputation.HealthScore, 0.001)
}

func TestReputationHandler_RejectsBadLineID(t *testing.T) {
	reader := new(MockRateInfoReader)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/lines/not-a-uuid/reputation", nil)
	rec := httptest.NewRecorder()
	newReputationRouter(reader).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	reader.AssertNotCalled(t, "Info", mock.Anything, mock.Anything)
}
