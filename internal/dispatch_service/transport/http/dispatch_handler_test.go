package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zapdesk/golang_services/internal/dispatch_service/app"
)

type MockDispatcher struct{ mock.Mock }

func (m *MockDispatcher) SendSingle(ctx context.Context, req app.SingleRequest) app.SingleResult {
	args := m.Called(ctx, req)
	return args.Get(0).(app.SingleResult)
}

func (m *MockDispatcher) SendBulk(ctx context.Context, req app.BulkRequest) app.BulkResult {
	args := m.Called(ctx, req)
	return args.Get(0).(app.BulkResult)
}

func newDispatchRouter(pipeline Dispatcher) *chi.Mux {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewDispatchHandler(pipeline, validator.New(), logger)
	r := chi.NewRouter()
	r.Route("/api/v1", handler.RegisterRoutes)
	return r
}

func postJSON(t *testing.T, router http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestDispatchHandler_SendSuccess(t *testing.T) {
	pipeline := new(MockDispatcher)
	pipeline.On("SendSingle", mock.Anything, mock.MatchedBy(func(r app.SingleRequest) bool {
		return r.Phone == "5511988887777" && r.SpecialistCode == "maria" && r.CallerIP != ""
	})).Return(app.SingleResult{Success: true})

	rec := postJSON(t, newDispatchRouter(pipeline), "/api/v1/messages/send", MessageDTO{
		Phone: "5511988887777", SpecialistCode: "maria", Text: "oi",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	pipeline.AssertExpectations(t)
}

func TestDispatchHandler_SendFailureMapsTo400(t *testing.T) {
	pipeline := new(MockDispatcher)
	pipeline.On("SendSingle", mock.Anything, mock.Anything).
		Return(app.SingleResult{Success: false, Reason: "compliance denied: number blocklisted"})

	rec := postJSON(t, newDispatchRouter(pipeline), "/api/v1/messages/send", MessageDTO{
		Phone: "5511988887777", SpecialistCode: "maria", Text: "oi",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var result app.SingleResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Contains(t, result.Reason, "blocklisted")
}

func TestDispatchHandler_SendRejectsMissingFields(t *testing.T) {
	pipeline := new(MockDispatcher)

	rec := postJSON(t, newDispatchRouter(pipeline), "/api/v1/messages/send", MessageDTO{Phone: "5511988887777"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	pipeline.AssertNotCalled(t, "SendSingle", mock.Anything, mock.Anything)
}

func TestDispatchHandler_BulkPartialMapsTo207(t *testing.T) {
	pipeline := new(MockDispatcher)
	pipeline.On("SendBulk", mock.Anything, mock.MatchedBy(func(r app.BulkRequest) bool {
		return r.Tag == "campanha" && len(r.Messages) == 2
	})).Return(app.BulkResult{
		Processed: 1,
		Errors:    []app.MessageError{{Phone: "5511900000002", Reason: "gateway send failed"}},
		Status:    app.BatchPartial,
	})

	rec := postJSON(t, newDispatchRouter(pipeline), "/api/v1/messages/bulk", BulkSendRequest{
		Tag: "campanha",
		Messages: []MessageDTO{
			{Phone: "5511900000001", SpecialistCode: "maria", Text: "oi"},
			{Phone: "5511900000002", SpecialistCode: "maria", Text: "oi"},
		},
	})

	assert.Equal(t, http.StatusMultiStatus, rec.Code)
	var result app.BulkResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 1, result.Processed)
	require.Len(t, result.Errors, 1)
}

func TestDispatchHandler_BulkRejectsEmptyBatch(t *testing.T) {
	pipeline := new(MockDispatcher)

	rec := postJSON(t, newDispatchRouter(pipeline), "/api/v1/messages/bulk", BulkSendRequest{Tag: "campanha"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	pipeline.AssertNotCalled(t, "SendBulk", mock.Anything, mock.Anything)
}

func TestDispatchHandler_BulkRejectsMalformedTemplateID(t *testing.T) {
	pipeline := new(MockDispatcher)

	rec := postJSON(t, newDispatchRouter(pipeline), "/api/v1/messages/bulk", BulkSendRequest{
		Tag: "campanha",
		Messages: []MessageDTO{
			{Phone: "5511900000001", SpecialistCode: "maria", TemplateID: "not-a-uuid"},
		},
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
