package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHTTPClient_SendTextSuccess(t *testing.T) {
	var gotPath, gotAPIKey string
	var gotBody sendTextRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAPIKey = r.Header.Get("apikey")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(sendResponse{MessageID: "gw-123"})
	}))
	defer server.Close()

	client := NewHTTPClient(discardLogger(), server.URL, "secret-key", 5*time.Second, 2*time.Second, nil)
	result, err := client.SendText(context.Background(), "instance-a", "5511999998888", "hello")
	require.NoError(t, err)

	assert.Equal(t, "gw-123", result.GatewayMessageID)
	assert.Equal(t, "fallback", result.Channel)
	assert.Equal(t, "/instances/instance-a/messages/text", gotPath)
	assert.Equal(t, "secret-key", gotAPIKey)
	assert.Equal(t, "5511999998888", gotBody.Phone)
	assert.Equal(t, "hello", gotBody.Text)
}

func TestHTTPClient_SendTemplateCloudUsesLineCredentials(t *testing.T) {
	var gotBody sendTemplateCloudRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(sendResponse{MessageID: "cloud-1"})
	}))
	defer server.Close()

	client := NewHTTPClient(discardLogger(), server.URL, "secret-key", 5*time.Second, 2*time.Second, nil)
	result, err := client.SendTemplateCloud(context.Background(), "num-1", "line-token", "welcome", []string{"Ana"})
	require.NoError(t, err)

	assert.Equal(t, "official", result.Channel)
	assert.Equal(t, "num-1", gotBody.NumberID)
	assert.Equal(t, "line-token", gotBody.Token)
	assert.Equal(t, []string{"Ana"}, gotBody.Variables)
}

func TestHTTPClient_ErrorStatusReturnsGatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(errorResponse{Status: 422, Message: "template not approved"})
	}))
	defer server.Close()

	client := NewHTTPClient(discardLogger(), server.URL, "k", 5*time.Second, 2*time.Second, nil)
	_, err := client.SendTemplate(context.Background(), "instance-a", "5511999998888", "promo", "pt_BR", nil)
	require.Error(t, err)

	var gwErr *Error
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, http.StatusUnprocessableEntity, gwErr.StatusCode)
	assert.Equal(t, "template not approved", gwErr.Message)
}

func TestHTTPClient_FetchGroupName(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/instances/instance-a/groups/g-42", r.URL.Path)
		json.NewEncoder(w).Encode(groupNameResponse{Name: "Suporte VIP"})
	}))
	defer server.Close()

	client := NewHTTPClient(discardLogger(), server.URL, "k", 5*time.Second, 2*time.Second, nil)
	name, err := client.FetchGroupName(context.Background(), "instance-a", "g-42")
	require.NoError(t, err)
	assert.Equal(t, "Suporte VIP", name)
}

func TestHTTPClient_FetchRecentMessages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "50", r.URL.Query().Get("limit"))
		io.WriteString(w, `{"messages":[{"sender":"5511900001111","body":"oi","sent_at":"2025-06-01T12:00:00Z"}]}`)
	}))
	defer server.Close()

	client := NewHTTPClient(discardLogger(), server.URL, "k", 5*time.Second, 2*time.Second, nil)
	messages, err := client.FetchRecentMessages(context.Background(), "instance-a", 50)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "5511900001111", messages[0].Sender)
	assert.Equal(t, "oi", messages[0].Body)
}
