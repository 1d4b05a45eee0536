package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	defaultSendTimeout  = 30 * time.Second
	defaultFetchTimeout = 5 * time.Second
	typingTimeout       = 3 * time.Second
)

// HTTPClient talks JSON over HTTP to the messaging gateway. Every
// request carries the shared API key; per-call timeouts are bounded by
// call type (sends are allowed to run long, fetches and side calls are
// not).
type HTTPClient struct {
	logger       *slog.Logger
	httpClient   *http.Client
	baseURL      string
	apiKey       string
	sendTimeout  time.Duration
	fetchTimeout time.Duration
}

func NewHTTPClient(logger *slog.Logger, baseURL, apiKey string, sendTimeout, fetchTimeout time.Duration, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}
	if fetchTimeout <= 0 {
		fetchTimeout = defaultFetchTimeout
	}
	return &HTTPClient{
		logger:       logger.With("component", "gateway_http_client"),
		httpClient:   httpClient,
		baseURL:      baseURL,
		apiKey:       apiKey,
		sendTimeout:  sendTimeout,
		fetchTimeout: fetchTimeout,
	}
}

type sendTextRequest struct {
	Phone string `json:"phone"`
	Text  string `json:"text"`
}

type sendTemplateRequest struct {
	Phone        string   `json:"phone"`
	TemplateName string   `json:"template_name"`
	Language     string   `json:"language"`
	Variables    []string `json:"variables,omitempty"`
}

type sendTemplateCloudRequest struct {
	NumberID     string   `json:"number_id"`
	Token        string   `json:"token"`
	TemplateName string   `json:"template_name"`
	Variables    []string `json:"variables,omitempty"`
}

type sendResponse struct {
	MessageID string `json:"message_id"`
}

type errorResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

type groupNameResponse struct {
	Name string `json:"name"`
}

type recentMessagesResponse struct {
	Messages []struct {
		Sender  string    `json:"sender"`
		Body    string    `json:"body"`
		GroupID string    `json:"group_id"`
		SentAt  time.Time `json:"sent_at"`
	} `json:"messages"`
}

func (c *HTTPClient) SendText(ctx context.Context, instance, phone, text string) (*SendResult, error) {
	var resp sendResponse
	path := fmt.Sprintf("/instances/%s/messages/text", instance)
	if err := c.doJSON(ctx, http.MethodPost, path, sendTextRequest{Phone: phone, Text: text}, &resp, c.sendTimeout); err != nil {
		return nil, err
	}
	return &SendResult{GatewayMessageID: resp.MessageID, Channel: "fallback"}, nil
}

func (c *HTTPClient) SendTemplate(ctx context.Context, instance, phone, templateName, language string, variables []string) (*SendResult, error) {
	var resp sendResponse
	path := fmt.Sprintf("/instances/%s/messages/template", instance)
	body := sendTemplateRequest{Phone: phone, TemplateName: templateName, Language: language, Variables: variables}
	if err := c.doJSON(ctx, http.MethodPost, path, body, &resp, c.sendTimeout); err != nil {
		return nil, err
	}
	return &SendResult{GatewayMessageID: resp.MessageID, Channel: "fallback"}, nil
}

func (c *HTTPClient) SendTemplateCloud(ctx context.Context, numberID, token, templateName string, variables []string) (*SendResult, error) {
	var resp sendResponse
	body := sendTemplateCloudRequest{NumberID: numberID, Token: token, TemplateName: templateName, Variables: variables}
	if err := c.doJSON(ctx, http.MethodPost, "/cloud/messages/template", body, &resp, c.sendTimeout); err != nil {
		return nil, err
	}
	return &SendResult{GatewayMessageID: resp.MessageID, Channel: "official"}, nil
}

func (c *HTTPClient) SendTyping(ctx context.Context, instance, phone string) error {
	path := fmt.Sprintf("/instances/%s/typing", instance)
	return c.doJSON(ctx, http.MethodPost, path, sendTextRequest{Phone: phone}, nil, typingTimeout)
}

func (c *HTTPClient) FetchGroupName(ctx context.Context, instance, groupID string) (string, error) {
	var resp groupNameResponse
	path := fmt.Sprintf("/instances/%s/groups/%s", instance, groupID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp, c.fetchTimeout); err != nil {
		return "", err
	}
	return resp.Name, nil
}

func (c *HTTPClient) FetchRecentMessages(ctx context.Context, instance string, limit int) ([]RecentMessage, error) {
	var resp recentMessagesResponse
	path := fmt.Sprintf("/instances/%s/messages/recent?limit=%d", instance, limit)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp, c.fetchTimeout); err != nil {
		return nil, err
	}
	messages := make([]RecentMessage, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		messages = append(messages, RecentMessage{Sender: m.Sender, Body: m.Body, GroupID: m.GroupID, SentAt: m.SentAt})
	}
	return messages, nil
}

func (c *HTTPClient) doJSON(ctx context.Context, method, path string, payload, out any, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var bodyReader io.Reader
	if payload != nil {
		reqBytes, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshaling gateway request: %w", err)
		}
		bodyReader = bytes.NewReader(reqBytes)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating gateway request: %w", err)
	}
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("apikey", c.apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.ErrorContext(ctx, "Gateway request failed", "method", method, "path", path, "error", err)
		return fmt.Errorf("calling gateway %s %s: %w", method, path, err)
	}
	defer httpResp.Body.Close()

	respBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("reading gateway response (status %d): %w", httpResp.StatusCode, err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		gwErr := &Error{StatusCode: httpResp.StatusCode}
		var parsed errorResponse
		if json.Unmarshal(respBytes, &parsed) == nil {
			gwErr.Message = parsed.Message
		}
		c.logger.WarnContext(ctx, "Gateway rejected call", "method", method, "path", path, "status_code", httpResp.StatusCode, "message", gwErr.Message)
		return gwErr
	}

	if out != nil && len(respBytes) > 0 {
		if err := json.Unmarshal(respBytes, out); err != nil {
			c.logger.WarnContext(ctx, "Gateway call succeeded but response did not parse", "method", method, "path", path, "error", err)
		}
	}
	return nil
}
