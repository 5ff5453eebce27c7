// Package gemini implements generator.Service against the Gemini
// streamGenerateContent REST endpoint using server-sent events.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/papercomputeco/lexchat/pkg/generator"
	"github.com/papercomputeco/lexchat/pkg/llm"
	"github.com/papercomputeco/lexchat/pkg/logger"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	DefaultModel   = "gemini-2.0-pro-exp-02-05"
)

// Config is the client configuration.
type Config struct {
	// APIKey is sent in the x-goog-api-key header.
	APIKey string

	// BaseURL of the API (default DefaultBaseURL).
	BaseURL string

	// Model used when a request does not name one (default DefaultModel).
	Model string

	// HTTPClient overrides the default client.
	HTTPClient *http.Client
}

// Client streams generations from Gemini.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a Client. A nil logger discards.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		// No Timeout: it would also bound reading the body and cut long
		// streams short. Requests end with their context or the service.
		httpClient = &http.Client{}
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		model:      model,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Model returns the default model name.
func (c *Client) Model() string {
	return c.model
}

// StreamGenerateContent sends req and returns a reader over the reply's SSE
// events. HTTP-level failures are returned here; failures inside the stream
// surface from Recv.
func (c *Client) StreamGenerateContent(ctx context.Context, req *llm.GenerateRequest) (generator.FragmentReader, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:streamGenerateContent?alt=sse", c.baseURL, url.PathEscape(model))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	c.logger.Debug("forwarding request to gemini",
		zap.String("model", model),
		zap.Int("body_size", len(reqBody)),
	)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		defer httpResp.Body.Close()
		body, _ := io.ReadAll(httpResp.Body)
		apiErr := decodeAPIError(httpResp.StatusCode, body)
		c.logger.Error("gemini returned error",
			zap.Int("status", httpResp.StatusCode),
			zap.String("body", logger.Preview(string(body), 200)),
		)
		return nil, apiErr
	}

	return newEventReader(httpResp.Body, c.logger), nil
}

func decodeAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: statusCode}

	var errResp llm.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		apiErr.Status = errResp.Error.Status
		apiErr.Message = errResp.Error.Message
		return apiErr
	}

	apiErr.Message = strings.TrimSpace(string(body))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(statusCode)
	}
	return apiErr
}

var _ generator.Service = (*Client)(nil)
