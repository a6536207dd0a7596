package googleapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const maxResponseBytes = 8 << 20

// APIError is returned for non-2xx responses from a Google API
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("google api returned status %d: %s", e.StatusCode, e.Body)
}

// UpstreamRecorder receives per-call telemetry
type UpstreamRecorder interface {
	RecordUpstream(service string, status int)
}

// Client issues authenticated JSON requests to Google APIs
type Client struct {
	tokens     TokenSource
	httpClient *http.Client
	recorder   UpstreamRecorder
	logger     *zap.Logger
}

// NewClient creates a Client. recorder may be nil.
func NewClient(tokens TokenSource, httpClient *http.Client, recorder UpstreamRecorder, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		tokens:     tokens,
		httpClient: httpClient,
		recorder:   recorder,
		logger:     logger,
	}
}

// Request describes a single API call
type Request struct {
	Method string
	URL    string
	Scopes []string
	Body   interface{} // JSON-encoded when non-nil
}

// Do performs req and decodes the JSON response into out (when non-nil)
func (c *Client) Do(ctx context.Context, req Request, out interface{}) error {
	token, err := c.tokens.Token(ctx, req.Scopes...)
	if err != nil {
		return err
	}

	var body io.Reader
	if req.Body != nil {
		raw, err := json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	method := req.Method
	if method == "" {
		method = http.MethodPost
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	service := serviceName(req.URL)
	start := time.Now()

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.record(service, 0)
		return fmt.Errorf("%s request failed: %w", service, err)
	}
	defer resp.Body.Close()
	c.record(service, resp.StatusCode)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read %s response: %w", service, err)
	}

	c.logger.Debug("google api call",
		zap.String("service", service),
		zap.String("method", method),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", service, err)
	}
	return nil
}

func (c *Client) record(service string, status int) {
	if c.recorder != nil {
		c.recorder.RecordUpstream(service, status)
	}
}

// serviceName derives a metric label from an API host, e.g. "firestore"
func serviceName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	host := u.Hostname()
	if name, _, ok := strings.Cut(host, "."); ok && strings.HasSuffix(host, ".googleapis.com") {
		return name
	}
	return host
}

// IsStatus reports whether err is an APIError with the given status code
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}
