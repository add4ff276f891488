/**
 * @description
 * Generic JSON-over-HTTP client shared by the Users and Subscriptions gateways.
 * It attaches headers, enforces a per-call deadline and normalizes every
 * failure into NetworkError, TimeoutError or HTTPError.
 *
 * No retries: approve and create subscription are not idempotent.
 *
 * @dependencies
 * - github.com/go-resty/resty/v2: HTTP client.
 */
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultTimeout matches the admin console's historical request budget.
const DefaultTimeout = 10 * time.Second

// Client performs JSON requests against a single base URL.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *resty.Client
	logger  *slog.Logger
}

// Options configures a Client.
type Options struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Logger  *slog.Logger
}

// NewClient creates a transport client. A zero timeout falls back to DefaultTimeout.
func NewClient(opts Options) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	rc := resty.New().
		SetBaseURL(baseURL).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if key := strings.TrimSpace(opts.APIKey); key != "" {
		rc.SetHeader("X-Internal-API-Key", key)
	}

	return &Client{
		baseURL: baseURL,
		timeout: timeout,
		http:    rc,
		logger:  logger,
	}
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// URL resolves path against the base URL without issuing a request.
func (c *Client) URL(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

// Do issues the request and returns the raw response body on 2xx.
// body is serialized as JSON when non-nil. timeout <= 0 uses the client default.
func (c *Client) Do(ctx context.Context, method, path string, body any, timeout time.Duration) ([]byte, error) {
	if c.baseURL == "" {
		return nil, &NetworkError{Method: method, Path: path, Err: errors.New("base URL is not configured")}
	}
	if timeout <= 0 {
		timeout = c.timeout
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := c.http.R().SetContext(callCtx)
	if body != nil {
		req.SetBody(body)
	}

	started := time.Now()
	resp, err := req.Execute(method, path)
	if err != nil {
		classified := classify(callCtx, method, path, timeout, err)
		c.logger.Warn("remote call failed",
			"method", method,
			"path", path,
			"elapsed", time.Since(started).Round(time.Millisecond),
			"error", classified,
		)
		return nil, classified
	}

	c.logger.Debug("remote call completed",
		"method", method,
		"path", path,
		"status", resp.StatusCode(),
		"elapsed", time.Since(started).Round(time.Millisecond),
	)

	if !resp.IsSuccess() {
		return nil, &HTTPError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode(),
			Message:    errorMessage(resp.StatusCode(), resp.Body()),
		}
	}

	return resp.Body(), nil
}

// DoJSON is Do followed by json.Unmarshal into out. An empty body leaves out untouched.
func (c *Client) DoJSON(ctx context.Context, method, path string, body any, out any) error {
	raw, err := c.Do(ctx, method, path, body, 0)
	if err != nil {
		return err
	}
	if out == nil || len(strings.TrimSpace(string(raw))) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &DecodeError{Method: method, Path: path, Err: err}
	}
	return nil
}

// Get is shorthand for a GET returning the raw body.
func (c *Client) Get(ctx context.Context, path string) ([]byte, error) {
	return c.Do(ctx, http.MethodGet, path, nil, 0)
}

func classify(callCtx context.Context, method, path string, timeout time.Duration, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{Method: method, Path: path, Timeout: timeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TimeoutError{Method: method, Path: path, Timeout: timeout, Err: err}
	}
	return &NetworkError{Method: method, Path: path, Err: err}
}

// errorMessage pulls a human message out of an error body, falling back to the status text.
func errorMessage(status int, body []byte) string {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err == nil {
		for _, key := range []string{"message", "error", "msg", "mensaje"} {
			if s, ok := payload[key].(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return "unexpected status"
}
