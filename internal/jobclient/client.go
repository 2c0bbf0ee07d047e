// Package jobclient is the HTTP client for the daemon's job API. It is what
// the CLI and external integrations use to submit jobs and poll them to a
// terminal state.
package jobclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"clipper/internal/api"
	"clipper/internal/queue"
	"clipper/internal/services"
)

// Client talks to a clipper daemon's HTTP API.
type Client struct {
	baseURL      string
	token        string
	httpClient   *http.Client
	pollInterval time.Duration
}

// Option configures the client.
type Option func(*Client)

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

// WithPollInterval overrides the Watch polling cadence.
func WithPollInterval(interval time.Duration) Option {
	return func(c *Client) {
		if interval > 0 {
			c.pollInterval = interval
		}
	}
}

// WithHTTPClient substitutes the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// New builds a client for the API at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		pollInterval: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit enqueues a job.
func (c *Client) Submit(ctx context.Context, req api.SubmitRequest) (api.JobView, error) {
	var view api.JobView
	err := c.do(ctx, http.MethodPost, "/api/jobs", req, &view)
	return view, err
}

// Get fetches a job with its clip states.
func (c *Client) Get(ctx context.Context, id int64) (api.JobView, error) {
	var view api.JobView
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/jobs/%d", id), nil, &view)
	return view, err
}

// List fetches jobs, optionally filtered by status.
func (c *Client) List(ctx context.Context, status string) ([]api.JobView, error) {
	path := "/api/jobs"
	if trimmed := strings.TrimSpace(status); trimmed != "" {
		path += "?status=" + trimmed
	}
	var body struct {
		Jobs []api.JobView `json:"jobs"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &body); err != nil {
		return nil, err
	}
	return body.Jobs, nil
}

// Cancel requests cooperative cancellation.
func (c *Client) Cancel(ctx context.Context, id int64) (api.JobView, error) {
	var view api.JobView
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/jobs/%d/cancel", id), struct{}{}, &view)
	return view, err
}

// Retry re-queues a failed job.
func (c *Client) Retry(ctx context.Context, id int64) (api.JobView, error) {
	var view api.JobView
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/jobs/%d/retry", id), struct{}{}, &view)
	return view, err
}

// Watch polls a job until it reaches a terminal state. The onUpdate hook,
// when non-nil, fires for every observed progress change.
func (c *Client) Watch(ctx context.Context, id int64, onUpdate func(api.JobView)) (api.JobView, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	var lastPercent float64 = -1
	var lastStatus string
	for {
		view, err := c.Get(ctx, id)
		if err != nil {
			return api.JobView{}, err
		}
		if onUpdate != nil && (view.ProgressPercent != lastPercent || view.Status != lastStatus) {
			onUpdate(view)
			lastPercent = view.ProgressPercent
			lastStatus = view.Status
		}
		if status, ok := queue.ParseStatus(view.Status); ok && status.IsTerminal() {
			return view, nil
		}

		select {
		case <-ctx.Done():
			return view, ctx.Err()
		case <-ticker.C:
		}
	}
}

// APIError is a non-2xx response from the daemon.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("api returned status %d", e.StatusCode)
}

// Unwrap maps well-known API errors onto service sentinels so callers can
// branch with errors.Is.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return services.ErrNotFound
	case http.StatusUnprocessableEntity, http.StatusBadRequest:
		return services.ErrValidation
	case http.StatusTooManyRequests:
		return services.ErrQuota
	default:
		return nil
	}
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call daemon api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errBody api.ErrorBody
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		return &APIError{StatusCode: resp.StatusCode, Code: errBody.Code, Message: errBody.Message}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
