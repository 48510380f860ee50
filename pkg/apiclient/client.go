// Package apiclient provides REST clients for the lease manager and task
// dispatcher services.
//
// One Client speaks to one service: point it at the lease manager base URL
// for the lease methods, or at the dispatcher base URL for the task methods.
// All methods take a context and honor its deadline in addition to the
// client's own request timeout.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds each request when no explicit timeout is configured.
const DefaultTimeout = 30 * time.Second

// Client is a tasklease service API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new API client with the default request timeout.
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// WithTimeout returns a new client whose requests time out after d.
//
// Callers that renew leases must keep the timeout well under half the lease
// TTL, so a timed-out renewal still leaves room for a retry before expiry.
func (c *Client) WithTimeout(d time.Duration) *Client {
	return &Client{
		baseURL: c.baseURL,
		httpClient: &http.Client{
			Timeout: d,
		},
	}
}

// BaseURL returns the service base URL this client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// do performs an HTTP request and decodes the response.
// Returns the HTTP status code alongside any error so callers can tell
// bodyless successes (204) apart.
func (c *Client) do(ctx context.Context, method, path string, body, result any) (int, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr APIError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			apiErr.StatusCode = resp.StatusCode
			return resp.StatusCode, &apiErr
		}
		return resp.StatusCode, &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
		}
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return resp.StatusCode, nil
}

// get performs a GET request.
func (c *Client) get(ctx context.Context, path string, result any) error {
	_, err := c.do(ctx, http.MethodGet, path, nil, result)
	return err
}

// post performs a POST request.
func (c *Client) post(ctx context.Context, path string, body, result any) error {
	_, err := c.do(ctx, http.MethodPost, path, body, result)
	return err
}

// put performs a PUT request.
func (c *Client) put(ctx context.Context, path string, body, result any) error {
	_, err := c.do(ctx, http.MethodPut, path, body, result)
	return err
}

// delete performs a DELETE request.
func (c *Client) delete(ctx context.Context, path string, result any) error {
	_, err := c.do(ctx, http.MethodDelete, path, nil, result)
	return err
}

// Health is the /healthz response body.
type Health struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Healthz checks the service liveness endpoint.
func (c *Client) Healthz(ctx context.Context) (*Health, error) {
	var health Health
	if err := c.get(ctx, "/healthz", &health); err != nil {
		return nil, err
	}
	return &health, nil
}
