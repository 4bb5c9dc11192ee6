package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client calls the newsletter API. Every request goes through Do, which
// prefixes the configured base URL.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Response struct {
	StatusCode int
	Data       map[string]interface{}
}

// APIError is returned for non-2xx responses. The decoded body is still
// available on the Response returned alongside it.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api returned %d: %s", e.StatusCode, e.Message)
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) Do(ctx context.Context, method, path string, body interface{}) (*Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-store")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	out := &Response{StatusCode: resp.StatusCode, Data: map[string]interface{}{}}
	// a non-JSON body leaves Data empty
	_ = json.NewDecoder(resp.Body).Decode(&out.Data)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := out.Data["error"].(string)
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return out, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	return out, nil
}

func (c *Client) Health(ctx context.Context) (*Response, error) {
	return c.Do(ctx, http.MethodGet, "/health", nil)
}

func (c *Client) Subscribe(ctx context.Context, email string) (*Response, error) {
	return c.Do(ctx, http.MethodPost, "/api/v1/subscribe", map[string]string{"email": email})
}
