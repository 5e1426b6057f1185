package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"notifeeder/internal/version"
)

// DefaultTimeout bounds every feed request.
const DefaultTimeout = 12 * time.Second

// maxBody caps how much of a feed response is read.
const maxBody = 16 << 20

// Client provides a bounded HTTP client shared by the fetcher and notifier backends
type Client struct {
	httpClient *http.Client
}

// New creates a new HTTP client with the specified timeout
func New(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Get performs a GET request with proper context and headers
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", "notifeeder/"+version.Version)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	return c.httpClient.Do(req)
}

// Post performs a POST request with proper context and headers
func (c *Client) Post(ctx context.Context, url string, body io.Reader, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", "notifeeder/"+version.Version)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	if headers == nil || headers["Content-Type"] == "" {
		req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	}

	return c.httpClient.Do(req)
}

// Fetch GETs url and returns the body. Non-2xx responses are errors.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.Get(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return data, nil
}
