// Package fetch retrieves page HTML for extraction, either over plain HTTP
// or through a headless Chrome when the source assembles its markup with
// scripts.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client fetches the HTML document at a URL. Implementations return the raw
// body bytes and do not retry; retry policy belongs to the caller.
type Client interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Error reports a failed fetch. StatusCode is zero when the failure happened
// before a response arrived (dial, TLS, timeout).
type Error struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

const (
	// Desktop Chrome UA. Sources serve a stripped mobile page, or a block
	// page, to clients that look like bots.
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

	defaultTimeout = 30 * time.Second
	defaultMaxBody = 10 << 20 // 10MB
)

// HTTPClient fetches pages with a plain HTTP GET.
type HTTPClient struct {
	client    *http.Client
	userAgent string
	maxBody   int64
}

// HTTPOption customises an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithHTTPTimeout sets the per-request timeout. Default: 30s.
func WithHTTPTimeout(d time.Duration) HTTPOption {
	return func(c *HTTPClient) { c.client.Timeout = d }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) HTTPOption {
	return func(c *HTTPClient) { c.userAgent = ua }
}

// WithMaxBody caps how many response bytes are read. Default: 10MB.
func WithMaxBody(n int64) HTTPOption {
	return func(c *HTTPClient) { c.maxBody = n }
}

// NewHTTPClient creates a direct HTTP fetcher.
func NewHTTPClient(opts ...HTTPOption) *HTTPClient {
	c := &HTTPClient{
		client:    &http.Client{Timeout: defaultTimeout},
		userAgent: defaultUserAgent,
		maxBody:   defaultMaxBody,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Fetch performs a single GET and returns the body. Non-2xx statuses are an
// *Error carrying the status code so callers can decide whether to retry.
func (c *HTTPClient) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Error{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &Error{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody))
	if err != nil {
		return nil, &Error{URL: url, Err: fmt.Errorf("read body: %w", err)}
	}
	return body, nil
}
