package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
)

// BrowserClient fetches pages through headless Chrome so script-assembled
// markup is present in the returned HTML. Each Fetch runs in an isolated
// browser that is torn down before returning, whatever the outcome.
type BrowserClient struct {
	remoteURL  string
	waitFor    string
	renderWait time.Duration
	logger     *slog.Logger
}

// BrowserOption customises a BrowserClient.
type BrowserOption func(*BrowserClient)

// WithRemoteBrowser connects to an already-running Chrome over its
// WebSocket URL instead of launching one per fetch.
func WithRemoteBrowser(wsURL string) BrowserOption {
	return func(c *BrowserClient) { c.remoteURL = wsURL }
}

// WithWaitSelector blocks until the given CSS selector appears before
// reading the DOM, up to the render wait budget.
func WithWaitSelector(sel string) BrowserOption {
	return func(c *BrowserClient) { c.waitFor = sel }
}

// WithRenderWait bounds how long a fetch waits for the page to settle.
// Default: 20s.
func WithRenderWait(d time.Duration) BrowserOption {
	return func(c *BrowserClient) { c.renderWait = d }
}

// WithBrowserLogger sets the logger. Default: slog.Default().
func WithBrowserLogger(l *slog.Logger) BrowserOption {
	return func(c *BrowserClient) { c.logger = l }
}

// NewBrowserClient creates a rendered-page fetcher.
func NewBrowserClient(opts ...BrowserOption) *BrowserClient {
	c := &BrowserClient{
		renderWait: 20 * time.Second,
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Fetch navigates to the URL in a stealth page, waits for rendering, and
// returns the serialised DOM. A missing wait selector or load timeout is
// not fatal: whatever rendered by the deadline is returned.
func (c *BrowserClient) Fetch(ctx context.Context, url string) ([]byte, error) {
	browser, cleanup, err := c.connect()
	if err != nil {
		return nil, &Error{URL: url, Err: err}
	}
	defer cleanup()

	page, err := stealth.Page(browser)
	if err != nil {
		return nil, &Error{URL: url, Err: fmt.Errorf("create page: %w", err)}
	}
	defer page.Close()

	navCtx, cancel := context.WithTimeout(ctx, c.renderWait)
	defer cancel()

	if err := page.Context(navCtx).Navigate(url); err != nil {
		return nil, &Error{URL: url, Err: fmt.Errorf("navigate: %w", err)}
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		c.logger.Warn("fetch: wait load timeout", "url", url, "error", err)
	}
	if c.waitFor != "" {
		if _, err := page.Context(navCtx).Element(c.waitFor); err != nil {
			c.logger.Warn("fetch: wait selector not found", "url", url, "selector", c.waitFor, "error", err)
		}
	}

	res, err := page.Context(ctx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return nil, &Error{URL: url, Err: fmt.Errorf("read DOM: %w", err)}
	}
	return []byte(res.Value.Str()), nil
}

// connect attaches to the remote browser or launches a local headless one.
// The returned cleanup closes the browser and, for local launches, reaps
// the Chrome process.
func (c *BrowserClient) connect() (*rod.Browser, func(), error) {
	if c.remoteURL != "" {
		b := rod.New().ControlURL(c.remoteURL)
		if err := b.Connect(); err != nil {
			return nil, nil, fmt.Errorf("connect remote browser: %w", err)
		}
		return b, func() { b.Close() }, nil
	}

	l := launcher.New().
		Headless(true).
		Set("disable-blink-features", "AutomationControlled")
	wsURL, err := l.Launch()
	if err != nil {
		return nil, nil, fmt.Errorf("launch browser: %w", err)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		l.Cleanup()
		return nil, nil, fmt.Errorf("connect browser: %w", err)
	}
	return b, func() {
		b.Close()
		l.Cleanup()
	}, nil
}
