package gallery

import (
	"time"
)

// Config configures the gallery service.
type Config struct {
	// BaseURL is the source site root. Relative listing links resolve
	// against it and search URLs are built from it.
	BaseURL string

	// RulesPath optionally points at a YAML ruleset overriding the
	// built-in selectors. Empty uses the defaults.
	RulesPath string

	// RenderPages routes fetches through headless Chrome so
	// script-assembled markup is visible to the parser.
	RenderPages bool

	// BrowserURL is the WebSocket URL of an external Chrome. Empty
	// launches a local one per fetch.
	BrowserURL string

	// FetchTimeout bounds one direct HTTP fetch.
	FetchTimeout time.Duration

	// RenderWait bounds how long a rendered fetch waits for the page.
	RenderWait time.Duration

	// RetryAttempts and RetryBackoff govern fetch and persistence
	// retries inside one extraction.
	RetryAttempts int
	RetryBackoff  time.Duration

	// MediaWorkers caps concurrent media upserts per extraction.
	MediaWorkers int

	// SearchCacheTTL is the freshness window for cached search results.
	SearchCacheTTL time.Duration

	// ProgressRetention is how long finished progress entries stay
	// visible before the reaper removes them.
	ProgressRetention time.Duration

	// PageSize is the default gallery listing page size.
	PageSize int
}

func (c *Config) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://motherless.com"
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 30 * time.Second
	}
	if c.RenderWait <= 0 {
		c.RenderWait = 20 * time.Second
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 3
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 500 * time.Millisecond
	}
	if c.MediaWorkers <= 0 {
		c.MediaWorkers = 8
	}
	if c.SearchCacheTTL <= 0 {
		c.SearchCacheTTL = 24 * time.Hour
	}
	if c.ProgressRetention <= 0 {
		c.ProgressRetention = 5 * time.Minute
	}
	if c.PageSize <= 0 {
		c.PageSize = 20
	}
}

func defaultConfig() *Config {
	c := &Config{}
	c.defaults()
	return c
}
