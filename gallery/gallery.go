// Package gallery orchestrates gallery extraction: fetch a detail page,
// parse its media and metadata, and persist everything into the local cache
// behind idempotent upserts. It also serves cached search, listing queries,
// and download progress tracking.
package gallery

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"gallerydl/gallery/internal/fetch"
	"gallerydl/gallery/internal/parse"
	"gallerydl/gallery/internal/store"
	"gallerydl/gallery/internal/urlsafe"
	"gallerydl/idgen"
)

// Service is the gallery orchestrator.
type Service struct {
	store   *store.Store
	fetcher fetch.Client
	parser  *parse.Parser
	rules   *parse.Ruleset
	logger  *slog.Logger
	config  *Config
	newID   idgen.Generator
	cron    *cron.Cron

	urlValidator func(string) error

	// Overridable in tests to inject persistence failures.
	upsertImage func(ctx context.Context, img *store.Image) error
	upsertVideo func(ctx context.Context, v *store.Video) error
}

// Fetcher retrieves the HTML document at a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// ServiceOption configures a Service during creation.
type ServiceOption func(*Service)

// WithFetcher overrides the page fetcher. Use in tests with a stub returning
// canned markup.
func WithFetcher(f Fetcher) ServiceOption {
	return func(svc *Service) { svc.fetcher = f }
}

// WithIDGenerator overrides row id generation.
func WithIDGenerator(g idgen.Generator) ServiceOption {
	return func(svc *Service) { svc.newID = g }
}

// WithURLValidator overrides the outbound URL check (default:
// urlsafe.ValidateURL). Use in tests with httptest servers that listen on
// loopback addresses.
func WithURLValidator(fn func(string) error) ServiceOption {
	return func(svc *Service) { svc.urlValidator = fn }
}

// New creates a gallery Service on an already-opened cache database.
// The schema is applied idempotently.
func New(db *sql.DB, cfg *Config, logger *slog.Logger, opts ...ServiceOption) (*Service, error) {
	if cfg == nil {
		cfg = defaultConfig()
	}
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}

	if err := store.ApplySchema(db); err != nil {
		return nil, fmt.Errorf("gallery: apply schema: %w", err)
	}

	rules := parse.DefaultRules()
	if cfg.RulesPath != "" {
		loaded, err := parse.LoadRules(cfg.RulesPath)
		if err != nil {
			return nil, fmt.Errorf("gallery: %w", err)
		}
		rules = loaded
	}
	parser, err := parse.New(rules)
	if err != nil {
		return nil, fmt.Errorf("gallery: compile rules: %w", err)
	}

	svc := &Service{
		store:        store.NewStore(db),
		parser:       parser,
		rules:        rules,
		logger:       logger,
		config:       cfg,
		newID:        idgen.Default,
		urlValidator: urlsafe.ValidateURL,
	}
	for _, opt := range opts {
		opt(svc)
	}

	if svc.fetcher == nil {
		if cfg.RenderPages {
			svc.fetcher = fetch.NewBrowserClient(
				fetch.WithRemoteBrowser(cfg.BrowserURL),
				fetch.WithRenderWait(cfg.RenderWait),
				fetch.WithBrowserLogger(logger),
			)
		} else {
			svc.fetcher = fetch.NewHTTPClient(fetch.WithHTTPTimeout(cfg.FetchTimeout))
		}
	}

	svc.upsertImage = svc.store.UpsertImage
	svc.upsertVideo = svc.store.UpsertVideo
	return svc, nil
}

// Start launches the background maintenance jobs: reaping finished progress
// entries and expiring stale search rows. Non-blocking; stop with Close.
func (svc *Service) Start(ctx context.Context) error {
	c := cron.New()
	_, err := c.AddFunc("@every 1m", func() {
		cutoff := time.Now().Add(-svc.config.ProgressRetention)
		n, err := svc.store.ReapProgress(ctx, cutoff)
		if err != nil {
			svc.logger.Error("gallery: progress reap failed", "error", err)
			return
		}
		if n > 0 {
			svc.logger.Debug("gallery: reaped progress entries", "count", n)
		}
	})
	if err != nil {
		return fmt.Errorf("gallery: schedule progress reaper: %w", err)
	}
	// Stale search rows are only dead weight past the freshness window;
	// expire them at a week so repeated queries keep some history.
	_, err = c.AddFunc("@every 1h", func() {
		cutoff := time.Now().Add(-7 * svc.config.SearchCacheTTL)
		n, err := svc.store.DeleteStaleResults(ctx, cutoff)
		if err != nil {
			svc.logger.Error("gallery: search cleanup failed", "error", err)
			return
		}
		if n > 0 {
			svc.logger.Debug("gallery: expired search rows", "count", n)
		}
	})
	if err != nil {
		return fmt.Errorf("gallery: schedule search cleanup: %w", err)
	}
	c.Start()
	svc.cron = c
	return nil
}

// Close stops the background jobs and waits for in-flight runs.
func (svc *Service) Close() {
	if svc.cron != nil {
		<-svc.cron.Stop().Done()
	}
}

// ExtractResult summarises one extraction run.
type ExtractResult struct {
	GalleryID   string `json:"galleryId"`
	ExternalID  string `json:"externalId"`
	Title       string `json:"title"`
	ImagesFound int    `json:"imagesFound"`
	VideosFound int    `json:"videosFound"`
	ImagesSaved int    `json:"imagesSaved"`
	VideosSaved int    `json:"videosSaved"`
}

// ExtractGallery fetches a gallery detail page, parses it, and persists the
// gallery with its media. Individual media failures are logged and skipped;
// the run only fails when the fetch fails, the markup is unreadable, or the
// gallery row itself cannot be written.
func (svc *Service) ExtractGallery(ctx context.Context, pageURL string) (*ExtractResult, error) {
	externalID, err := galleryExternalID(pageURL)
	if err != nil {
		return nil, err
	}
	if err := svc.urlValidator(pageURL); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	log := svc.logger.With("gallery", externalID)

	// One progress entry per gallery. A previous run's terminal entry is
	// removed first, otherwise the monotonic upsert would pin this run's
	// percentage at the old 100.
	progressID := "extract-" + externalID
	if err := svc.store.DeleteProgress(ctx, progressID); err != nil {
		log.Warn("gallery: progress reset failed", "error", err)
	}
	svc.setProgress(ctx, progressID, pageURL, 0, store.StatusDownloading)

	html, err := svc.fetchWithRetry(ctx, pageURL)
	if err != nil {
		svc.setProgress(ctx, progressID, pageURL, 0, store.StatusError)
		return nil, err
	}
	svc.setProgress(ctx, progressID, pageURL, 10, store.StatusDownloading)

	doc := string(html)
	if _, err := parse.Document(doc); err != nil {
		svc.setProgress(ctx, progressID, pageURL, 10, store.StatusError)
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	md := svc.parser.ParseMetadata(doc)
	images := svc.parser.ParseImages(doc)
	videos := svc.parser.ParseVideos(doc)
	log.Info("gallery: parsed page",
		"images", len(images), "videos", len(videos), "title", md.Title)

	g := &store.Gallery{
		ID:           svc.newID(),
		ExternalID:   externalID,
		URL:          pageURL,
		Title:        md.Title,
		Description:  md.Description,
		Uploader:     md.Uploader,
		ThumbnailURL: md.Thumbnail,
		ImageCount:   md.ImageCount,
		VideoCount:   md.VideoCount,
	}
	if !md.Published.IsZero() {
		g.CreatedAt = md.Published.UnixMilli()
	}
	galleryID, err := svc.persistGallery(ctx, g)
	if err != nil {
		svc.setProgress(ctx, progressID, pageURL, 10, store.StatusError)
		return nil, err
	}
	svc.setProgress(ctx, progressID, pageURL, 20, store.StatusDownloading)

	res := &ExtractResult{
		GalleryID:   galleryID,
		ExternalID:  externalID,
		Title:       md.Title,
		ImagesFound: len(images),
		VideosFound: len(videos),
	}
	imagesSaved, videosSaved := svc.persistMedia(ctx, log, galleryID, progressID, pageURL, images, videos)
	res.ImagesSaved = imagesSaved
	res.VideosSaved = videosSaved

	if err := svc.store.RefreshAggregates(ctx, galleryID); err != nil {
		log.Warn("gallery: aggregate refresh failed", "error", err)
	}

	svc.setProgress(ctx, progressID, pageURL, 100, store.StatusCompleted)
	log.Info("gallery: extraction complete",
		"saved_images", imagesSaved, "saved_videos", videosSaved)
	return res, nil
}

// persistMedia upserts all media concurrently and reports per-type save
// counts. Failed items are logged and skipped; progress tracks the share of
// items attempted so the caller sees movement during large galleries.
func (svc *Service) persistMedia(ctx context.Context, log *slog.Logger, galleryID, progressID, pageURL string, images, videos []parse.Media) (int, int) {
	total := len(images) + len(videos)
	if total == 0 {
		return 0, 0
	}

	var wg sync.WaitGroup
	var done, imagesSaved, videosSaved atomic.Int64
	sem := make(chan struct{}, svc.config.MediaWorkers)

	advance := func() {
		n := done.Add(1)
		// 20..95 maps the media phase; the final 100 is set by the caller.
		pct := 20 + int(n*75/int64(total))
		svc.setProgress(ctx, progressID, pageURL, pct, store.StatusDownloading)
	}

	for _, m := range images {
		wg.Add(1)
		sem <- struct{}{}
		go func(m parse.Media) {
			defer wg.Done()
			defer func() { <-sem }()
			defer advance()
			img := &store.Image{
				ID: svc.newID(), GalleryID: galleryID, ExternalID: m.ID,
				URL: m.URL, Title: m.Title, ThumbnailURL: m.ThumbnailURL,
				Width: m.Width, Height: m.Height, SizeBytes: m.SizeBytes,
			}
			if err := svc.upsertImage(ctx, img); err != nil {
				log.Warn("gallery: image skipped", "id", m.ID, "error", err)
				return
			}
			imagesSaved.Add(1)
		}(m)
	}
	for _, m := range videos {
		wg.Add(1)
		sem <- struct{}{}
		go func(m parse.Media) {
			defer wg.Done()
			defer func() { <-sem }()
			defer advance()
			v := &store.Video{
				ID: svc.newID(), GalleryID: galleryID, ExternalID: m.ID,
				URL: m.URL, Title: m.Title, ThumbnailURL: m.ThumbnailURL,
				Duration: m.Duration, Width: m.Width, Height: m.Height, SizeBytes: m.SizeBytes,
			}
			if err := svc.upsertVideo(ctx, v); err != nil {
				log.Warn("gallery: video skipped", "id", m.ID, "error", err)
				return
			}
			videosSaved.Add(1)
		}(m)
	}
	wg.Wait()
	return int(imagesSaved.Load()), int(videosSaved.Load())
}

// persistGallery writes the gallery row, retrying transient failures.
func (svc *Service) persistGallery(ctx context.Context, g *store.Gallery) (string, error) {
	var lastErr error
	for i := 0; i < svc.config.RetryAttempts; i++ {
		id, err := svc.store.UpsertGallery(ctx, g)
		if err == nil {
			return id, nil
		}
		lastErr = err
		if err := sleepCtx(ctx, svc.config.RetryBackoff); err != nil {
			break
		}
	}
	return "", &PersistenceError{Op: "gallery", Err: lastErr}
}

// fetchWithRetry fetches a page, retrying transport failures and 5xx
// responses. Definitive statuses (4xx) fail immediately.
func (svc *Service) fetchWithRetry(ctx context.Context, pageURL string) ([]byte, error) {
	var lastErr error
	for i := 0; i < svc.config.RetryAttempts; i++ {
		if i > 0 {
			svc.logger.Debug("gallery: retrying fetch", "url", pageURL, "attempt", i+1)
			if err := sleepCtx(ctx, svc.config.RetryBackoff); err != nil {
				return nil, err
			}
		}
		html, err := svc.fetcher.Fetch(ctx, pageURL)
		if err == nil {
			return html, nil
		}
		lastErr = err
		if fe, ok := err.(*fetch.Error); ok && fe.StatusCode >= 400 && fe.StatusCode < 500 {
			return nil, err
		}
	}
	return nil, fmt.Errorf("gallery: fetch failed after %d attempts: %w", svc.config.RetryAttempts, lastErr)
}

// setProgress records a progress update; tracking failures never interrupt
// the extraction they describe.
func (svc *Service) setProgress(ctx context.Context, id, filename string, pct int, status string) {
	err := svc.store.UpsertProgress(ctx, &store.ProgressEntry{
		ID: id, Filename: filename, Progress: pct, Status: status,
	})
	if err != nil {
		svc.logger.Warn("gallery: progress update failed", "id", id, "error", err)
	}
}

// galleryExternalID derives the stable gallery id from its page URL:
// the last non-empty path segment.
func galleryExternalID(pageURL string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("%w: gallery url %q", ErrInvalidInput, pageURL)
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	last := segments[len(segments)-1]
	if last == "" {
		return "", fmt.Errorf("%w: gallery url %q has no id segment", ErrInvalidInput, pageURL)
	}
	return last, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
