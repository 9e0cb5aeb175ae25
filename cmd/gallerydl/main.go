// Command gallerydl serves the gallery search-and-download API.
//
// Usage:
//
//	gallerydl                       # listen on :8080 with ./gallerydl.db
//	GALLERYDL_DB=/data/cache.db GALLERYDL_ADDR=:9090 gallerydl
//
// Configuration is environment-based; a .env file in the working directory
// is loaded when present.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "modernc.org/sqlite"

	"gallerydl/dbopen"
	"gallerydl/gallery"
)

func main() {
	// Missing .env is the normal production case.
	_ = godotenv.Load()

	var level slog.Level
	switch env("GALLERYDL_LOG_LEVEL", "info") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger); err != nil {
		logger.Error("gallerydl: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	dbPath := env("GALLERYDL_DB", "gallerydl.db")
	db, err := dbopen.Open(dbPath, dbopen.WithMkdirAll())
	if err != nil {
		return err
	}
	defer db.Close()

	cfg := &gallery.Config{
		BaseURL:           env("GALLERYDL_BASE_URL", ""),
		RulesPath:         env("GALLERYDL_RULES", ""),
		RenderPages:       envBool("GALLERYDL_RENDER", false),
		BrowserURL:        env("GALLERYDL_BROWSER_URL", ""),
		FetchTimeout:      envDuration("GALLERYDL_FETCH_TIMEOUT", 0),
		SearchCacheTTL:    envDuration("GALLERYDL_SEARCH_TTL", 0),
		ProgressRetention: envDuration("GALLERYDL_PROGRESS_RETENTION", 0),
	}

	svc, err := gallery.New(db, cfg, logger)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Close()

	addr := env("GALLERYDL_ADDR", ":8080")
	srv := &http.Server{
		Addr:              addr,
		Handler:           newRouter(svc, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("gallerydl: listening", "addr", addr, "db", dbPath)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("gallerydl: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
