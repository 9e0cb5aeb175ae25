package gallery

import (
	"context"
	"fmt"

	"gallerydl/gallery/internal/store"
)

// Progress lists all download progress entries, newest first.
func (svc *Service) Progress(ctx context.Context) ([]*store.ProgressEntry, error) {
	entries, err := svc.store.ListProgress(ctx)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []*store.ProgressEntry{}
	}
	return entries, nil
}

// UpdateProgress records a client-reported download update. The id is the
// client's handle for the download; progress is clamped to 0..100 by the
// store and never moves backwards.
func (svc *Service) UpdateProgress(ctx context.Context, id, filename string, progress int, status string) error {
	if id == "" {
		return fmt.Errorf("%w: progress id is required", ErrInvalidInput)
	}
	switch status {
	case "", store.StatusDownloading, store.StatusCompleted, store.StatusError:
	default:
		return fmt.Errorf("%w: unknown progress status %q", ErrInvalidInput, status)
	}
	return svc.store.UpsertProgress(ctx, &store.ProgressEntry{
		ID: id, Filename: filename, Progress: progress, Status: status,
	})
}
