package store

import (
	"context"
	"fmt"
	"time"

	"gallerydl/dbopen"
)

// UpsertProgress inserts or advances a progress entry. Progress never moves
// backwards: a stale update carrying a lower percentage than the stored row
// keeps the stored value while still refreshing status and updated_at.
func (s *Store) UpsertProgress(ctx context.Context, e *ProgressEntry) error {
	if e.ID == "" {
		return fmt.Errorf("store: progress entry needs an id")
	}
	if e.Progress < 0 {
		e.Progress = 0
	}
	if e.Progress > 100 {
		e.Progress = 100
	}
	if e.Status == "" {
		e.Status = StatusDownloading
	}
	now := time.Now().UnixMilli()
	if e.CreatedAt == 0 {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	_, err := dbopen.Exec(ctx, s.DB,
		`INSERT INTO download_progress (id, filename, progress, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			filename = excluded.filename,
			progress = MAX(progress, excluded.progress),
			status = excluded.status,
			updated_at = excluded.updated_at`,
		e.ID, e.Filename, e.Progress, e.Status, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: upsert progress %s: %w", e.ID, err)
	}
	return nil
}

// GetProgress retrieves one entry, or nil when the id is unknown.
func (s *Store) GetProgress(ctx context.Context, id string) (*ProgressEntry, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, filename, progress, status, created_at, updated_at
		FROM download_progress WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("store: get progress: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	var e ProgressEntry
	if err := rows.Scan(&e.ID, &e.Filename, &e.Progress, &e.Status, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, fmt.Errorf("store: scan progress: %w", err)
	}
	return &e, nil
}

// DeleteProgress removes one entry. Deleting an unknown id is not an error.
func (s *Store) DeleteProgress(ctx context.Context, id string) error {
	_, err := dbopen.Exec(ctx, s.DB, `DELETE FROM download_progress WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete progress %s: %w", id, err)
	}
	return nil
}

// ListProgress returns all entries, newest first.
func (s *Store) ListProgress(ctx context.Context) ([]*ProgressEntry, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, filename, progress, status, created_at, updated_at
		FROM download_progress ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("store: list progress: %w", err)
	}
	defer rows.Close()

	var entries []*ProgressEntry
	for rows.Next() {
		var e ProgressEntry
		if err := rows.Scan(&e.ID, &e.Filename, &e.Progress, &e.Status, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scan progress: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// ReapProgress deletes finished entries not updated since the cutoff.
// Rows still downloading are kept regardless of age.
func (s *Store) ReapProgress(ctx context.Context, before time.Time) (int64, error) {
	res, err := dbopen.Exec(ctx, s.DB,
		`DELETE FROM download_progress
		WHERE status IN (?, ?) AND updated_at < ?`,
		StatusCompleted, StatusError, before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("store: reap progress: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
