package store

import (
	"context"
	"fmt"
	"time"

	"gallerydl/dbopen"
)

// FreshResults returns the cached results for a query whose last_fetched is
// at or after the since cutoff. An empty slice means nothing fresh is cached
// and the caller should hit the source.
func (s *Store) FreshResults(ctx context.Context, query string, since time.Time) ([]*SearchResult, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT query, url, title, thumbnail_url, uploader, video_count, image_count, duration, views, last_fetched
		FROM search_results
		WHERE query = ? AND last_fetched >= ?
		ORDER BY last_fetched DESC, url`,
		query, since.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("store: fresh results: %w", err)
	}
	defer rows.Close()

	var results []*SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Query, &r.URL, &r.Title, &r.ThumbnailURL, &r.Uploader,
			&r.VideoCount, &r.ImageCount, &r.Duration, &r.Views, &r.LastFetched); err != nil {
			return nil, fmt.Errorf("store: scan search result: %w", err)
		}
		results = append(results, &r)
	}
	return results, rows.Err()
}

// UpsertSearchResult inserts or refreshes one result keyed by (query, url).
func (s *Store) UpsertSearchResult(ctx context.Context, r *SearchResult) error {
	if r.Query == "" || r.URL == "" {
		return fmt.Errorf("store: search result needs query and url")
	}
	if r.LastFetched == 0 {
		r.LastFetched = time.Now().UnixMilli()
	}
	_, err := dbopen.Exec(ctx, s.DB,
		`INSERT INTO search_results (query, url, title, thumbnail_url, uploader,
			video_count, image_count, duration, views, last_fetched)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(query, url) DO UPDATE SET
			title = excluded.title,
			thumbnail_url = excluded.thumbnail_url,
			uploader = excluded.uploader,
			video_count = excluded.video_count,
			image_count = excluded.image_count,
			duration = excluded.duration,
			views = excluded.views,
			last_fetched = excluded.last_fetched`,
		r.Query, r.URL, r.Title, r.ThumbnailURL, r.Uploader,
		r.VideoCount, r.ImageCount, r.Duration, r.Views, r.LastFetched)
	if err != nil {
		return fmt.Errorf("store: upsert search result: %w", err)
	}
	return nil
}

// DeleteStaleResults drops search rows last fetched before the cutoff and
// returns how many were removed.
func (s *Store) DeleteStaleResults(ctx context.Context, before time.Time) (int64, error) {
	res, err := dbopen.Exec(ctx, s.DB,
		`DELETE FROM search_results WHERE last_fetched < ?`, before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("store: delete stale results: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
