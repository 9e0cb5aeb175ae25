package store

import (
	"context"
	"fmt"
	"time"

	"gallerydl/dbopen"
)

// UpsertImage inserts or refreshes an image keyed by (gallery_id, external_id).
// Media upserts run from parallel goroutines, so they go through the
// busy-retrying Exec.
func (s *Store) UpsertImage(ctx context.Context, img *Image) error {
	if img.GalleryID == "" || img.ExternalID == "" {
		return fmt.Errorf("store: image needs gallery_id and external_id")
	}
	if img.CreatedAt == 0 {
		img.CreatedAt = time.Now().UnixMilli()
	}
	_, err := dbopen.Exec(ctx, s.DB,
		`INSERT INTO cached_images (id, gallery_id, external_id, url, title, thumbnail_url,
			width, height, size_bytes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(gallery_id, external_id) DO UPDATE SET
			url = excluded.url,
			title = excluded.title,
			thumbnail_url = excluded.thumbnail_url,
			width = excluded.width,
			height = excluded.height,
			size_bytes = excluded.size_bytes`,
		img.ID, img.GalleryID, img.ExternalID, img.URL, img.Title, img.ThumbnailURL,
		img.Width, img.Height, img.SizeBytes, img.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: upsert image %s: %w", img.ExternalID, err)
	}
	return nil
}

// UpsertVideo inserts or refreshes a video keyed by (gallery_id, external_id).
func (s *Store) UpsertVideo(ctx context.Context, v *Video) error {
	if v.GalleryID == "" || v.ExternalID == "" {
		return fmt.Errorf("store: video needs gallery_id and external_id")
	}
	if v.CreatedAt == 0 {
		v.CreatedAt = time.Now().UnixMilli()
	}
	_, err := dbopen.Exec(ctx, s.DB,
		`INSERT INTO cached_videos (id, gallery_id, external_id, url, title, thumbnail_url,
			duration, width, height, size_bytes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(gallery_id, external_id) DO UPDATE SET
			url = excluded.url,
			title = excluded.title,
			thumbnail_url = excluded.thumbnail_url,
			duration = excluded.duration,
			width = excluded.width,
			height = excluded.height,
			size_bytes = excluded.size_bytes`,
		v.ID, v.GalleryID, v.ExternalID, v.URL, v.Title, v.ThumbnailURL,
		v.Duration, v.Width, v.Height, v.SizeBytes, v.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: upsert video %s: %w", v.ExternalID, err)
	}
	return nil
}

// ListImages returns a gallery's images.
func (s *Store) ListImages(ctx context.Context, galleryID string) ([]*Image, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, gallery_id, external_id, url, title, thumbnail_url, width, height, size_bytes, created_at
		FROM cached_images WHERE gallery_id = ? ORDER BY created_at, external_id`, galleryID)
	if err != nil {
		return nil, fmt.Errorf("store: list images: %w", err)
	}
	defer rows.Close()

	var images []*Image
	for rows.Next() {
		var img Image
		if err := rows.Scan(&img.ID, &img.GalleryID, &img.ExternalID, &img.URL, &img.Title,
			&img.ThumbnailURL, &img.Width, &img.Height, &img.SizeBytes, &img.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan image: %w", err)
		}
		images = append(images, &img)
	}
	return images, rows.Err()
}

// ListVideos returns a gallery's videos.
func (s *Store) ListVideos(ctx context.Context, galleryID string) ([]*Video, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, gallery_id, external_id, url, title, thumbnail_url, duration, width, height, size_bytes, created_at
		FROM cached_videos WHERE gallery_id = ? ORDER BY created_at, external_id`, galleryID)
	if err != nil {
		return nil, fmt.Errorf("store: list videos: %w", err)
	}
	defer rows.Close()

	var videos []*Video
	for rows.Next() {
		var v Video
		if err := rows.Scan(&v.ID, &v.GalleryID, &v.ExternalID, &v.URL, &v.Title,
			&v.ThumbnailURL, &v.Duration, &v.Width, &v.Height, &v.SizeBytes, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan video: %w", err)
		}
		videos = append(videos, &v)
	}
	return videos, rows.Err()
}

// CountMedia returns the number of image and video rows for a gallery.
func (s *Store) CountMedia(ctx context.Context, galleryID string) (images, videos int, err error) {
	if err = s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cached_images WHERE gallery_id = ?`, galleryID).Scan(&images); err != nil {
		return 0, 0, err
	}
	if err = s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cached_videos WHERE gallery_id = ?`, galleryID).Scan(&videos); err != nil {
		return 0, 0, err
	}
	return images, videos, nil
}
