package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"gallerydl/dbopen"
)

// SortKey selects the ordering of a gallery listing query.
type SortKey string

const (
	SortNewest       SortKey = "newest"
	SortVideosAsc    SortKey = "videos_asc"
	SortVideosDesc   SortKey = "videos_desc"
	SortImagesAsc    SortKey = "images_asc"
	SortImagesDesc   SortKey = "images_desc"
	SortDurationAsc  SortKey = "duration_asc"
	SortDurationDesc SortKey = "duration_desc"
	SortSizeAsc      SortKey = "size_asc"
	SortSizeDesc     SortKey = "size_desc"
)

// sortClauses whitelists ORDER BY fragments; anything else falls back to newest.
var sortClauses = map[SortKey]string{
	SortNewest:       "created_at DESC",
	SortVideosAsc:    "video_count ASC",
	SortVideosDesc:   "video_count DESC",
	SortImagesAsc:    "image_count ASC",
	SortImagesDesc:   "image_count DESC",
	SortDurationAsc:  "total_duration ASC",
	SortDurationDesc: "total_duration DESC",
	SortSizeAsc:      "total_size_bytes ASC",
	SortSizeDesc:     "total_size_bytes DESC",
}

// GalleryFilter narrows and orders a gallery listing query. Range bounds are
// inclusive and AND-combined; a zero bound imposes no constraint.
type GalleryFilter struct {
	MinVideos   int
	MaxVideos   int
	MinImages   int
	MaxImages   int
	MinDuration int64
	MaxDuration int64
	MinFileSize int64
	MaxFileSize int64
	SearchTerm  string
	SortBy      SortKey
	Page        int // 1-based
	PerPage     int
}

const galleryColumns = `id, external_id, url, title, description, uploader, thumbnail_url,
	video_count, image_count, total_duration, total_size_bytes, created_at, last_fetched`

// UpsertGallery inserts or refreshes a gallery row keyed by external_id and
// returns the canonical row id. On conflict the original id and created_at
// are kept; attribute columns and last_fetched take the new values.
func (s *Store) UpsertGallery(ctx context.Context, g *Gallery) (string, error) {
	now := time.Now().UnixMilli()
	if g.CreatedAt == 0 {
		g.CreatedAt = now
	}
	if g.LastFetched == 0 {
		g.LastFetched = now
	}
	if g.ExternalID == "" {
		return "", errors.New("store: gallery external_id is required")
	}

	_, err := dbopen.Exec(ctx, s.DB,
		`INSERT INTO cached_galleries (`+galleryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(external_id) DO UPDATE SET
			url = excluded.url,
			title = excluded.title,
			description = excluded.description,
			uploader = excluded.uploader,
			thumbnail_url = excluded.thumbnail_url,
			video_count = excluded.video_count,
			image_count = excluded.image_count,
			last_fetched = excluded.last_fetched`,
		g.ID, g.ExternalID, g.URL, g.Title, g.Description, g.Uploader, g.ThumbnailURL,
		g.VideoCount, g.ImageCount, g.TotalDuration, g.TotalSizeBytes, g.CreatedAt, g.LastFetched,
	)
	if err != nil {
		return "", fmt.Errorf("store: upsert gallery: %w", err)
	}

	var id string
	err = s.DB.QueryRowContext(ctx,
		`SELECT id FROM cached_galleries WHERE external_id = ?`, g.ExternalID).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("store: resolve gallery id: %w", err)
	}
	g.ID = id
	return id, nil
}

// GetGallery retrieves a gallery by row id.
func (s *Store) GetGallery(ctx context.Context, id string) (*Gallery, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+galleryColumns+` FROM cached_galleries WHERE id = ?`, id)
	return scanGallery(row)
}

// GetGalleryByExternalID retrieves a gallery by its natural key.
func (s *Store) GetGalleryByExternalID(ctx context.Context, externalID string) (*Gallery, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+galleryColumns+` FROM cached_galleries WHERE external_id = ?`, externalID)
	return scanGallery(row)
}

// DeleteGallery removes a gallery; media rows cascade.
func (s *Store) DeleteGallery(ctx context.Context, id string) error {
	_, err := dbopen.Exec(ctx, s.DB, `DELETE FROM cached_galleries WHERE id = ?`, id)
	return err
}

// QueryGalleries returns one page of galleries matching the filter and
// whether a further page exists.
func (s *Store) QueryGalleries(ctx context.Context, f GalleryFilter) ([]*Gallery, bool, error) {
	perPage := f.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}

	var where []string
	var args []any
	addRange := func(col string, min, max int64) {
		if min > 0 {
			where = append(where, col+" >= ?")
			args = append(args, min)
		}
		if max > 0 {
			where = append(where, col+" <= ?")
			args = append(args, max)
		}
	}
	addRange("video_count", int64(f.MinVideos), int64(f.MaxVideos))
	addRange("image_count", int64(f.MinImages), int64(f.MaxImages))
	addRange("total_duration", f.MinDuration, f.MaxDuration)
	addRange("total_size_bytes", f.MinFileSize, f.MaxFileSize)
	if f.SearchTerm != "" {
		where = append(where, "title LIKE ? COLLATE NOCASE")
		args = append(args, "%"+f.SearchTerm+"%")
	}

	query := `SELECT ` + galleryColumns + ` FROM cached_galleries`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	order, ok := sortClauses[f.SortBy]
	if !ok {
		order = sortClauses[SortNewest]
	}
	// Fetch one extra row to learn whether a further page exists.
	query += " ORDER BY " + order + " LIMIT ? OFFSET ?"
	args = append(args, perPage+1, (page-1)*perPage)

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("store: query galleries: %w", err)
	}
	defer rows.Close()

	var galleries []*Gallery
	for rows.Next() {
		g, err := scanGalleryRows(rows)
		if err != nil {
			return nil, false, err
		}
		galleries = append(galleries, g)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}

	hasMore := len(galleries) > perPage
	if hasMore {
		galleries = galleries[:perPage]
	}
	return galleries, hasMore, nil
}

// RefreshAggregates recomputes the derived columns of a gallery from its
// child media. Parsed counts are kept when they exceed the child count,
// since a page can advertise more media than one extraction captured.
func (s *Store) RefreshAggregates(ctx context.Context, galleryID string) error {
	_, err := dbopen.Exec(ctx, s.DB, `
		UPDATE cached_galleries SET
			video_count = MAX(video_count, (SELECT COUNT(*) FROM cached_videos WHERE gallery_id = ?)),
			image_count = MAX(image_count, (SELECT COUNT(*) FROM cached_images WHERE gallery_id = ?)),
			total_duration = (SELECT COALESCE(SUM(duration), 0) FROM cached_videos WHERE gallery_id = ?),
			total_size_bytes =
				(SELECT COALESCE(SUM(size_bytes), 0) FROM cached_videos WHERE gallery_id = ?) +
				(SELECT COALESCE(SUM(size_bytes), 0) FROM cached_images WHERE gallery_id = ?)
		WHERE id = ?`,
		galleryID, galleryID, galleryID, galleryID, galleryID, galleryID)
	if err != nil {
		return fmt.Errorf("store: refresh aggregates: %w", err)
	}
	return nil
}

func scanGallery(row *sql.Row) (*Gallery, error) {
	var g Gallery
	err := row.Scan(&g.ID, &g.ExternalID, &g.URL, &g.Title, &g.Description, &g.Uploader,
		&g.ThumbnailURL, &g.VideoCount, &g.ImageCount, &g.TotalDuration, &g.TotalSizeBytes,
		&g.CreatedAt, &g.LastFetched)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan gallery: %w", err)
	}
	return &g, nil
}

func scanGalleryRows(rows *sql.Rows) (*Gallery, error) {
	var g Gallery
	err := rows.Scan(&g.ID, &g.ExternalID, &g.URL, &g.Title, &g.Description, &g.Uploader,
		&g.ThumbnailURL, &g.VideoCount, &g.ImageCount, &g.TotalDuration, &g.TotalSizeBytes,
		&g.CreatedAt, &g.LastFetched)
	if err != nil {
		return nil, fmt.Errorf("store: scan gallery: %w", err)
	}
	return &g, nil
}
