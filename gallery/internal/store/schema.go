package store

import "database/sql"

// Schema is the complete cache schema. All timestamps are Unix milliseconds.
const Schema = `
-- Galleries scraped from source detail pages
CREATE TABLE IF NOT EXISTS cached_galleries (
    id               TEXT PRIMARY KEY,
    external_id      TEXT NOT NULL UNIQUE,
    url              TEXT NOT NULL,
    title            TEXT NOT NULL DEFAULT '',
    description      TEXT NOT NULL DEFAULT '',
    uploader         TEXT NOT NULL DEFAULT '',
    thumbnail_url    TEXT NOT NULL DEFAULT '',
    video_count      INTEGER NOT NULL DEFAULT 0,
    image_count      INTEGER NOT NULL DEFAULT 0,
    total_duration   INTEGER NOT NULL DEFAULT 0,
    total_size_bytes INTEGER NOT NULL DEFAULT 0,
    created_at       INTEGER NOT NULL,
    last_fetched     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_galleries_created ON cached_galleries(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_galleries_counts ON cached_galleries(video_count, image_count);

-- Images owned by a gallery
CREATE TABLE IF NOT EXISTS cached_images (
    id            TEXT PRIMARY KEY,
    gallery_id    TEXT NOT NULL REFERENCES cached_galleries(id) ON DELETE CASCADE,
    external_id   TEXT NOT NULL,
    url           TEXT NOT NULL DEFAULT '',
    title         TEXT NOT NULL DEFAULT '',
    thumbnail_url TEXT NOT NULL DEFAULT '',
    width         INTEGER NOT NULL DEFAULT 0,
    height        INTEGER NOT NULL DEFAULT 0,
    size_bytes    INTEGER NOT NULL DEFAULT 0,
    created_at    INTEGER NOT NULL,
    UNIQUE(gallery_id, external_id)
);
CREATE INDEX IF NOT EXISTS idx_images_gallery ON cached_images(gallery_id);

-- Videos owned by a gallery
CREATE TABLE IF NOT EXISTS cached_videos (
    id            TEXT PRIMARY KEY,
    gallery_id    TEXT NOT NULL REFERENCES cached_galleries(id) ON DELETE CASCADE,
    external_id   TEXT NOT NULL,
    url           TEXT NOT NULL DEFAULT '',
    title         TEXT NOT NULL DEFAULT '',
    thumbnail_url TEXT NOT NULL DEFAULT '',
    duration      INTEGER NOT NULL DEFAULT 0,
    width         INTEGER NOT NULL DEFAULT 0,
    height        INTEGER NOT NULL DEFAULT 0,
    size_bytes    INTEGER NOT NULL DEFAULT 0,
    created_at    INTEGER NOT NULL,
    UNIQUE(gallery_id, external_id)
);
CREATE INDEX IF NOT EXISTS idx_videos_gallery ON cached_videos(gallery_id);

-- Search results, cached per query with a freshness window
CREATE TABLE IF NOT EXISTS search_results (
    query         TEXT NOT NULL,
    url           TEXT NOT NULL,
    title         TEXT NOT NULL DEFAULT '',
    thumbnail_url TEXT NOT NULL DEFAULT '',
    uploader      TEXT NOT NULL DEFAULT '',
    video_count   INTEGER NOT NULL DEFAULT 0,
    image_count   INTEGER NOT NULL DEFAULT 0,
    duration      INTEGER NOT NULL DEFAULT 0,
    views         INTEGER NOT NULL DEFAULT 0,
    last_fetched  INTEGER NOT NULL,
    PRIMARY KEY (query, url)
);
CREATE INDEX IF NOT EXISTS idx_search_fresh ON search_results(query, last_fetched DESC);

-- Download progress, polled by the UI
CREATE TABLE IF NOT EXISTS download_progress (
    id         TEXT PRIMARY KEY,
    filename   TEXT NOT NULL DEFAULT '',
    progress   INTEGER NOT NULL DEFAULT 0,
    status     TEXT NOT NULL DEFAULT 'downloading',
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_progress_created ON download_progress(created_at DESC);
`

// ApplySchema creates all tables and indexes on the given database.
func ApplySchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
