package store

// Gallery is one cached gallery row. Zero values mean unknown.
type Gallery struct {
	ID             string `json:"id"`
	ExternalID     string `json:"externalId"`
	URL            string `json:"url"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	Uploader       string `json:"uploader"`
	ThumbnailURL   string `json:"thumbnailUrl"`
	VideoCount     int    `json:"videoCount"`
	ImageCount     int    `json:"imageCount"`
	TotalDuration  int64  `json:"totalDuration"`  // seconds, summed over videos
	TotalSizeBytes int64  `json:"totalSizeBytes"` // summed over all media
	CreatedAt      int64  `json:"createdAt"`      // unix ms; publish date or extraction time
	LastFetched    int64  `json:"lastFetched"`    // unix ms of last successful extraction
}

// Image is one cached image row, owned by a gallery.
type Image struct {
	ID           string `json:"id"`
	GalleryID    string `json:"galleryId"`
	ExternalID   string `json:"externalId"` // derived id, upsert key with gallery_id
	URL          string `json:"url"`
	Title        string `json:"title"`
	ThumbnailURL string `json:"thumbnailUrl"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	SizeBytes    int64  `json:"sizeBytes"`
	CreatedAt    int64  `json:"createdAt"`
}

// Video is one cached video row, owned by a gallery.
type Video struct {
	ID           string `json:"id"`
	GalleryID    string `json:"galleryId"`
	ExternalID   string `json:"externalId"`
	URL          string `json:"url"`
	Title        string `json:"title"`
	ThumbnailURL string `json:"thumbnailUrl"`
	Duration     int    `json:"duration"` // seconds
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	SizeBytes    int64  `json:"sizeBytes"`
	CreatedAt    int64  `json:"createdAt"`
}

// SearchResult is one cached search listing entry, keyed by (query, url).
type SearchResult struct {
	Query        string `json:"-"`
	URL          string `json:"url"`
	Title        string `json:"title"`
	ThumbnailURL string `json:"thumbnailUrl"`
	Uploader     string `json:"uploader,omitempty"`
	VideoCount   int    `json:"videoCount"`
	ImageCount   int    `json:"imageCount"`
	Duration     int    `json:"duration,omitempty"`
	Views        int    `json:"views,omitempty"`
	LastFetched  int64  `json:"lastFetched"`
}

// Progress status values.
const (
	StatusDownloading = "downloading"
	StatusCompleted   = "completed"
	StatusError       = "error"
)

// ProgressEntry is one download progress row.
type ProgressEntry struct {
	ID        string `json:"id"`
	Filename  string `json:"filename"`
	Progress  int    `json:"progress"` // 0-100
	Status    string `json:"status"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
}
