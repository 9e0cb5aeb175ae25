package gallery

import "gallerydl/gallery/internal/store"

// Aliases re-export the cache row types so callers outside the package tree
// can use them without reaching into internal packages.
type (
	Gallery       = store.Gallery
	Image         = store.Image
	Video         = store.Video
	SearchResult  = store.SearchResult
	ProgressEntry = store.ProgressEntry
	GalleryFilter = store.GalleryFilter
	SortKey       = store.SortKey
)

// Progress status values.
const (
	StatusDownloading = store.StatusDownloading
	StatusCompleted   = store.StatusCompleted
	StatusError       = store.StatusError
)

// Sort keys accepted by gallery listing queries.
const (
	SortNewest       = store.SortNewest
	SortVideosAsc    = store.SortVideosAsc
	SortVideosDesc   = store.SortVideosDesc
	SortImagesAsc    = store.SortImagesAsc
	SortImagesDesc   = store.SortImagesDesc
	SortDurationAsc  = store.SortDurationAsc
	SortDurationDesc = store.SortDurationDesc
	SortSizeAsc      = store.SortSizeAsc
	SortSizeDesc     = store.SortSizeDesc
)
