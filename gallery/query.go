package gallery

import (
	"context"
	"fmt"

	"gallerydl/gallery/internal/store"
)

// GalleryPage is one page of cached galleries.
type GalleryPage struct {
	Galleries []*store.Gallery `json:"galleries"`
	Page      int              `json:"page"`
	PerPage   int              `json:"perPage"`
	HasMore   bool             `json:"hasMore"`
}

// Galleries queries the cache with the given filter. An unset page size
// falls back to the configured default.
func (svc *Service) Galleries(ctx context.Context, f store.GalleryFilter) (*GalleryPage, error) {
	if f.PerPage <= 0 {
		f.PerPage = svc.config.PageSize
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	galleries, hasMore, err := svc.store.QueryGalleries(ctx, f)
	if err != nil {
		return nil, err
	}
	if galleries == nil {
		galleries = []*store.Gallery{}
	}
	return &GalleryPage{
		Galleries: galleries,
		Page:      f.Page,
		PerPage:   f.PerPage,
		HasMore:   hasMore,
	}, nil
}

// GalleryDetail is one cached gallery with its media.
type GalleryDetail struct {
	Gallery *store.Gallery `json:"gallery"`
	Images  []*store.Image `json:"images"`
	Videos  []*store.Video `json:"videos"`
}

// GalleryDetails loads a gallery and its media by row id or external id.
func (svc *Service) GalleryDetails(ctx context.Context, id string) (*GalleryDetail, error) {
	g, err := svc.store.GetGallery(ctx, id)
	if err != nil {
		return nil, err
	}
	if g == nil {
		if g, err = svc.store.GetGalleryByExternalID(ctx, id); err != nil {
			return nil, err
		}
	}
	if g == nil {
		return nil, fmt.Errorf("%w: gallery %q", ErrNotFound, id)
	}

	images, err := svc.store.ListImages(ctx, g.ID)
	if err != nil {
		return nil, err
	}
	videos, err := svc.store.ListVideos(ctx, g.ID)
	if err != nil {
		return nil, err
	}
	if images == nil {
		images = []*store.Image{}
	}
	if videos == nil {
		videos = []*store.Video{}
	}
	return &GalleryDetail{Gallery: g, Images: images, Videos: videos}, nil
}
