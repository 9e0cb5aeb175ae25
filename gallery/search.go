package gallery

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/samber/lo"

	"gallerydl/gallery/internal/parse"
	"gallerydl/gallery/internal/store"
)

// SearchResponse is the outcome of one search: the results and whether they
// came from the cache or a live listing fetch.
type SearchResponse struct {
	Results   []*store.SearchResult `json:"results"`
	FromCache bool                  `json:"fromCache"`
}

// Search returns listings matching the query for one media type (galleries,
// videos or images). Results cached inside the freshness window are served
// without touching the source; otherwise the listing page is fetched, parsed
// and cached for the next day of identical queries.
func (svc *Service) Search(ctx context.Context, query, mediaType string) (*SearchResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty search query", ErrInvalidInput)
	}
	if mediaType == "" {
		mediaType = "galleries"
	}
	rules, ok := svc.rules.Listings[mediaType]
	if !ok {
		return nil, fmt.Errorf("%w: unknown media type %q (known: %s)",
			ErrInvalidInput, mediaType, strings.Join(lo.Keys(svc.rules.Listings), ", "))
	}

	// Cache rows are keyed per type so "beach" in videos and galleries
	// stay distinct.
	cacheKey := mediaType + ":" + strings.ToLower(query)
	since := time.Now().Add(-svc.config.SearchCacheTTL)
	cached, err := svc.store.FreshResults(ctx, cacheKey, since)
	if err != nil {
		svc.logger.Warn("gallery: search cache read failed", "query", query, "error", err)
	}
	if len(cached) > 0 {
		return &SearchResponse{Results: cached, FromCache: true}, nil
	}

	listingURL := svc.searchURL(query, mediaType)
	html, err := svc.fetchWithRetry(ctx, listingURL)
	if err != nil {
		return nil, err
	}

	parsed := parse.ParseListing(string(html), rules, svc.config.BaseURL)
	results := make([]*store.SearchResult, 0, len(parsed))
	now := time.Now().UnixMilli()
	for _, r := range parsed {
		sr := &store.SearchResult{
			Query:        cacheKey,
			URL:          r.URL,
			Title:        r.Title,
			ThumbnailURL: r.ThumbnailURL,
			Uploader:     r.Uploader,
			VideoCount:   r.VideoCount,
			ImageCount:   r.ImageCount,
			Duration:     r.Duration,
			Views:        r.Views,
			LastFetched:  now,
		}
		// A failed cache write costs a refetch tomorrow, not this response.
		if err := svc.store.UpsertSearchResult(ctx, sr); err != nil {
			svc.logger.Warn("gallery: search cache write failed", "url", r.URL, "error", err)
		}
		results = append(results, sr)
	}

	svc.logger.Info("gallery: search fetched",
		"query", query, "type", mediaType, "results", len(results))
	return &SearchResponse{Results: results}, nil
}

// searchURL builds the listing page URL for a query and media type.
func (svc *Service) searchURL(query, mediaType string) string {
	return fmt.Sprintf("%s/term/%s/%s",
		strings.TrimRight(svc.config.BaseURL, "/"),
		mediaType,
		url.PathEscape(strings.ReplaceAll(query, " ", "+")))
}
