package store

import (
	"context"
	"testing"
	"time"

	"gallerydl/dbopen"
	"gallerydl/idgen"

	_ "modernc.org/sqlite"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	db := dbopen.OpenMemory(t, dbopen.WithSchema(Schema))
	return NewStore(db)
}

func seedGallery(t *testing.T, s *Store, externalID string) *Gallery {
	t.Helper()
	g := &Gallery{
		ID:         idgen.New(),
		ExternalID: externalID,
		URL:        "https://example.com/g/" + externalID,
		Title:      "Gallery " + externalID,
	}
	if _, err := s.UpsertGallery(context.Background(), g); err != nil {
		t.Fatalf("seed gallery %s: %v", externalID, err)
	}
	return g
}

// WHAT: upserting the same gallery twice keeps one row and the original id.
// WHY: re-running an extraction must refresh the cache, not duplicate it.
func TestUpsertGalleryIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first := &Gallery{ID: idgen.New(), ExternalID: "ABC123", URL: "https://example.com/g/ABC123", Title: "Before"}
	firstID, err := s.UpsertGallery(ctx, first)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	second := &Gallery{ID: idgen.New(), ExternalID: "ABC123", URL: "https://example.com/g/ABC123", Title: "After", LastFetched: first.LastFetched + 5000}
	secondID, err := s.UpsertGallery(ctx, second)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	if firstID != secondID {
		t.Errorf("row id changed across upserts: %s vs %s", firstID, secondID)
	}

	var n int
	if err := s.DB.QueryRow(`SELECT COUNT(*) FROM cached_galleries`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("gallery rows = %d, want 1", n)
	}

	got, err := s.GetGallery(ctx, firstID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "After" {
		t.Errorf("title = %q, want refreshed value", got.Title)
	}
	if got.LastFetched != second.LastFetched {
		t.Errorf("last_fetched = %d, want %d", got.LastFetched, second.LastFetched)
	}
}

// WHAT: GetGallery on an unknown id returns nil without error.
func TestGetGalleryMissing(t *testing.T) {
	s := openTestStore(t)
	g, err := s.GetGallery(context.Background(), "nope")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g != nil {
		t.Errorf("got %+v, want nil", g)
	}
}

// WHAT: media upserts keyed by (gallery_id, external_id) never duplicate,
// and the same external id may exist under two galleries.
func TestUpsertMediaIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	g1 := seedGallery(t, s, "G1")
	g2 := seedGallery(t, s, "G2")

	img := &Image{ID: idgen.New(), GalleryID: g1.ID, ExternalID: "X1", URL: "https://cdn.example.com/X1.jpg", Title: "one"}
	for i := 0; i < 3; i++ {
		if err := s.UpsertImage(ctx, img); err != nil {
			t.Fatalf("upsert image: %v", err)
		}
	}
	// Same external id under a different gallery is a distinct row.
	other := &Image{ID: idgen.New(), GalleryID: g2.ID, ExternalID: "X1", URL: "https://cdn.example.com/X1.jpg"}
	if err := s.UpsertImage(ctx, other); err != nil {
		t.Fatalf("upsert image other gallery: %v", err)
	}

	var n int
	if err := s.DB.QueryRow(`SELECT COUNT(*) FROM cached_images`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("image rows = %d, want 2", n)
	}

	v := &Video{ID: idgen.New(), GalleryID: g1.ID, ExternalID: "V1", Duration: 90}
	if err := s.UpsertVideo(ctx, v); err != nil {
		t.Fatal(err)
	}
	v2 := &Video{ID: idgen.New(), GalleryID: g1.ID, ExternalID: "V1", Duration: 125}
	if err := s.UpsertVideo(ctx, v2); err != nil {
		t.Fatal(err)
	}

	vids, err := s.ListVideos(ctx, g1.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(vids) != 1 {
		t.Fatalf("videos = %d, want 1", len(vids))
	}
	if vids[0].Duration != 125 {
		t.Errorf("duration = %d, want refreshed 125", vids[0].Duration)
	}
}

// WHAT: upserts reject rows missing their natural key.
func TestUpsertMediaValidation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if err := s.UpsertImage(ctx, &Image{ID: idgen.New(), GalleryID: "g"}); err == nil {
		t.Error("image without external_id accepted")
	}
	if err := s.UpsertVideo(ctx, &Video{ID: idgen.New(), ExternalID: "v"}); err == nil {
		t.Error("video without gallery_id accepted")
	}
	if _, err := s.UpsertGallery(ctx, &Gallery{ID: idgen.New()}); err == nil {
		t.Error("gallery without external_id accepted")
	}
}

// WHAT: deleting a gallery cascades to its media rows.
func TestDeleteGalleryCascades(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	g := seedGallery(t, s, "DEL")
	if err := s.UpsertImage(ctx, &Image{ID: idgen.New(), GalleryID: g.ID, ExternalID: "I1"}); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteGallery(ctx, g.ID); err != nil {
		t.Fatal(err)
	}
	var n int
	if err := s.DB.QueryRow(`SELECT COUNT(*) FROM cached_images`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("orphan image rows = %d, want 0", n)
	}
}

// WHAT: filters AND-combine, the whitelist maps sort keys, and the
// extra-row probe reports whether a further page exists.
func TestQueryGalleries(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	fixtures := []struct {
		ext    string
		title  string
		videos int
		images int
		dur    int64
	}{
		{"A", "Beach trip", 0, 40, 0},
		{"B", "City walk", 5, 10, 600},
		{"C", "Beach sunset", 12, 2, 3600},
		{"D", "Mountains", 2, 25, 120},
	}
	for i, f := range fixtures {
		g := &Gallery{
			ID: idgen.New(), ExternalID: f.ext, URL: "https://example.com/g/" + f.ext,
			Title: f.title, VideoCount: f.videos, ImageCount: f.images, TotalDuration: f.dur,
			CreatedAt: int64(1000 * (i + 1)),
		}
		if _, err := s.UpsertGallery(ctx, g); err != nil {
			t.Fatal(err)
		}
	}

	t.Run("range and term", func(t *testing.T) {
		got, more, err := s.QueryGalleries(ctx, GalleryFilter{MinVideos: 1, SearchTerm: "beach"})
		if err != nil {
			t.Fatal(err)
		}
		if more {
			t.Error("hasMore = true for a single page")
		}
		if len(got) != 1 || got[0].ExternalID != "C" {
			t.Fatalf("got %d rows, want only C", len(got))
		}
	})

	t.Run("sort by images asc", func(t *testing.T) {
		got, _, err := s.QueryGalleries(ctx, GalleryFilter{SortBy: SortImagesAsc})
		if err != nil {
			t.Fatal(err)
		}
		want := []string{"C", "B", "D", "A"}
		for i, ext := range want {
			if got[i].ExternalID != ext {
				t.Fatalf("position %d = %s, want %s", i, got[i].ExternalID, ext)
			}
		}
	})

	t.Run("unknown sort falls back to newest", func(t *testing.T) {
		got, _, err := s.QueryGalleries(ctx, GalleryFilter{SortBy: SortKey("drop table")})
		if err != nil {
			t.Fatal(err)
		}
		if got[0].ExternalID != "D" {
			t.Errorf("first = %s, want newest D", got[0].ExternalID)
		}
	})

	t.Run("pagination probe", func(t *testing.T) {
		page1, more, err := s.QueryGalleries(ctx, GalleryFilter{PerPage: 3, Page: 1})
		if err != nil {
			t.Fatal(err)
		}
		if len(page1) != 3 || !more {
			t.Fatalf("page 1: %d rows, more=%v, want 3 rows and more", len(page1), more)
		}
		page2, more, err := s.QueryGalleries(ctx, GalleryFilter{PerPage: 3, Page: 2})
		if err != nil {
			t.Fatal(err)
		}
		if len(page2) != 1 || more {
			t.Fatalf("page 2: %d rows, more=%v, want 1 row and no more", len(page2), more)
		}
	})
}

// WHAT: RefreshAggregates sums child media but never lowers a parsed count.
// WHY: a page can advertise more media than one extraction captured.
func TestRefreshAggregates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	g := &Gallery{ID: idgen.New(), ExternalID: "AGG", URL: "u", ImageCount: 12, VideoCount: 3}
	id, err := s.UpsertGallery(ctx, g)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertImage(ctx, &Image{ID: idgen.New(), GalleryID: id, ExternalID: "I1", SizeBytes: 1000}); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertVideo(ctx, &Video{ID: idgen.New(), GalleryID: id, ExternalID: "V1", Duration: 125, SizeBytes: 5000}); err != nil {
		t.Fatal(err)
	}

	if err := s.RefreshAggregates(ctx, id); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetGallery(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if got.ImageCount != 12 {
		t.Errorf("image_count = %d, want parsed 12 kept", got.ImageCount)
	}
	if got.VideoCount != 3 {
		t.Errorf("video_count = %d, want parsed 3 kept", got.VideoCount)
	}
	if got.TotalDuration != 125 {
		t.Errorf("total_duration = %d, want 125", got.TotalDuration)
	}
	if got.TotalSizeBytes != 6000 {
		t.Errorf("total_size_bytes = %d, want 6000", got.TotalSizeBytes)
	}
}

// WHAT: results inside the freshness window are returned; older ones are not.
// WHY: the search service serves a day-old cache before hitting the source.
func TestSearchFreshness(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	fresh := &SearchResult{Query: "beach", URL: "https://example.com/g/F", Title: "fresh", LastFetched: now.Add(-23 * time.Hour).UnixMilli()}
	stale := &SearchResult{Query: "beach", URL: "https://example.com/g/S", Title: "stale", LastFetched: now.Add(-25 * time.Hour).UnixMilli()}
	otherQuery := &SearchResult{Query: "city", URL: "https://example.com/g/F", Title: "other", LastFetched: now.UnixMilli()}
	for _, r := range []*SearchResult{fresh, stale, otherQuery} {
		if err := s.UpsertSearchResult(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.FreshResults(ctx, "beach", now.Add(-24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Title != "fresh" {
		t.Fatalf("got %d results, want only the fresh one", len(got))
	}

	// Re-upserting refreshes in place instead of adding a row.
	stale.LastFetched = now.UnixMilli()
	if err := s.UpsertSearchResult(ctx, stale); err != nil {
		t.Fatal(err)
	}
	var n int
	if err := s.DB.QueryRow(`SELECT COUNT(*) FROM search_results WHERE query = 'beach'`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("beach rows = %d, want 2", n)
	}
}

func TestDeleteStaleResults(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	old := &SearchResult{Query: "q", URL: "u1", LastFetched: now.Add(-48 * time.Hour).UnixMilli()}
	recent := &SearchResult{Query: "q", URL: "u2", LastFetched: now.UnixMilli()}
	for _, r := range []*SearchResult{old, recent} {
		if err := s.UpsertSearchResult(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	n, err := s.DeleteStaleResults(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("deleted %d rows, want 1", n)
	}
}

// WHAT: progress only moves forward; a late out-of-order update cannot
// drag the stored percentage back down.
func TestProgressMonotonic(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	id := idgen.New()

	for _, p := range []int{0, 40, 75} {
		if err := s.UpsertProgress(ctx, &ProgressEntry{ID: id, Filename: "clip.mp4", Progress: p}); err != nil {
			t.Fatal(err)
		}
	}
	// Stale update arriving late.
	if err := s.UpsertProgress(ctx, &ProgressEntry{ID: id, Filename: "clip.mp4", Progress: 20}); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetProgress(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Progress != 75 {
		t.Errorf("progress = %d, want 75 after stale 20", got.Progress)
	}
	if got.Status != StatusDownloading {
		t.Errorf("status = %q, want downloading", got.Status)
	}

	if err := s.UpsertProgress(ctx, &ProgressEntry{ID: id, Filename: "clip.mp4", Progress: 100, Status: StatusCompleted}); err != nil {
		t.Fatal(err)
	}
	got, err = s.GetProgress(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Progress != 100 || got.Status != StatusCompleted {
		t.Errorf("final entry = %d %q, want 100 completed", got.Progress, got.Status)
	}

	// Deleting frees the id for a fresh sequence.
	if err := s.DeleteProgress(ctx, id); err != nil {
		t.Fatal(err)
	}
	got, err = s.GetProgress(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("entry survives delete: %+v", got)
	}
}

// WHAT: out-of-range percentages clamp to 0..100 instead of erroring.
func TestProgressClamp(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	id := idgen.New()
	if err := s.UpsertProgress(ctx, &ProgressEntry{ID: id, Progress: 150}); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetProgress(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Progress != 100 {
		t.Errorf("progress = %d, want clamped 100", got.Progress)
	}
}

// WHAT: the reaper removes only finished entries past the cutoff.
// WHY: an in-flight download must stay visible however long it runs.
func TestReapProgress(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	insert := func(id, status string, age time.Duration) {
		t.Helper()
		ts := now.Add(-age).UnixMilli()
		_, err := s.DB.Exec(
			`INSERT INTO download_progress (id, filename, progress, status, created_at, updated_at)
			VALUES (?, '', 50, ?, ?, ?)`, id, status, ts, ts)
		if err != nil {
			t.Fatal(err)
		}
	}
	insert("done-old", StatusCompleted, 10*time.Minute)
	insert("err-old", StatusError, 10*time.Minute)
	insert("done-new", StatusCompleted, time.Minute)
	insert("active-old", StatusDownloading, time.Hour)

	n, err := s.ReapProgress(ctx, now.Add(-5*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("reaped %d, want 2", n)
	}

	left, err := s.ListProgress(ctx)
	if err != nil {
		t.Fatal(err)
	}
	ids := map[string]bool{}
	for _, e := range left {
		ids[e.ID] = true
	}
	if !ids["done-new"] || !ids["active-old"] {
		t.Errorf("surviving ids = %v, want done-new and active-old kept", ids)
	}
}

// WHAT: ListProgress orders newest first so the UI shows recent downloads on top.
func TestListProgressOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour).UnixMilli()
	for i, id := range []string{"a", "b", "c"} {
		e := &ProgressEntry{ID: id, Progress: 10, CreatedAt: base + int64(i*1000)}
		if err := s.UpsertProgress(ctx, e); err != nil {
			t.Fatal(err)
		}
	}
	got, err := s.ListProgress(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[0].ID != "c" || got[2].ID != "a" {
		t.Fatalf("order = %v, want c,b,a", got)
	}
}
