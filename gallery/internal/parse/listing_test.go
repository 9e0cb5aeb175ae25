package parse

import "testing"

const galleriesListingHTML = `<html><body>
<div class="ml-gallery-thumb">
  <a href="/g/ABC123"><img class="static" src="https://cdn5-thumbs.motherlessmedia.com/thumbs/ABC123.jpg"></a>
  <div class="ml-galleries-title">Summer Set</div>
  <div class="ml-galleries-uploader">bob</div>
  <div class="ml-galleries-info">3 videos, 12 images</div>
</div>
<div class="ml-gallery-thumb">
  <a href="/g/NOTITLE"></a>
</div>
</body></html>`

func TestParseListing_Galleries(t *testing.T) {
	// WHAT: Gallery listing entries parse title, counts, uploader, thumb.
	// WHY: Listing pages have their own DOM shape, distinct from detail pages.
	rules := DefaultListings()["galleries"]
	results := ParseListing(galleriesListingHTML, rules, "https://motherless.com")
	if len(results) != 1 {
		t.Fatalf("results: got %d, want 1 (entry without title must be dropped)", len(results))
	}
	r := results[0]
	if r.URL != "https://motherless.com/g/ABC123" {
		t.Errorf("url: got %q (relative href must be resolved)", r.URL)
	}
	if r.Title != "Summer Set" {
		t.Errorf("title: got %q", r.Title)
	}
	if r.VideoCount != 3 || r.ImageCount != 12 {
		t.Errorf("counts: got %d/%d, want 3/12", r.VideoCount, r.ImageCount)
	}
	if r.Uploader != "bob" {
		t.Errorf("uploader: got %q", r.Uploader)
	}
	if r.ThumbnailURL == "" {
		t.Error("thumbnail should be set")
	}
}

func TestParseListing_Videos(t *testing.T) {
	// WHAT: Video listing entries parse duration, views, and link-text title.
	html := `<html><body>
<div class="mobile-thumb video">
  <span>1:30</span>
  <a class="title" href="https://motherless.com/V1AAAA">Clip one</a>
  <img class="static" src="https://cdn5-thumbs.motherlessmedia.com/thumbs/V1AAAA-strip.jpg">
  <span class="hits">10,510 Views</span>
  <a class="plain uploader">carol</a>
</div>
</body></html>`
	rules := DefaultListings()["videos"]
	results := ParseListing(html, rules, "https://motherless.com")
	if len(results) != 1 {
		t.Fatalf("results: got %d, want 1", len(results))
	}
	r := results[0]
	if r.Title != "Clip one" {
		t.Errorf("title: got %q (video titles come from link text)", r.Title)
	}
	if r.Duration != 90 {
		t.Errorf("duration: got %d, want 90", r.Duration)
	}
	if r.Views != 10510 {
		t.Errorf("views: got %d, want 10510", r.Views)
	}
	if r.Uploader != "carol" {
		t.Errorf("uploader: got %q", r.Uploader)
	}
}

func TestParseListing_UploaderFallsBackToAnonymous(t *testing.T) {
	html := `<html><body>
<div class="mobile-thumb video">
  <a class="title" href="/V2BBBB">Clip two</a>
</div>
</body></html>`
	rules := DefaultListings()["videos"]
	results := ParseListing(html, rules, "https://motherless.com")
	if len(results) != 1 {
		t.Fatalf("results: got %d, want 1", len(results))
	}
	if results[0].Uploader != "anonymous" {
		t.Errorf("uploader: got %q, want anonymous", results[0].Uploader)
	}
}

func TestParseListing_EmptyPage(t *testing.T) {
	rules := DefaultListings()["images"]
	if got := ParseListing(`<html><body></body></html>`, rules, "https://x.test"); len(got) != 0 {
		t.Fatalf("results: got %d, want 0", len(got))
	}
}
