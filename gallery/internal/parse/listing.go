package parse

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ListingRules locates search-result entries for one content type. Listing
// pages have a different DOM shape than detail pages, so they get their own
// selector table.
type ListingRules struct {
	Container string `yaml:"container"`
	Link      string `yaml:"link"`
	Title     string `yaml:"title"`      // empty: title comes from the link text
	Thumbnail string `yaml:"thumbnail"`
	Counts    string `yaml:"counts"`
	Duration  string `yaml:"duration"`
	Views     string `yaml:"views"`
	Uploader  string `yaml:"uploader"`
}

// Result is one entry from a search listing page.
type Result struct {
	URL          string
	Title        string
	ThumbnailURL string
	Uploader     string
	VideoCount   int
	ImageCount   int
	Duration     int // seconds
	Views        int
}

// DefaultListings returns the per-content-type listing selector tables.
func DefaultListings() map[string]ListingRules {
	return map[string]ListingRules{
		"galleries": {
			Container: ".ml-gallery-thumb",
			Link:      "a",
			Title:     ".ml-galleries-title",
			Thumbnail: ".static",
			Counts:    ".ml-galleries-info",
			Uploader:  ".ml-galleries-uploader",
		},
		"videos": {
			Container: "div.mobile-thumb.video",
			Link:      "a.title",
			Thumbnail: "img.static",
			Duration:  "span",
			Views:     "span.hits",
			Uploader:  "a.plain.uploader",
		},
		"images": {
			Container: ".image-item",
			Link:      "a.image-link",
			Title:     ".image-title",
			Thumbnail: "img.image-thumb",
			Views:     ".views-count",
		},
	}
}

var (
	listVideoCount = regexp.MustCompile(`(?i)(\d+)\s*videos?`)
	listImageCount = regexp.MustCompile(`(?i)(\d+)\s*images?`)
	nonDigits      = regexp.MustCompile(`[^0-9]`)
)

// ParseListing extracts search results from listing-page markup. Entries
// without both a URL and a title are dropped silently; relative URLs are
// resolved against baseURL.
func ParseListing(html string, rules ListingRules, baseURL string) []Result {
	doc, err := Document(html)
	if err != nil {
		return nil
	}

	var results []Result
	doc.Find(rules.Container).Each(func(_ int, s *goquery.Selection) {
		link := s.Find(rules.Link).First()
		url := link.AttrOr("href", "")

		title := strings.TrimSpace(link.Text())
		if rules.Title != "" {
			title = strings.TrimSpace(s.Find(rules.Title).First().Text())
		}
		if url == "" || title == "" {
			return
		}
		if !strings.HasPrefix(url, "http") {
			url = strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(url, "/")
		}

		r := Result{URL: url, Title: title}

		if rules.Thumbnail != "" {
			thumb := s.Find(rules.Thumbnail).First()
			r.ThumbnailURL = thumb.AttrOr("src", thumb.AttrOr("data-strip-src", ""))
		}
		if rules.Duration != "" {
			r.Duration = Duration(s.Find(rules.Duration).First().Text())
		}
		if rules.Counts != "" {
			counts := s.Find(rules.Counts).Text()
			r.VideoCount = FirstGroupCount(listVideoCount, counts)
			r.ImageCount = FirstGroupCount(listImageCount, counts)
		}
		if rules.Views != "" {
			r.Views = Count(nonDigits.ReplaceAllString(s.Find(rules.Views).First().Text(), ""))
		}
		if rules.Uploader != "" {
			if r.Uploader = strings.TrimSpace(s.Find(rules.Uploader).First().Text()); r.Uploader == "" {
				r.Uploader = "anonymous"
			}
		}

		results = append(results, r)
	})
	return results
}
