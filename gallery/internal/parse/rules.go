package parse

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Ruleset describes how to locate media and metadata in source markup.
// Selector sets are data, not code: the upstream site reshuffles its DOM
// between page variants, so rules load from YAML and ship with defaults
// matching the variants observed so far.
type Ruleset struct {
	Images MediaRules `yaml:"images"`
	Videos MediaRules `yaml:"videos"`
	Meta   MetaRules  `yaml:"metadata"`
	// Listings maps a content type (galleries, videos, images) to the
	// selector table for its search-result pages.
	Listings map[string]ListingRules `yaml:"listings"`
}

// MediaRules is the ordered strategy list for one media type. Every selector
// rule is tried, then the fallback regex over raw markup; candidates are
// unioned and deduplicated by derived id.
type MediaRules struct {
	// Selectors are CSS-selector strategies, tried in order.
	Selectors []SelectorRule `yaml:"selectors"`
	// FallbackRegex runs over the raw markup. Group 1 must capture the
	// media id; group 2, when present, captures the title.
	FallbackRegex string `yaml:"fallback_regex"`
	// IDPattern extracts the derived id from a CDN URL or filename.
	// Group 1 must capture the id.
	IDPattern string `yaml:"id_pattern"`
	// URLTemplate and ThumbTemplate rebuild canonical CDN URLs from an id
	// ("%s" is replaced by the id).
	URLTemplate   string `yaml:"url_template"`
	ThumbTemplate string `yaml:"thumb_template"`
}

// SelectorRule is a single CSS-selector strategy.
type SelectorRule struct {
	// Query selects candidate elements.
	Query string `yaml:"query"`
	// Attrs lists attributes to read the media URL from, in order
	// (e.g. src, then data-src for lazy-loaded variants).
	Attrs []string `yaml:"attrs"`
	// IDAttr, when set, reads the media id directly from an attribute
	// instead of deriving it from the URL (e.g. data-video-id).
	IDAttr string `yaml:"id_attr"`
}

// MetaRules locates gallery-level metadata.
type MetaRules struct {
	Description     []string `yaml:"description"`
	Thumbnail       []string `yaml:"thumbnail"`
	Uploader        []string `yaml:"uploader"`
	Tags            []string `yaml:"tags"`
	UploaderRegex   string   `yaml:"uploader_regex"`
	ImageCountRegex string   `yaml:"image_count_regex"`
	VideoCountRegex string   `yaml:"video_count_regex"`
}

// DefaultRules returns the built-in ruleset for the observed source variants.
func DefaultRules() *Ruleset {
	return &Ruleset{
		Images: MediaRules{
			Selectors: []SelectorRule{
				{Query: `img[src*="cdn5-images"], img[data-src*="cdn5-images"]`, Attrs: []string{"src", "data-src"}},
				{Query: `img[src*="cdn5-thumbs"], img[data-src*="cdn5-thumbs"]`, Attrs: []string{"src", "data-src"}},
				{Query: `.gallery-image img`, Attrs: []string{"src", "data-src"}},
			},
			FallbackRegex: `src="https://cdn5-thumbs\.motherlessmedia\.com/thumbs/([A-Z0-9]+?)\.(?:jpg|gif)"[^>]*alt="([^"]*)"`,
			IDPattern:     `/([A-Z0-9]+)(?:\.(?:jpg|jpeg|gif|png))`,
			URLTemplate:   "https://cdn5-images.motherlessmedia.com/images/%s.jpg",
			ThumbTemplate: "https://cdn5-thumbs.motherlessmedia.com/thumbs/%s.jpg",
		},
		Videos: MediaRules{
			Selectors: []SelectorRule{
				{Query: `video source[src*="cdn5-videos"], video source[src$=".mp4"]`, Attrs: []string{"src"}},
				{Query: `[data-video-id]`, IDAttr: "data-video-id"},
				{Query: `img[src*="-strip"]`, Attrs: []string{"src"}},
			},
			FallbackRegex: `thumbs/([A-Z0-9]+?)-strip\.jpg" alt="([^"]*)"`,
			IDPattern:     `/([A-Z0-9]+?)(?:-strip)?\.(?:mp4|webm|jpg)`,
			URLTemplate:   "https://cdn5-videos.motherlessmedia.com/videos/%s.mp4",
			ThumbTemplate: "https://cdn5-thumbs.motherlessmedia.com/thumbs/%s-strip.jpg",
		},
		Meta: MetaRules{
			Description:     []string{".gallery-description", `meta[property="og:description"]`},
			Thumbnail:       []string{".gallery-image img", `meta[property="og:image"]`},
			Uploader:        []string{".gallery-member-username a", "a.plain.uploader"},
			Tags:            []string{".media-tags a", ".tags a"},
			UploaderRegex:   `gallery-member-username">[\s\S]+?<a href="/m/(.+?)"`,
			ImageCountRegex: `Images \(([0-9,]+)\)`,
			VideoCountRegex: `Videos \(([0-9,]+)\)`,
		},
		Listings: DefaultListings(),
	}
}

// LoadRules reads a YAML ruleset from path. Fields left empty in the file
// fall back to the defaults, so operators only override what drifted.
func LoadRules(path string) (*Ruleset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rules: read %s: %w", path, err)
	}
	rules := DefaultRules()
	if err := yaml.Unmarshal(data, rules); err != nil {
		return nil, fmt.Errorf("rules: parse %s: %w", path, err)
	}
	return rules, nil
}

// compiled holds the regex forms of a MediaRules entry.
type compiledMedia struct {
	rules    MediaRules
	fallback *regexp.Regexp
	idFrom   *regexp.Regexp
}

func compileMedia(r MediaRules) (compiledMedia, error) {
	c := compiledMedia{rules: r}
	var err error
	if r.FallbackRegex != "" {
		if c.fallback, err = regexp.Compile(r.FallbackRegex); err != nil {
			return c, fmt.Errorf("rules: fallback regex: %w", err)
		}
	}
	if r.IDPattern != "" {
		if c.idFrom, err = regexp.Compile(r.IDPattern); err != nil {
			return c, fmt.Errorf("rules: id pattern: %w", err)
		}
	}
	return c, nil
}
