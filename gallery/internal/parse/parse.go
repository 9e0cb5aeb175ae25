// Package parse extracts gallery metadata and media items from source HTML.
//
// Source markup is inconsistent across page variants, so each media type is
// parsed with an ordered list of selector strategies plus a regex fallback
// over raw markup; candidates are unioned and deduplicated by derived id.
// Parsing is pure: no I/O, deterministic for a fixed input, and missing or
// malformed fields degrade to zero values instead of failing.
package parse

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"github.com/samber/lo"
)

// ErrUnreadableInput is reserved for input that cannot be interpreted as
// markup at all (empty body). Missing fields never produce it.
var ErrUnreadableInput = errors.New("parse: unreadable input")

// Media is one image or video extracted from a detail page.
// Zero values mean unknown.
type Media struct {
	ID           string // derived id, stable across re-extractions
	URL          string
	ThumbnailURL string
	Title        string
	Width        int
	Height       int
	SizeBytes    int64
	Duration     int // seconds, videos only
}

// Metadata is the gallery-level information from a detail page.
type Metadata struct {
	Title       string
	Description string
	Thumbnail   string
	Uploader    string
	Tags        []string
	ImageCount  int
	VideoCount  int
	Published   time.Time // zero if the page carries no usable date
}

// Parser applies a compiled Ruleset.
type Parser struct {
	images     compiledMedia
	videos     compiledMedia
	meta       MetaRules
	uploaderRe *regexp.Regexp
	imgCountRe *regexp.Regexp
	vidCountRe *regexp.Regexp
	sanitize   *bluemonday.Policy
}

// New compiles rules into a Parser. A nil ruleset uses DefaultRules.
func New(rules *Ruleset) (*Parser, error) {
	if rules == nil {
		rules = DefaultRules()
	}
	p := &Parser{meta: rules.Meta, sanitize: bluemonday.StrictPolicy()}

	var err error
	if p.images, err = compileMedia(rules.Images); err != nil {
		return nil, fmt.Errorf("images: %w", err)
	}
	if p.videos, err = compileMedia(rules.Videos); err != nil {
		return nil, fmt.Errorf("videos: %w", err)
	}
	for _, c := range []struct {
		expr string
		dst  **regexp.Regexp
	}{
		{rules.Meta.UploaderRegex, &p.uploaderRe},
		{rules.Meta.ImageCountRegex, &p.imgCountRe},
		{rules.Meta.VideoCountRegex, &p.vidCountRe},
	} {
		if c.expr == "" {
			continue
		}
		if *c.dst, err = regexp.Compile(c.expr); err != nil {
			return nil, fmt.Errorf("metadata regex: %w", err)
		}
	}
	return p, nil
}

// Document parses html into a goquery document. The only failure mode is
// input that is not markup at all; goquery tolerates broken HTML.
func Document(html string) (*goquery.Document, error) {
	if strings.TrimSpace(html) == "" {
		return nil, ErrUnreadableInput
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableInput, err)
	}
	return doc, nil
}

// ParseImages extracts image items from detail-page markup.
func (p *Parser) ParseImages(html string) []Media {
	return p.parseMedia(html, p.images, false)
}

// ParseVideos extracts video items from detail-page markup.
func (p *Parser) ParseVideos(html string) []Media {
	return p.parseMedia(html, p.videos, true)
}

func (p *Parser) parseMedia(html string, c compiledMedia, video bool) []Media {
	u := newUnion()

	if doc, err := Document(html); err == nil {
		for _, rule := range c.rules.Selectors {
			doc.Find(rule.Query).Each(func(_ int, s *goquery.Selection) {
				if m, ok := c.fromSelection(s, rule, video); ok {
					u.add(m)
				}
			})
		}
	}

	// Regex fallback over raw markup catches variants the selectors miss.
	if c.fallback != nil {
		for _, m := range c.fallback.FindAllStringSubmatch(html, -1) {
			item := Media{ID: m[1]}
			if len(m) > 2 {
				item.Title = m[2]
			}
			c.fill(&item)
			u.add(item)
		}
	}

	return u.items()
}

// fromSelection builds a Media candidate from one selected element.
func (c compiledMedia) fromSelection(s *goquery.Selection, rule SelectorRule, video bool) (Media, bool) {
	var m Media
	var raw string
	for _, attr := range rule.Attrs {
		if v, ok := s.Attr(attr); ok && v != "" {
			raw = v
			break
		}
	}
	if rule.IDAttr != "" {
		m.ID = strings.TrimSpace(s.AttrOr(rule.IDAttr, ""))
	}
	if m.ID == "" {
		m.ID = c.deriveID(raw)
	}
	if m.ID == "" {
		return m, false
	}
	m.Title = strings.TrimSpace(s.AttrOr("alt", s.AttrOr("title", "")))
	if !video && raw != "" {
		m.ThumbnailURL = raw
	}
	if video {
		m.Duration = durationNear(s)
	}
	c.fill(&m)
	return m, true
}

// fill completes canonical CDN URLs from the derived id.
func (c compiledMedia) fill(m *Media) {
	if m.URL == "" && c.rules.URLTemplate != "" {
		m.URL = strings.ReplaceAll(c.rules.URLTemplate, "%s", m.ID)
	}
	if m.ThumbnailURL == "" && c.rules.ThumbTemplate != "" {
		m.ThumbnailURL = strings.ReplaceAll(c.rules.ThumbTemplate, "%s", m.ID)
	}
}

// deriveID extracts the stable media id from a CDN URL or filename.
func (c compiledMedia) deriveID(rawURL string) string {
	if c.idFrom == nil || rawURL == "" {
		return ""
	}
	m := c.idFrom.FindStringSubmatch(rawURL)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// durationNear looks for a duration on the element itself or in the text of
// its enclosing container (listing and player markup put it in either place).
func durationNear(s *goquery.Selection) int {
	if v, ok := s.Attr("data-duration"); ok {
		if d := Duration(v); d > 0 {
			return d
		}
	}
	if d := Duration(s.Text()); d > 0 {
		return d
	}
	if parent := s.Parent(); parent.Length() > 0 {
		if d := Duration(parent.Text()); d > 0 {
			return d
		}
	}
	return 0
}

// ParseMetadata extracts gallery-level metadata from detail-page markup.
// Never fails: every missing field degrades to its zero value.
func (p *Parser) ParseMetadata(html string) Metadata {
	var md Metadata
	doc, err := Document(html)
	if err != nil {
		return md
	}

	if title := doc.Find("title").First().Text(); title != "" {
		md.Title = strings.TrimSpace(strings.SplitN(title, "|", 2)[0])
	}
	md.Description = p.textFromSelectors(doc, p.meta.Description)
	md.Thumbnail = attrFromSelectors(doc, p.meta.Thumbnail, "src", "content")
	md.Uploader = p.uploaderFrom(doc, html)
	md.Tags = p.tagsFrom(doc)
	md.ImageCount = p.countFrom(doc, html, p.imgCountRe, looseImageCount)
	md.VideoCount = p.countFrom(doc, html, p.vidCountRe, looseVideoCount)
	md.Published = publishedFrom(doc)
	return md
}

// textFromSelectors returns the first non-empty, sanitised text match.
func (p *Parser) textFromSelectors(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		s := doc.Find(sel).First()
		if s.Length() == 0 {
			continue
		}
		text := s.Text()
		if text == "" {
			text = s.AttrOr("content", "")
		}
		if clean := strings.TrimSpace(p.sanitize.Sanitize(text)); clean != "" {
			return clean
		}
	}
	return ""
}

func attrFromSelectors(doc *goquery.Document, selectors []string, attrs ...string) string {
	for _, sel := range selectors {
		s := doc.Find(sel).First()
		if s.Length() == 0 {
			continue
		}
		for _, attr := range attrs {
			if v, ok := s.Attr(attr); ok && v != "" {
				return v
			}
		}
	}
	return ""
}

func (p *Parser) uploaderFrom(doc *goquery.Document, html string) string {
	for _, sel := range p.meta.Uploader {
		s := doc.Find(sel).First()
		if s.Length() == 0 {
			continue
		}
		if name := strings.TrimSpace(s.Text()); name != "" {
			return name
		}
		if href, ok := s.Attr("href"); ok {
			parts := strings.Split(strings.Trim(href, "/"), "/")
			if len(parts) > 0 && parts[len(parts)-1] != "" {
				return parts[len(parts)-1]
			}
		}
	}
	if p.uploaderRe != nil {
		if m := p.uploaderRe.FindStringSubmatch(html); len(m) > 1 {
			return m[1]
		}
	}
	return ""
}

func (p *Parser) tagsFrom(doc *goquery.Document) []string {
	var tags []string
	for _, sel := range p.meta.Tags {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			if tag := strings.TrimSpace(s.Text()); tag != "" {
				tags = append(tags, tag)
			}
		})
		if len(tags) > 0 {
			break
		}
	}
	return lo.Uniq(tags)
}

var (
	looseImageCount = regexp.MustCompile(`(?i)(\d[\d,]*)\s*Images?`)
	looseVideoCount = regexp.MustCompile(`(?i)(\d[\d,]*)\s*Videos?`)
)

// countFrom tries the configured regex on raw markup, then a loose pattern
// on the visible counts block.
func (p *Parser) countFrom(doc *goquery.Document, html string, re, loose *regexp.Regexp) int {
	if n := FirstGroupCount(re, html); n > 0 {
		return n
	}
	return FirstGroupCount(loose, doc.Find(".media-counts").Text())
}

func publishedFrom(doc *goquery.Document) time.Time {
	if dt, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
		if t := PublishedAt(dt); !t.IsZero() {
			return t
		}
	}
	return PublishedAt(doc.Find(".upload-date").First().Text())
}

// union accumulates media candidates, deduplicating by derived id.
// First-seen position is kept for deterministic output; later candidates
// overwrite earlier attributes field-wise where they carry a value.
type union struct {
	order []string
	byID  map[string]Media
}

func newUnion() *union {
	return &union{byID: make(map[string]Media)}
}

func (u *union) add(m Media) {
	prev, seen := u.byID[m.ID]
	if !seen {
		u.order = append(u.order, m.ID)
		u.byID[m.ID] = m
		return
	}
	if m.URL != "" {
		prev.URL = m.URL
	}
	if m.ThumbnailURL != "" {
		prev.ThumbnailURL = m.ThumbnailURL
	}
	if m.Title != "" {
		prev.Title = m.Title
	}
	if m.Width != 0 {
		prev.Width = m.Width
	}
	if m.Height != 0 {
		prev.Height = m.Height
	}
	if m.SizeBytes != 0 {
		prev.SizeBytes = m.SizeBytes
	}
	if m.Duration != 0 {
		prev.Duration = m.Duration
	}
	u.byID[m.ID] = prev
}

func (u *union) items() []Media {
	out := make([]Media, 0, len(u.order))
	for _, id := range u.order {
		out = append(out, u.byID[id])
	}
	return out
}
