package parse

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadRules_PartialOverride(t *testing.T) {
	// WHAT: A YAML rules file overrides only the keys it sets.
	// WHY: Operators patch single selectors when the source DOM drifts;
	// everything else must keep its default.
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	yml := `
images:
  url_template: "https://cdn.example.test/i/%s.jpg"
  id_pattern: '/([A-Z0-9]+)\.jpg'
  selectors:
    - query: 'img.photo'
      attrs: [src]
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}

	rules, err := LoadRules(path)
	if err != nil {
		t.Fatalf("load rules: %v", err)
	}
	if rules.Images.URLTemplate != "https://cdn.example.test/i/%s.jpg" {
		t.Errorf("url_template not overridden: %q", rules.Images.URLTemplate)
	}
	if len(rules.Images.Selectors) != 1 || rules.Images.Selectors[0].Query != "img.photo" {
		t.Errorf("selectors not overridden: %+v", rules.Images.Selectors)
	}
	// Untouched sections keep defaults.
	if rules.Videos.URLTemplate != DefaultRules().Videos.URLTemplate {
		t.Errorf("videos template should keep default, got %q", rules.Videos.URLTemplate)
	}
	if _, ok := rules.Listings["galleries"]; !ok {
		t.Error("listings should keep defaults")
	}
}

func TestLoadRules_MissingFile(t *testing.T) {
	if _, err := LoadRules("/does/not/exist.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadRules_OverriddenParserWorks(t *testing.T) {
	// WHAT: A parser built from overridden rules extracts with the new selectors.
	rules := DefaultRules()
	rules.Images.Selectors = []SelectorRule{{Query: "img.photo", Attrs: []string{"src"}}}
	rules.Images.IDPattern = `/([A-Z0-9]+)\.jpg`
	rules.Images.FallbackRegex = ""
	p, err := New(rules)
	if err != nil {
		t.Fatalf("new parser: %v", err)
	}
	images := p.ParseImages(`<html><body><img class="photo" src="https://x.test/AA11.jpg"></body></html>`)
	if len(images) != 1 || images[0].ID != "AA11" {
		t.Fatalf("got %+v, want one item with id AA11", images)
	}
}
