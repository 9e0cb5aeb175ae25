package parse

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var durationPattern = regexp.MustCompile(`\b(\d{1,3}):(\d{2})(?::(\d{2}))?\b`)

// Count parses an integer out of loosely formatted text ("1,234", " 42 ").
// Malformed or missing input degrades to 0, never an error: a page variant
// without count markup is a normal condition, not a parse failure.
func Count(s string) int {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// FirstGroupCount applies re to text and parses capture group 1 as a count.
// A nil regexp or no match yields 0.
func FirstGroupCount(re *regexp.Regexp, text string) int {
	if re == nil {
		return 0
	}
	m := re.FindStringSubmatch(text)
	if len(m) < 2 {
		return 0
	}
	return Count(m[1])
}

// Duration converts "mm:ss" or "hh:mm:ss" text to total seconds.
// Returns 0 on malformed input.
func Duration(s string) int {
	m := durationPattern.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	a, _ := strconv.Atoi(m[1])
	b, _ := strconv.Atoi(m[2])
	if m[3] != "" {
		c, _ := strconv.Atoi(m[3])
		return a*3600 + b*60 + c
	}
	return a*60 + b
}

// PublishedAt tries the date layouts seen on source pages. The zero time
// means unknown; callers fall back to extraction time.
func PublishedAt(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02",
		"Jan 2, 2006",
		"2 Jan 2006",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
