// Package metadata derives post titles and dates from raw markdown content.
package metadata

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/goliatone/go-postindex/pkg/interfaces"
)

const (
	// DateScanLimit bounds how many leading characters are searched for a date.
	DateScanLimit = 500
	// DateLayout is the canonical YYYY-MM-DD rendering of a post date.
	DateLayout = "2006-01-02"

	headingPrefix = "# "
)

var datePattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

// Extractor implements interfaces.MetadataExtractor.
type Extractor struct {
	// Location is used when formatting the modification time fallback.
	// Nil means time.Local.
	Location *time.Location
}

var _ interfaces.MetadataExtractor = Extractor{}

// NewExtractor returns an extractor using the local time zone.
func NewExtractor() Extractor {
	return Extractor{}
}

// Extract returns the title and date for content. It never fails; missing
// values come back empty.
func (e Extractor) Extract(content string, modified time.Time) interfaces.Metadata {
	return interfaces.Metadata{
		Title: ExtractTitle(content),
		Date:  e.extractDate(content, modified),
	}
}

func (e Extractor) extractDate(content string, modified time.Time) string {
	if date := ExtractDate(content); date != "" {
		return date
	}
	if modified.IsZero() {
		return ""
	}
	loc := e.Location
	if loc == nil {
		loc = time.Local
	}
	return modified.In(loc).Format(DateLayout)
}

// ExtractTitle returns the text of the first line starting with "# ".
func ExtractTitle(content string) string {
	for line := range strings.Lines(content) {
		if rest, ok := strings.CutPrefix(line, headingPrefix); ok {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}

// ExtractDate returns the first YYYY-MM-DD sequence within the first
// DateScanLimit characters of content, or "" when there is none.
func ExtractDate(content string) string {
	return datePattern.FindString(truncateRunes(content, DateScanLimit))
}

func truncateRunes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}

// FallbackTitle builds a display title from a filename: the extension is
// dropped, dashes and underscores become spaces and the result is title
// cased. A letter is upper cased when the preceding rune is not a cased
// letter, so "post_v2beta.md" becomes "Post V2Beta".
func FallbackTitle(filename string) string {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	base = strings.NewReplacer("-", " ", "_", " ").Replace(base)
	return titleCase(base)
}

func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevCased := false
	for _, r := range s {
		cased := unicode.IsUpper(r) || unicode.IsLower(r) || unicode.IsTitle(r)
		switch {
		case cased && prevCased:
			r = unicode.ToLower(r)
		case cased:
			r = unicode.ToTitle(r)
		}
		b.WriteRune(r)
		prevCased = cased
	}
	return b.String()
}

// ResolveTitle returns meta.Title, or the filename fallback when it is empty.
func ResolveTitle(meta interfaces.Metadata, filename string) string {
	if meta.Title != "" {
		return meta.Title
	}
	return FallbackTitle(filename)
}

