package metadata

import (
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-postindex/pkg/interfaces"
)

func TestExtractTitle(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    string
	}{
		{name: "first heading", content: "# Hello World\n\nBody", want: "Hello World"},
		{name: "heading after preamble", content: "intro\n# Second\n# Third", want: "Second"},
		{name: "trailing whitespace", content: "#   Spaced Out  \r\nbody", want: "Spaced Out"},
		{name: "subheading ignored", content: "## Not it\nbody", want: ""},
		{name: "hash without space", content: "#Tag\nbody", want: ""},
		{name: "empty", content: "", want: ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExtractTitle(tc.content); got != tc.want {
				t.Fatalf("ExtractTitle(%q) = %q, want %q", tc.content, got, tc.want)
			}
		})
	}
}

func TestExtractDateFromContent(t *testing.T) {
	ex := NewExtractor()
	mod := time.Date(2023, 1, 2, 12, 0, 0, 0, time.UTC)

	meta := ex.Extract("# Title\nPublished 2024-03-05 today, updated 2024-04-01", mod)
	if meta.Date != "2024-03-05" {
		t.Fatalf("expected first date in content, got %q", meta.Date)
	}
	if meta.Title != "Title" {
		t.Fatalf("expected title, got %q", meta.Title)
	}
}

func TestExtractDateFallsBackToModTime(t *testing.T) {
	ex := Extractor{Location: time.UTC}
	mod := time.Date(2023, 1, 2, 12, 0, 0, 0, time.UTC)

	meta := ex.Extract("# No date here", mod)
	if meta.Date != "2023-01-02" {
		t.Fatalf("expected mtime fallback, got %q", meta.Date)
	}

	if got := ex.Extract("# No date", time.Time{}).Date; got != "" {
		t.Fatalf("expected empty date for zero mtime, got %q", got)
	}
}

func TestExtractDateOnlyScansLeadingCharacters(t *testing.T) {
	padding := strings.Repeat("é", DateScanLimit)
	content := padding + " 2024-03-05"

	if got := ExtractDate(content); got != "" {
		t.Fatalf("expected date beyond scan window to be ignored, got %q", got)
	}

	near := strings.Repeat("é", DateScanLimit-10) + "2024-03-05"
	if got := ExtractDate(near); got != "2024-03-05" {
		t.Fatalf("expected date ending at the scan limit, got %q", got)
	}
}

func TestFallbackTitle(t *testing.T) {
	cases := map[string]string{
		"my-post.md":           "My Post",
		"another_great-one.md": "Another Great One",
		"UPPER-case.md":        "Upper Case",
		"single.md":            "Single",
		"post_v2beta.md":       "Post V2Beta",
		"they're-here.md":      "They'Re Here",
	}
	for input, want := range cases {
		if got := FallbackTitle(input); got != want {
			t.Fatalf("FallbackTitle(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestResolveTitle(t *testing.T) {
	if got := ResolveTitle(interfaces.Metadata{Title: "Given"}, "my-post.md"); got != "Given" {
		t.Fatalf("expected extracted title to win, got %q", got)
	}
	if got := ResolveTitle(interfaces.Metadata{}, "my-post.md"); got != "My Post" {
		t.Fatalf("expected fallback title, got %q", got)
	}
}
