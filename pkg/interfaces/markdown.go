package interfaces

import "time"

// DocumentReader loads raw post content from disk. ReadDocument never fails:
// missing or unreadable files yield an empty string so callers can treat the
// document as absent.
type DocumentReader interface {
	ReadDocument(path string) string
	// ModTime reports the modification time of path, or the zero time when the
	// file cannot be stat'ed.
	ModTime(path string) time.Time
	// Exists re-checks that path is still a regular file on disk.
	Exists(path string) bool
}

// Renderer converts markdown text into HTML. Rendering is pure; failures are
// reported as a visible placeholder instead of an error.
type Renderer interface {
	RenderHTML(markdown string) string
}

// MetadataExtractor derives canonical metadata from post content.
type MetadataExtractor interface {
	Extract(content string, modified time.Time) Metadata
}

// Metadata captures the fields derived from a post's content.
type Metadata struct {
	Title string `json:"title"`
	Date  string `json:"date"`
}
