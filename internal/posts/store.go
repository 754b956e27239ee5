// Package posts persists the document index: one row per markdown file with
// its derived title and date.
package posts

import (
	"context"
	"errors"
	"strings"

	"github.com/goliatone/go-postindex/pkg/interfaces"
)

var (
	// ErrDocumentNotFound is returned by lookups when no row matches.
	ErrDocumentNotFound = errors.New("posts: document not found")
	// ErrFilenameRequired rejects writes without a filename.
	ErrFilenameRequired = errors.New("posts: filename required")
)

// UpsertAction describes what an Upsert did to the index.
type UpsertAction string

const (
	UpsertInserted  UpsertAction = "inserted"
	UpsertUpdated   UpsertAction = "updated"
	UpsertUnchanged UpsertAction = "unchanged"
)

// UpsertResult carries the stored row and the action applied to it.
type UpsertResult struct {
	Action   UpsertAction
	Document interfaces.Document
}

// Store is the document index. Implementations serialise writes per
// filename and report every backend failure as a storage error.
type Store interface {
	// List returns a page ordered by date descending, ties broken by id.
	List(ctx context.Context, limit, offset int) ([]interfaces.Document, error)
	Count(ctx context.Context) (int, error)
	FindByFilename(ctx context.Context, filename string) (*interfaces.Document, error)
	// Snapshot returns every row keyed by filename.
	Snapshot(ctx context.Context) (map[string]interfaces.Document, error)
	// Upsert inserts filename or updates its title and date, keeping the id.
	Upsert(ctx context.Context, filename, title, date string) (UpsertResult, error)
	// UpdateTitle rewrites only the title of an existing row.
	UpdateTitle(ctx context.Context, filename, title string) (bool, error)
	DeleteByFilename(ctx context.Context, filename string) (bool, error)
	DeleteByID(ctx context.Context, id int64) (bool, error)
}

func normalizeFilename(filename string) (string, error) {
	trimmed := strings.TrimSpace(filename)
	if trimmed == "" {
		return "", ErrFilenameRequired
	}
	return trimmed, nil
}

func normalizePage(limit, offset int) (int, int, bool) {
	if limit <= 0 {
		return 0, 0, false
	}
	return limit, max(offset, 0), true
}
