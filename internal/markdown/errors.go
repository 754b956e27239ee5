package markdown

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
)

const textCodeDocumentUnreadable = "DOCUMENT_UNREADABLE"

var (
	// ErrDocumentUnreadable marks a post file that could not be read.
	ErrDocumentUnreadable = errors.New("markdown: document unreadable")
	// ErrDirectoryMissing is returned when the posts directory does not exist.
	ErrDirectoryMissing = errors.New("markdown: posts directory missing")
)

func readError(path string, err error) error {
	return goerrors.Wrap(errors.Join(ErrDocumentUnreadable, err), goerrors.CategoryOperation, "read markdown document").
		WithTextCode(textCodeDocumentUnreadable).
		WithMetadata(map[string]any{"path": path})
}

// IsReadError reports whether err originates from a failed document read.
func IsReadError(err error) bool {
	return errors.Is(err, ErrDocumentUnreadable)
}
