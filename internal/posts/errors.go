package posts

import (
	goerrors "github.com/goliatone/go-errors"
)

// TextCodeStorageError tags every failure raised by a Store backend.
const TextCodeStorageError = "STORAGE_ERROR"

func storageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, "document store "+op+" failed").
		WithTextCode(TextCodeStorageError).
		WithMetadata(map[string]any{"operation": op})
}

// IsStorageError reports whether err was raised by the storage backend.
func IsStorageError(err error) bool {
	var target *goerrors.Error
	if !goerrors.As(err, &target) {
		return false
	}
	return target.TextCode == TextCodeStorageError
}
