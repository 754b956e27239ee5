package markdown

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/goliatone/go-postindex/internal/logging"
	"github.com/goliatone/go-postindex/pkg/interfaces"
)

// FileReader implements interfaces.DocumentReader against the local
// filesystem. Read failures are logged and surface as empty content.
type FileReader struct {
	logger interfaces.Logger
}

var _ interfaces.DocumentReader = (*FileReader)(nil)

// NewFileReader returns a reader that reports failures through logger.
func NewFileReader(logger interfaces.Logger) *FileReader {
	if logger == nil {
		logger = logging.NoOp()
	}
	return &FileReader{logger: logger}
}

// ReadDocument returns the file content, or "" when it cannot be read.
func (r *FileReader) ReadDocument(path string) string {
	content, err := r.Read(path)
	if err != nil {
		r.logger.Warn("markdown.read.failed", "path", path, "error", err)
		return ""
	}
	return content
}

// Read returns the file content or a categorised read error.
func (r *FileReader) Read(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", readError(path, err)
	}
	return string(data), nil
}

// ModTime returns the modification time of path, or the zero time.
func (r *FileReader) ModTime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

// Exists reports whether path is currently a regular file.
func (r *FileReader) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// ScanOptions narrows which files ListDocuments returns.
type ScanOptions struct {
	// Extension filters by suffix. Defaults to interfaces.DocumentExtension.
	Extension string
	// Excluded lists bare filenames that are never returned.
	Excluded []string
}

// ListDocuments returns the sorted bare filenames of the regular files in dir
// that carry the configured extension. Sub-directories are not traversed.
func ListDocuments(dir string, opts ScanOptions) ([]string, error) {
	ext := opts.Extension
	if strings.TrimSpace(ext) == "" {
		ext = interfaces.DocumentExtension
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDirectoryMissing, dir)
		}
		return nil, fmt.Errorf("markdown: list %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ext) || slices.Contains(opts.Excluded, name) {
			continue
		}
		if !entry.Type().IsRegular() {
			// symlinks resolve to their target
			info, statErr := os.Stat(filepath.Join(dir, name))
			if statErr != nil || !info.Mode().IsRegular() {
				continue
			}
		}
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}
