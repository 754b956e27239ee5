package testsupport

import (
	"os"
	"path/filepath"
	"time"
)

// WritePost writes a markdown file into dir and pins its modification time
// when modTime is non-zero.
func WritePost(dir, name, content string, modTime time.Time) (string, error) {
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", err
	}
	if !modTime.IsZero() {
		if err := os.Chtimes(path, modTime, modTime); err != nil {
			return "", err
		}
	}
	return path, nil
}

// WritePosts writes every name/content pair into dir.
func WritePosts(dir string, posts map[string]string) error {
	for name, content := range posts {
		if _, err := WritePost(dir, name, content, time.Time{}); err != nil {
			return err
		}
	}
	return nil
}
