package archive

import (
	"os"
	"path/filepath"
	"strings"
)

// ImageExtensions lists the file extensions treated as images.
var ImageExtensions = []string{".png", ".jpg", ".jpeg"}

// IsImage reports whether name has an image extension, ignoring case.
func IsImage(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, candidate := range ImageExtensions {
		if ext == candidate {
			return true
		}
	}
	return false
}

// ListImages returns the image file names in dir sorted by name. A missing
// directory yields an error satisfying errors.Is(err, fs.ErrNotExist).
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !IsImage(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}
