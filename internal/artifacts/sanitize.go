package artifacts

import (
	"path/filepath"
	"strings"
)

// SanitizeFilename reduces a submitted filename to a safe basename.
// Directory components (forward or backward slashes) and traversal segments
// are stripped; an empty result falls back to "file". The returned name
// never contains a path separator.
func SanitizeFilename(name string) string {
	// Windows clients submit backslash-separated paths.
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)

	switch name {
	case "", ".", "..", "/":
		return "file"
	}
	return name
}
