// Package artifacts provides the filesystem helpers behind the artifact
// store: one directory per job or payload under the configured data root.
package artifacts

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// writeBufferSize is the buffer used when streaming uploads to disk.
const writeBufferSize = 1024 * 1024

// EnsureRoot creates the artifact root directory if it does not exist.
func EnsureRoot(dataPath string) error {
	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		return fmt.Errorf("failed to create data root %s: %w", dataPath, err)
	}
	return nil
}

// SaveStream copies r to the file at dst through a 1 MiB buffered writer,
// creating parent directories as needed. The file bytes are never held in
// memory beyond the buffer.
func SaveStream(dst string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", dst, err)
	}

	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	defer f.Close()

	w := bufio.NewWriterSize(f, writeBufferSize)
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", dst, err)
	}
	return nil
}
