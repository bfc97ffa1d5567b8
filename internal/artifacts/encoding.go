package artifacts

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// encodeChunkSize is a multiple of 3 so every chunk encodes without padding
// and the concatenated result is valid base64.
const encodeChunkSize = 3072

// EncodeFileBase64 reads the file at path in 3 KiB chunks and returns its
// standard base64 encoding without loading the whole file into memory.
func EncodeFileBase64(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var sb strings.Builder
	buf := make([]byte, encodeChunkSize)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			sb.WriteString(base64.StdEncoding.EncodeToString(buf[:n]))
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", path, err)
		}
	}
	return sb.String(), nil
}

// DecodeBase64ToFile decodes content and writes it to path, creating parent
// directories as needed.
func DecodeBase64ToFile(content, path string) error {
	decoded, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return fmt.Errorf("invalid base64: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, decoded, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
