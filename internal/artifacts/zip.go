package artifacts

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// ZipDirectory writes a DEFLATE-compressed zip of dir's contents to out.
// Entry paths are relative to dir, directory entries are included, and all
// entries carry unix mode 0755. The output file itself is excluded when it
// lives inside dir, so re-zipping a directory that already holds its own
// bundle stays stable.
func ZipDirectory(dir, out string) error {
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create zip %s: %w", out, err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	defer zw.Close()

	absOut, err := filepath.Abs(out)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", out, err)
	}

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		if abs == absOut {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			hdr := &zip.FileHeader{Name: rel + "/"}
			hdr.SetMode(0o755 | fs.ModeDir)
			_, err := zw.CreateHeader(hdr)
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}

		hdr := &zip.FileHeader{Name: rel, Method: zip.Deflate}
		hdr.SetMode(0o755)
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return err
		}

		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()

		_, err = io.Copy(w, src)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to zip %s: %w", dir, err)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize zip %s: %w", out, err)
	}
	return f.Close()
}
