package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/mitto/internal/artifacts"
	"github.com/ternarybob/mitto/internal/interfaces"
	"github.com/ternarybob/mitto/internal/models"
)

// ClientDispatcher streams a job's artifact directory to the destination as
// multipart/form-data and fetches results as a raw zip stream. File bytes
// are piped straight from disk to the request body, never buffered whole.
type ClientDispatcher struct {
	client *http.Client
	logger arbor.ILogger
}

// NewClientDispatcher creates the multipart-streaming dispatcher.
func NewClientDispatcher(logger arbor.ILogger) interfaces.Dispatcher {
	return &ClientDispatcher{
		client: newHTTPClient(defaultTimeout),
		logger: logger,
	}
}

type uploadResponse struct {
	ID string `json:"id"`
}

// Upload walks job.Loc and sends every regular file as one part. The part
// name is the file's path relative to job.Loc so directory structure
// survives the trip; the filename is the basename. Content-Length per part
// comes from filesystem metadata.
func (d *ClientDispatcher) Upload(ctx context.Context, job *models.Job, uploadURL string) (string, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		err := writeDirectoryParts(mw, job.Loc)
		if cerr := mw.Close(); err == nil {
			err = cerr
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, pr)
	if err != nil {
		return "", fmt.Errorf("upload: %w: %w", ErrRequestFailed, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := d.client.Do(req)
	if err != nil {
		// A pipe error from the walk (unreadable file) surfaces here too.
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("upload: %w: %w", ErrInvalidPath, err)
		}
		return "", fmt.Errorf("upload: %w: %w", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", newStatusError(resp)
	}

	var body uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("upload: %w: %w", ErrDeserializationFailed, err)
	}

	d.logger.Debug().
		Int64("job_id", job.ID).
		Str("dest_id", body.ID).
		Msg("Job uploaded to destination")
	return body.ID, nil
}

// writeDirectoryParts emits one multipart part per regular file under dir.
func writeDirectoryParts(mw *multipart.Writer, dir string) error {
	return filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		info, err := entry.Info()
		if err != nil {
			return err
		}

		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name=%q; filename=%q`, rel, filepath.Base(path)))
		header.Set("Content-Type", "application/octet-stream")
		header.Set("Content-Length", strconv.FormatInt(info.Size(), 10))

		part, err := mw.CreatePart(header)
		if err != nil {
			return err
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		_, err = io.Copy(part, f)
		return err
	})
}

// Download issues GET {downloadURL}/{dest_id} and streams a 200 response to
// {job.loc}/download.zip.
func (d *ClientDispatcher) Download(ctx context.Context, job *models.Job, downloadURL string) error {
	target, err := url.JoinPath(downloadURL, job.DestID)
	if err != nil {
		return fmt.Errorf("download: %w: %w", ErrRequestFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("download: %w: %w", ErrRequestFailed, err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("download: %w: %w", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		dst := filepath.Join(job.Loc, "download.zip")
		if err := artifacts.SaveStream(dst, resp.Body); err != nil {
			return fmt.Errorf("download: %w: %w", ErrResponseReadFailed, err)
		}
		d.logger.Debug().
			Int64("job_id", job.ID).
			Str("path", dst).
			Msg("Job results downloaded")
		return nil
	case http.StatusAccepted:
		return ErrNotReady
	case http.StatusNoContent:
		return ErrJobFailedOrCleaned
	case http.StatusNotFound:
		return ErrJobNotFound
	default:
		return newStatusError(resp)
	}
}
