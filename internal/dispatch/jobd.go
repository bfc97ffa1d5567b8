package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/mitto/internal/artifacts"
	"github.com/ternarybob/mitto/internal/interfaces"
	"github.com/ternarybob/mitto/internal/models"
)

// JobdDispatcher speaks the legacy jobd protocol: the job bundle travels as
// a base64 string inside a JSON document rather than as a byte stream.
type JobdDispatcher struct {
	client *http.Client
	logger arbor.ILogger
}

// NewJobdDispatcher creates the base64-JSON dispatcher.
func NewJobdDispatcher(logger arbor.ILogger) interfaces.Dispatcher {
	return &JobdDispatcher{
		client: newHTTPClient(defaultTimeout),
		logger: logger,
	}
}

type jobdRequest struct {
	ID     string `json:"id"`
	Input  string `json:"input"`
	Slurml bool   `json:"slurml"`
}

type jobdResponse struct {
	ID     string `json:"ID"`
	Output string `json:"Output"`
}

// Upload encodes {job.loc}/payload.zip as base64 and POSTs it with a fresh
// UUID. The destination replies 201 with its own identifier.
func (d *JobdDispatcher) Upload(ctx context.Context, job *models.Job, uploadURL string) (string, error) {
	encoded, err := artifacts.EncodeFileBase64(filepath.Join(job.Loc, "payload.zip"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("upload: %w: %w", ErrInvalidPath, err)
		}
		return "", fmt.Errorf("upload: %w: %w", ErrEncodingFailed, err)
	}

	body, err := json.Marshal(jobdRequest{
		ID:     uuid.New().String(),
		Input:  encoded,
		Slurml: false,
	})
	if err != nil {
		return "", fmt.Errorf("upload: %w: %w", ErrEncodingFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("upload: %w: %w", ErrRequestFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload: %w: %w", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return "", newStatusError(resp)
	}

	var reply jobdResponse
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return "", fmt.Errorf("upload: %w: %w", ErrDeserializationFailed, err)
	}

	d.logger.Debug().
		Int64("job_id", job.ID).
		Str("dest_id", reply.ID).
		Msg("Job uploaded to jobd destination")
	return reply.ID, nil
}

// Download GETs {downloadURL}/{dest_id} and decodes the base64 Output field
// to {job.loc}/output.zip.
func (d *JobdDispatcher) Download(ctx context.Context, job *models.Job, downloadURL string) error {
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
		var reply jobdResponse
		if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
			return fmt.Errorf("download: %w: %w", ErrDeserializationFailed, err)
		}
		dst := filepath.Join(job.Loc, "output.zip")
		if err := artifacts.DecodeBase64ToFile(reply.Output, dst); err != nil {
			return fmt.Errorf("download: %w: %w", ErrEncodingFailed, err)
		}
		d.logger.Debug().
			Int64("job_id", job.ID).
			Str("path", dst).
			Msg("Job results downloaded from jobd destination")
		return nil
	case http.StatusAccepted:
		return ErrNotReady
	case http.StatusNotFound:
		return ErrJobNotFound
	default:
		return newStatusError(resp)
	}
}
