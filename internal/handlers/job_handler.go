package handlers

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/mitto/internal/artifacts"
	"github.com/ternarybob/mitto/internal/common"
	"github.com/ternarybob/mitto/internal/interfaces"
	"github.com/ternarybob/mitto/internal/models"
)

// JobHandler serves the orchestrator's upload and download endpoints.
type JobHandler struct {
	config     *common.Config
	jobStorage interfaces.JobStorage
	logger     arbor.ILogger
	validate   *validator.Validate
}

// NewJobHandler creates the job handler.
func NewJobHandler(config *common.Config, jobStorage interfaces.JobStorage, logger arbor.ILogger) *JobHandler {
	return &JobHandler{
		config:     config,
		jobStorage: jobStorage,
		logger:     logger,
		validate:   validator.New(),
	}
}

// uploadForm carries the two text parts of an upload request.
type uploadForm struct {
	UserID  string `validate:"required,number"`
	Service string `validate:"required"`
}

// UploadHandler ingests a multipart job submission. Files are streamed to
// the job's artifact directory as they arrive; validation runs afterwards
// and a rejected request removes the directory again, so nothing partial
// survives a 4xx/5xx.
func (h *JobHandler) UploadHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.config.Server.MaxBodyBytes)

	reader, err := r.MultipartReader()
	if err != nil {
		WriteError(w, http.StatusBadRequest, "expected multipart/form-data")
		return
	}

	job := models.NewJob(h.config.Storage.DataPath)
	var form uploadForm
	saved := 0

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			h.discard(job.Loc)
			WriteError(w, http.StatusBadRequest, "malformed multipart body")
			return
		}

		if part.FileName() == "" {
			value, err := io.ReadAll(io.LimitReader(part, 1024))
			part.Close()
			if err != nil {
				h.discard(job.Loc)
				WriteError(w, http.StatusBadRequest, "unreadable form field")
				return
			}
			switch part.FormName() {
			case "user_id":
				form.UserID = strings.TrimSpace(string(value))
			case "service":
				form.Service = strings.TrimSpace(string(value))
			}
			continue
		}

		name := artifacts.SanitizeFilename(part.FileName())
		if err := artifacts.SaveStream(filepath.Join(job.Loc, name), part); err != nil {
			part.Close()
			h.discard(job.Loc)
			h.logger.Error().Err(err).Str("file", name).Msg("Failed to store uploaded file")
			WriteError(w, http.StatusInternalServerError, "failed to store file")
			return
		}
		part.Close()
		saved++
	}

	if err := h.validate.Struct(form); err != nil {
		h.discard(job.Loc)
		WriteError(w, http.StatusBadRequest, "user_id and service are required")
		return
	}

	userID, err := strconv.ParseInt(form.UserID, 10, 64)
	if err != nil {
		h.discard(job.Loc)
		WriteError(w, http.StatusBadRequest, "user_id must be an integer")
		return
	}

	if _, ok := h.config.Service(form.Service); !ok {
		h.discard(job.Loc)
		WriteError(w, http.StatusServiceUnavailable, "service not configured")
		return
	}

	job.UserID = userID
	job.Service = strings.ToLower(form.Service)

	if _, err := h.jobStorage.Insert(r.Context(), job); err != nil {
		h.discard(job.Loc)
		h.logger.Error().Err(err).Msg("Failed to persist job")
		WriteError(w, http.StatusInternalServerError, "failed to persist job")
		return
	}
	if err := h.jobStorage.UpdateStatus(r.Context(), job.ID, models.StatusQueued); err != nil {
		// The insert went through; take the row and the artifact directory
		// back out so a 500 leaves nothing behind.
		h.discard(job.Loc)
		if derr := h.jobStorage.Delete(r.Context(), job.ID); derr != nil {
			h.logger.Warn().Err(derr).Int64("job_id", job.ID).Msg("Failed to remove unqueued job row")
		}
		h.logger.Error().Err(err).Int64("job_id", job.ID).Msg("Failed to queue job")
		WriteError(w, http.StatusInternalServerError, "failed to queue job")
		return
	}
	job.Status = models.StatusQueued

	h.logger.Info().
		Int64("job_id", job.ID).
		Int64("user_id", job.UserID).
		Str("service", job.Service).
		Int("files", saved).
		Msg("Job queued")
	WriteJSON(w, http.StatusOK, job)
}

// DownloadHandler serves job results by status: 200 with the output bundle
// for completed jobs, 204 for failed or cleaned, 202 for anything still in
// flight, 404 for an id that was never issued.
func (h *JobHandler) DownloadHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	idStr := strings.TrimPrefix(r.URL.Path, "/download/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	job, err := h.jobStorage.GetByID(r.Context(), id)
	if errors.Is(err, models.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Int64("job_id", id).Msg("Failed to load job")
		WriteError(w, http.StatusInternalServerError, "failed to load job")
		return
	}

	switch job.Status {
	case models.StatusCompleted:
		h.serveArtifact(w, r, job)
	case models.StatusFailed, models.StatusCleaned:
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusAccepted)
	}
}

// serveArtifact streams whichever output bundle the job's adapter produced.
func (h *JobHandler) serveArtifact(w http.ResponseWriter, r *http.Request, job *models.Job) {
	for _, name := range []string{"output.zip", "download.zip"} {
		path := filepath.Join(job.Loc, name)
		if _, err := os.Stat(path); err == nil {
			w.Header().Set("Content-Type", "application/zip")
			http.ServeFile(w, r, path)
			return
		}
	}

	h.logger.Error().Int64("job_id", job.ID).Str("loc", job.Loc).Msg("Completed job has no output bundle")
	WriteError(w, http.StatusInternalServerError, "output missing")
}

// discard removes a job directory after a rejected upload.
func (h *JobHandler) discard(loc string) {
	if err := os.RemoveAll(loc); err != nil {
		h.logger.Warn().Err(err).Str("loc", loc).Msg("Failed to remove rejected upload directory")
	}
}
