package handlers

import (
	"errors"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/mitto/internal/artifacts"
	"github.com/ternarybob/mitto/internal/common"
	"github.com/ternarybob/mitto/internal/interfaces"
	"github.com/ternarybob/mitto/internal/models"
)

// PayloadHandler serves the client's submit and retrieve endpoints.
type PayloadHandler struct {
	config         *common.Config
	payloadStorage interfaces.PayloadStorage
	logger         arbor.ILogger
}

// NewPayloadHandler creates the payload handler.
func NewPayloadHandler(config *common.Config, payloadStorage interfaces.PayloadStorage, logger arbor.ILogger) *PayloadHandler {
	return &PayloadHandler{
		config:         config,
		payloadStorage: payloadStorage,
		logger:         logger,
	}
}

// SubmitHandler accepts a multipart bundle of input files, stages it on
// disk under the payload's id and hands it to the runner as prepared.
func (h *PayloadHandler) SubmitHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.config.Server.MaxBodyBytes)

	reader, err := r.MultipartReader()
	if err != nil {
		WriteError(w, http.StatusBadRequest, "expected multipart/form-data")
		return
	}

	payload := models.NewPayload()
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			WriteError(w, http.StatusBadRequest, "malformed multipart body")
			return
		}
		if part.FileName() == "" {
			part.Close()
			continue
		}

		data, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			WriteError(w, http.StatusBadRequest, "unreadable file part")
			return
		}
		payload.AddInput(artifacts.SanitizeFilename(part.FileName()), data)
	}

	if _, err := h.payloadStorage.Insert(r.Context(), payload); err != nil {
		h.logger.Error().Err(err).Msg("Failed to persist payload")
		WriteError(w, http.StatusInternalServerError, "failed to persist payload")
		return
	}

	if err := payload.Prepare(h.config.Storage.DataPath); err != nil {
		h.logger.Error().Err(err).Int64("payload_id", payload.ID).Msg("Failed to stage payload")
		WriteError(w, http.StatusInternalServerError, "failed to stage payload")
		return
	}

	payload.Status = models.StatusPrepared
	if err := h.payloadStorage.Update(r.Context(), payload); err != nil {
		h.logger.Error().Err(err).Int64("payload_id", payload.ID).Msg("Failed to mark payload prepared")
		WriteError(w, http.StatusInternalServerError, "failed to update payload")
		return
	}

	h.logger.Info().
		Int64("payload_id", payload.ID).
		Int("files", len(payload.Input)).
		Msg("Payload prepared")
	WriteJSON(w, http.StatusOK, payload)
}

// RetrieveHandler serves execution results. The output bundle is produced
// lazily: the first retrieve of a completed payload zips its directory and
// caches the zip inside it.
func (h *PayloadHandler) RetrieveHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	idStr := strings.TrimPrefix(r.URL.Path, "/retrieve/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid payload id")
		return
	}

	payload, err := h.payloadStorage.GetByID(r.Context(), id)
	if errors.Is(err, models.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "payload not found")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Int64("payload_id", id).Msg("Failed to load payload")
		WriteError(w, http.StatusInternalServerError, "failed to load payload")
		return
	}

	switch payload.Status {
	case models.StatusCompleted:
		out := payload.OutputZip()
		if _, err := os.Stat(out); err != nil {
			if err := artifacts.ZipDirectory(payload.Loc, out); err != nil {
				h.logger.Error().Err(err).Int64("payload_id", id).Msg("Failed to zip payload results")
				WriteError(w, http.StatusInternalServerError, "failed to bundle results")
				return
			}
		}
		w.Header().Set("Content-Type", "application/zip")
		http.ServeFile(w, r, out)
	case models.StatusFailed, models.StatusCleaned:
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusAccepted)
	}
}
