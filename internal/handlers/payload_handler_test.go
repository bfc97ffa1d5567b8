package handlers

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/mitto/internal/common"
	"github.com/ternarybob/mitto/internal/interfaces"
	"github.com/ternarybob/mitto/internal/models"
	"github.com/ternarybob/mitto/internal/storage/sqlite"
)

func newPayloadHandler(t *testing.T) (*PayloadHandler, interfaces.PayloadStorage, *common.Config) {
	t.Helper()
	logger := arbor.NewLogger()
	db, err := sqlite.NewSQLiteDB(logger, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	config := newTestConfig(t)
	payloadStorage := sqlite.NewPayloadStorage(db, config.Storage.DataPath, logger)
	return NewPayloadHandler(config, payloadStorage, logger), payloadStorage, config
}

func TestSubmitHandler_PreparesPayload(t *testing.T) {
	handler, storage, config := newPayloadHandler(t)

	body, contentType := multipartUpload(t, nil, map[string][]byte{
		"run.sh":    []byte("#!/bin/bash\necho ok\n"),
		"input.txt": []byte("data"),
	})

	req := httptest.NewRequest(http.MethodPost, "/submit", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.SubmitHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var payload models.Payload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, int64(1), payload.ID)
	assert.Equal(t, models.StatusPrepared, payload.Status)
	assert.Equal(t, filepath.Join(config.Storage.DataPath, "1"), payload.Loc)

	assert.FileExists(t, filepath.Join(payload.Loc, "run.sh"))
	got, err := os.ReadFile(filepath.Join(payload.Loc, "input.txt"))
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), got)

	stored, err := storage.GetByID(context.Background(), payload.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPrepared, stored.Status)
}

func TestSubmitHandler_RejectsNonMultipart(t *testing.T) {
	handler, _, _ := newPayloadHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/submit", bytes.NewBufferString("{}"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.SubmitHandler(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRetrieveHandler_ZipsLazily(t *testing.T) {
	handler, storage, config := newPayloadHandler(t)
	ctx := context.Background()

	payload := models.NewPayload()
	_, err := storage.Insert(ctx, payload)
	require.NoError(t, err)

	payload.Loc = filepath.Join(config.Storage.DataPath, "1")
	require.NoError(t, os.MkdirAll(payload.Loc, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(payload.Loc, "result.txt"), []byte("42"), 0o644))
	payload.Status = models.StatusCompleted
	require.NoError(t, storage.Update(ctx, payload))

	req := httptest.NewRequest(http.MethodGet, "/retrieve/1", nil)
	rec := httptest.NewRecorder()
	handler.RetrieveHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	// The bundle was cached inside the payload directory.
	assert.FileExists(t, payload.OutputZip())

	zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Contains(t, names, "result.txt")

	// A second retrieve serves the cached bundle.
	rec = httptest.NewRecorder()
	handler.RetrieveHandler(rec, httptest.NewRequest(http.MethodGet, "/retrieve/1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRetrieveHandler_StatusMatrix(t *testing.T) {
	handler, storage, _ := newPayloadHandler(t)
	ctx := context.Background()

	mkPayload := func(status models.Status) *models.Payload {
		payload := models.NewPayload()
		_, err := storage.Insert(ctx, payload)
		require.NoError(t, err)
		payload.Status = status
		require.NoError(t, storage.Update(ctx, payload))
		return payload
	}

	mkPayload(models.StatusFailed)   // id 1
	mkPayload(models.StatusPrepared) // id 2

	get := func(id string) int {
		req := httptest.NewRequest(http.MethodGet, "/retrieve/"+id, nil)
		rec := httptest.NewRecorder()
		handler.RetrieveHandler(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, get("1"))
	assert.Equal(t, http.StatusAccepted, get("2"))
	assert.Equal(t, http.StatusNotFound, get("7"))
}
