package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/mitto/internal/models"
	"github.com/ternarybob/mitto/internal/storage/sqlite"
)

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("database gone") }

func TestPingHandler(t *testing.T) {
	handler := NewApiHandler(failingPinger{}, arbor.NewLogger())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.PingHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var ping models.Ping
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ping))
	assert.Equal(t, "pong", ping.Message)
}

func TestHealthHandler_Healthy(t *testing.T) {
	logger := arbor.NewLogger()
	db, err := sqlite.NewSQLiteDB(logger, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer db.Close()

	handler := NewApiHandler(db, logger)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.HealthHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var health models.Health
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "connected", health.Database)
}

func TestHealthHandler_Unhealthy(t *testing.T) {
	handler := NewApiHandler(failingPinger{}, arbor.NewLogger())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.HealthHandler(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
