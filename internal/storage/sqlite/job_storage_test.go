package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/mitto/internal/interfaces"
	"github.com/ternarybob/mitto/internal/models"
)

// setupTestDB creates a test database and returns cleanup function
func setupTestDB(t *testing.T) (*SQLiteDB, func()) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	logger := arbor.NewLogger()
	db, err := NewSQLiteDB(logger, dbPath)
	require.NoError(t, err)

	cleanup := func() {
		db.Close()
	}

	return db, cleanup
}

func insertJob(t *testing.T, storage interfaces.JobStorage, userID int64, service string, status models.Status) *models.Job {
	t.Helper()
	job := &models.Job{
		UserID:  userID,
		Service: service,
		Status:  status,
		Loc:     filepath.Join("/tmp/data", service),
	}
	_, err := storage.Insert(context.Background(), job)
	require.NoError(t, err)
	return job
}

func TestJobStorage_InsertAndGet(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	logger := arbor.NewLogger()
	storage := NewJobStorage(db, logger)
	ctx := context.Background()

	job := &models.Job{
		UserID:  42,
		Service: "alpha",
		Status:  models.StatusQueued,
		Loc:     "/data/abc",
	}
	id, err := storage.Insert(ctx, job)
	require.NoError(t, err)
	assert.Equal(t, id, job.ID)
	assert.Positive(t, id)

	got, err := storage.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.UserID)
	assert.Equal(t, "alpha", got.Service)
	assert.Equal(t, models.StatusQueued, got.Status)
	assert.Equal(t, "/data/abc", got.Loc)
	assert.Empty(t, got.DestID)
	assert.False(t, got.CreatedAt.IsZero())

	byLoc, err := storage.GetByLoc(ctx, "/data/abc")
	require.NoError(t, err)
	assert.Equal(t, id, byLoc.ID)
}

func TestJobStorage_GetMissing(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	storage := NewJobStorage(db, arbor.NewLogger())
	ctx := context.Background()

	_, err := storage.GetByID(ctx, 999)
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = storage.GetByLoc(ctx, "/data/nowhere")
	assert.ErrorIs(t, err, models.ErrNotFound)

	err = storage.UpdateStatus(ctx, 999, models.StatusFailed)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestJobStorage_UpdateForSubmission(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	storage := NewJobStorage(db, arbor.NewLogger())
	ctx := context.Background()

	job := insertJob(t, storage, 1, "alpha", models.StatusProcessing)

	err := storage.UpdateForSubmission(ctx, job.ID, models.StatusSubmitted, "dest-123")
	require.NoError(t, err)

	got, err := storage.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSubmitted, got.Status)
	assert.Equal(t, "dest-123", got.DestID)
}

func TestJobStorage_Delete(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	storage := NewJobStorage(db, arbor.NewLogger())
	ctx := context.Background()

	job := insertJob(t, storage, 1, "alpha", models.StatusUnknown)

	require.NoError(t, storage.Delete(ctx, job.ID))

	_, err := storage.GetByID(ctx, job.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	assert.ErrorIs(t, storage.Delete(ctx, job.ID), models.ErrNotFound)
}

func TestJobStorage_ListByStatus(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	storage := NewJobStorage(db, arbor.NewLogger())
	ctx := context.Background()

	first := insertJob(t, storage, 1, "alpha", models.StatusSubmitted)
	insertJob(t, storage, 1, "alpha", models.StatusQueued)
	second := insertJob(t, storage, 2, "beta", models.StatusSubmitted)

	submitted, err := storage.ListByStatus(ctx, models.StatusSubmitted)
	require.NoError(t, err)
	require.Len(t, submitted, 2)
	assert.Equal(t, first.ID, submitted[0].ID)
	assert.Equal(t, second.ID, submitted[1].ID)
}

func TestJobStorage_ResetStatus(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	storage := NewJobStorage(db, arbor.NewLogger())
	ctx := context.Background()

	insertJob(t, storage, 1, "alpha", models.StatusProcessing)
	insertJob(t, storage, 2, "alpha", models.StatusProcessing)
	untouched := insertJob(t, storage, 3, "alpha", models.StatusSubmitted)

	n, err := storage.ResetStatus(ctx, models.StatusProcessing, models.StatusQueued)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	queued, err := storage.ListByStatus(ctx, models.StatusQueued)
	require.NoError(t, err)
	assert.Len(t, queued, 2)

	got, err := storage.GetByID(ctx, untouched.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSubmitted, got.Status)
}

func TestJobStorage_LoadAdmissible_PerUserLimit(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	storage := NewJobStorage(db, arbor.NewLogger())
	ctx := context.Background()

	// User 1 already has 3 submitted jobs on alpha and 4 queued behind them.
	for i := 0; i < 3; i++ {
		insertJob(t, storage, 1, "alpha", models.StatusSubmitted)
	}
	var queued []*models.Job
	for i := 0; i < 4; i++ {
		queued = append(queued, insertJob(t, storage, 1, "alpha", models.StatusQueued))
	}

	admitted, err := storage.LoadAdmissible(ctx, map[string]uint{"alpha": 5})
	require.NoError(t, err)
	require.Len(t, admitted, 2)
	assert.Equal(t, queued[0].ID, admitted[0].ID)
	assert.Equal(t, queued[1].ID, admitted[1].ID)
}

func TestJobStorage_LoadAdmissible_IndependentCells(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	storage := NewJobStorage(db, arbor.NewLogger())
	ctx := context.Background()

	// User 1 saturates alpha; user 2 and service beta are unaffected.
	for i := 0; i < 2; i++ {
		insertJob(t, storage, 1, "alpha", models.StatusSubmitted)
	}
	insertJob(t, storage, 1, "alpha", models.StatusQueued)
	u1beta := insertJob(t, storage, 1, "beta", models.StatusQueued)
	u2alpha := insertJob(t, storage, 2, "alpha", models.StatusQueued)

	admitted, err := storage.LoadAdmissible(ctx, map[string]uint{"alpha": 2, "beta": 2})
	require.NoError(t, err)
	require.Len(t, admitted, 2)
	assert.Equal(t, u1beta.ID, admitted[0].ID)
	assert.Equal(t, u2alpha.ID, admitted[1].ID)
}

func TestJobStorage_LoadAdmissible_ZeroLimit(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	storage := NewJobStorage(db, arbor.NewLogger())
	ctx := context.Background()

	insertJob(t, storage, 1, "alpha", models.StatusQueued)

	admitted, err := storage.LoadAdmissible(ctx, map[string]uint{"alpha": 0})
	require.NoError(t, err)
	assert.Empty(t, admitted)
}

func TestJobStorage_LoadAdmissible_UnknownService(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	storage := NewJobStorage(db, arbor.NewLogger())
	ctx := context.Background()

	// A job for a service that is no longer configured admits nothing.
	insertJob(t, storage, 1, "legacy", models.StatusQueued)
	known := insertJob(t, storage, 1, "alpha", models.StatusQueued)

	admitted, err := storage.LoadAdmissible(ctx, map[string]uint{"alpha": 1})
	require.NoError(t, err)
	require.Len(t, admitted, 1)
	assert.Equal(t, known.ID, admitted[0].ID)
}

func TestJobStorage_LoadAdmissible_OversubscribedCell(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	storage := NewJobStorage(db, arbor.NewLogger())
	ctx := context.Background()

	// More submitted than the allowance permits, e.g. after the limit was
	// lowered. The negative headroom must not underflow into admissions.
	for i := 0; i < 4; i++ {
		insertJob(t, storage, 1, "alpha", models.StatusSubmitted)
	}
	insertJob(t, storage, 1, "alpha", models.StatusQueued)

	admitted, err := storage.LoadAdmissible(ctx, map[string]uint{"alpha": 2})
	require.NoError(t, err)
	assert.Empty(t, admitted)
}
