package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPing(t *testing.T) {
	db, cleanup := setupTestDB(t)

	require.NoError(t, db.Ping(context.Background()))

	cleanup()
	assert.Error(t, db.Ping(context.Background()))
}

func TestMigrate_JobsCellIndex(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	// The admission snapshot scans per (user_id, service) cell in ID order,
	// so the covering index must end on id, not status.
	rows, err := db.DB().Query(`PRAGMA index_info(idx_jobs_cell)`)
	require.NoError(t, err)
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var seqno, cid int
		var name string
		require.NoError(t, rows.Scan(&seqno, &cid, &name))
		columns = append(columns, name)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"user_id", "service", "id"}, columns)
}
