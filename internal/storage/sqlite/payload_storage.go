package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/mitto/internal/interfaces"
	"github.com/ternarybob/mitto/internal/models"
)

// PayloadStorage implements client payload persistence on SQLite.
type PayloadStorage struct {
	db       *SQLiteDB
	dataPath string
	logger   arbor.ILogger
}

// NewPayloadStorage creates a new payload storage instance. dataPath is the
// artifact root used to reconstruct the location of rows written before the
// loc column was populated.
func NewPayloadStorage(db *SQLiteDB, dataPath string, logger arbor.ILogger) interfaces.PayloadStorage {
	return &PayloadStorage{
		db:       db,
		dataPath: dataPath,
		logger:   logger,
	}
}

// fallbackLoc fills an empty loc with data_path/<id>, the path Prepare would
// have chosen. Old rows persisted without a loc stay runnable.
func (s *PayloadStorage) fallbackLoc(payload *models.Payload) {
	if payload.Loc == "" {
		payload.Loc = filepath.Join(s.dataPath, strconv.FormatInt(payload.ID, 10))
	}
}

// Insert stores a new payload row and returns its assigned ID.
func (s *PayloadStorage) Insert(ctx context.Context, payload *models.Payload) (int64, error) {
	if payload.CreatedAt.IsZero() {
		payload.CreatedAt = time.Now()
	}

	res, err := s.db.db.ExecContext(ctx,
		`INSERT INTO payloads (status, loc, created_at) VALUES (?, ?, ?)`,
		payload.Status.String(), payload.Loc, payload.CreatedAt.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert payload: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read payload id: %w", err)
	}
	payload.ID = id
	return id, nil
}

// GetByID returns the payload with the given ID.
func (s *PayloadStorage) GetByID(ctx context.Context, id int64) (*models.Payload, error) {
	row := s.db.db.QueryRowContext(ctx,
		`SELECT id, status, loc, created_at FROM payloads WHERE id = ?`, id)

	var payload models.Payload
	var status string
	var createdAt int64
	err := row.Scan(&payload.ID, &status, &payload.Loc, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payload %d: %w", id, err)
	}
	payload.Status = models.StatusFromString(status)
	payload.CreatedAt = time.Unix(createdAt, 0)
	s.fallbackLoc(&payload)
	return &payload, nil
}

// Update persists the payload's current status and location.
func (s *PayloadStorage) Update(ctx context.Context, payload *models.Payload) error {
	res, err := s.db.db.ExecContext(ctx,
		`UPDATE payloads SET status = ?, loc = ? WHERE id = ?`,
		payload.Status.String(), payload.Loc, payload.ID)
	if err != nil {
		return fmt.Errorf("failed to update payload %d: %w", payload.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ListByStatus returns all payloads in the given status ordered by ID.
func (s *PayloadStorage) ListByStatus(ctx context.Context, status models.Status) ([]*models.Payload, error) {
	rows, err := s.db.db.QueryContext(ctx,
		`SELECT id, status, loc, created_at FROM payloads WHERE status = ? ORDER BY id`, status.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list payloads by status: %w", err)
	}
	defer rows.Close()

	var payloads []*models.Payload
	for rows.Next() {
		var payload models.Payload
		var st string
		var createdAt int64
		if err := rows.Scan(&payload.ID, &st, &payload.Loc, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan payload: %w", err)
		}
		payload.Status = models.StatusFromString(st)
		payload.CreatedAt = time.Unix(createdAt, 0)
		s.fallbackLoc(&payload)
		payloads = append(payloads, &payload)
	}
	return payloads, rows.Err()
}
