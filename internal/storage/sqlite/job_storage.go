package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/mitto/internal/interfaces"
	"github.com/ternarybob/mitto/internal/models"
)

// JobStorage implements job metadata persistence on SQLite.
type JobStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

// NewJobStorage creates a new job storage instance
func NewJobStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.JobStorage {
	return &JobStorage{
		db:     db,
		logger: logger,
	}
}

const jobColumns = "id, user_id, service, status, loc, dest_id, created_at"

func scanJob(row interface{ Scan(...any) error }) (*models.Job, error) {
	var job models.Job
	var status string
	var createdAt int64
	if err := row.Scan(&job.ID, &job.UserID, &job.Service, &status, &job.Loc, &job.DestID, &createdAt); err != nil {
		return nil, err
	}
	job.Status = models.StatusFromString(status)
	job.CreatedAt = time.Unix(createdAt, 0)
	return &job, nil
}

// Insert stores a new job and returns its assigned ID.
func (s *JobStorage) Insert(ctx context.Context, job *models.Job) (int64, error) {
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}

	res, err := s.db.db.ExecContext(ctx,
		`INSERT INTO jobs (user_id, service, status, loc, dest_id, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		job.UserID, job.Service, job.Status.String(), job.Loc, job.DestID, job.CreatedAt.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert job: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read job id: %w", err)
	}
	job.ID = id
	return id, nil
}

// GetByID returns the job with the given ID.
func (s *JobStorage) GetByID(ctx context.Context, id int64) (*models.Job, error) {
	row := s.db.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job %d: %w", id, err)
	}
	return job, nil
}

// GetByLoc returns the job whose artifact directory is loc.
func (s *JobStorage) GetByLoc(ctx context.Context, loc string) (*models.Job, error) {
	row := s.db.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE loc = ?`, loc)

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job by loc %s: %w", loc, err)
	}
	return job, nil
}

// UpdateStatus sets the status of a single job.
func (s *JobStorage) UpdateStatus(ctx context.Context, id int64, status models.Status) error {
	res, err := s.db.db.ExecContext(ctx,
		`UPDATE jobs SET status = ? WHERE id = ?`, status.String(), id)
	if err != nil {
		return fmt.Errorf("failed to update job %d status: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrNotFound
	}
	return nil
}

// Delete removes a job row.
func (s *JobStorage) Delete(ctx context.Context, id int64) error {
	res, err := s.db.db.ExecContext(ctx,
		`DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete job %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrNotFound
	}
	return nil
}

// UpdateForSubmission sets status and destination ID after a successful upload.
func (s *JobStorage) UpdateForSubmission(ctx context.Context, id int64, status models.Status, destID string) error {
	res, err := s.db.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, dest_id = ? WHERE id = ?`, status.String(), destID, id)
	if err != nil {
		return fmt.Errorf("failed to mark job %d submitted: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ListByStatus returns all jobs in the given status ordered by ID.
func (s *JobStorage) ListByStatus(ctx context.Context, status models.Status) ([]*models.Job, error) {
	rows, err := s.db.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE status = ? ORDER BY id`, status.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs by status: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// ResetStatus moves every job in from to to. Used by the startup sweep to
// requeue jobs stranded mid-upload by a crash.
func (s *JobStorage) ResetStatus(ctx context.Context, from, to models.Status) (int64, error) {
	res, err := s.db.db.ExecContext(ctx,
		`UPDATE jobs SET status = ? WHERE status = ?`, to.String(), from.String())
	if err != nil {
		return 0, fmt.Errorf("failed to reset %s jobs: %w", from, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count reset jobs: %w", err)
	}
	return n, nil
}

// LoadAdmissible returns the queued jobs that fit under each (user, service)
// cell's allowance. One query takes a consistent snapshot of queued jobs
// joined with the per-cell submitted counts; the allowance arithmetic runs
// over the ordered rows in Go.
func (s *JobStorage) LoadAdmissible(ctx context.Context, limits map[string]uint) ([]*models.Job, error) {
	rows, err := s.db.db.QueryContext(ctx, `
		WITH submitted AS (
			SELECT user_id, service, COUNT(*) AS n
			FROM jobs
			WHERE status = 'submitted'
			GROUP BY user_id, service
		)
		SELECT j.id, j.user_id, j.service, j.status, j.loc, j.dest_id, j.created_at,
		       COALESCE(s.n, 0)
		FROM jobs j
		LEFT JOIN submitted s ON s.user_id = j.user_id AND s.service = j.service
		WHERE j.status = 'queued'
		ORDER BY j.user_id, j.service, j.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to load queued jobs: %w", err)
	}
	defer rows.Close()

	var admitted []*models.Job
	var cellUser int64 = -1
	var cellService string
	var remaining int64

	for rows.Next() {
		var job models.Job
		var status string
		var createdAt, inFlight int64
		if err := rows.Scan(&job.ID, &job.UserID, &job.Service, &status, &job.Loc, &job.DestID, &createdAt, &inFlight); err != nil {
			return nil, fmt.Errorf("failed to scan queued job: %w", err)
		}
		job.Status = models.StatusFromString(status)
		job.CreatedAt = time.Unix(createdAt, 0)

		// Rows arrive grouped by cell; reset the allowance at each boundary.
		if job.UserID != cellUser || job.Service != cellService {
			cellUser = job.UserID
			cellService = job.Service
			remaining = int64(limits[job.Service]) - inFlight
		}

		if remaining > 0 {
			admitted = append(admitted, &job)
			remaining--
		}
	}
	return admitted, rows.Err()
}
