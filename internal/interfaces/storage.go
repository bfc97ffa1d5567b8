// Package interfaces defines the service contracts between the HTTP layer,
// the schedulers, and the storage and dispatch implementations.
package interfaces

import (
	"context"

	"github.com/ternarybob/mitto/internal/models"
)

// JobStorage persists orchestrator job metadata.
type JobStorage interface {
	// Insert stores a new job and returns its assigned numeric ID.
	Insert(ctx context.Context, job *models.Job) (int64, error)

	// GetByID returns the job with the given ID, or models.ErrNotFound.
	GetByID(ctx context.Context, id int64) (*models.Job, error)

	// GetByLoc returns the job whose artifact directory is loc, or
	// models.ErrNotFound.
	GetByLoc(ctx context.Context, loc string) (*models.Job, error)

	// UpdateStatus sets the status of a single job.
	UpdateStatus(ctx context.Context, id int64, status models.Status) error

	// Delete removes a job row. Used to undo an insert when queueing the
	// job afterwards fails.
	Delete(ctx context.Context, id int64) error

	// UpdateForSubmission sets the status and destination ID together after
	// a successful upload.
	UpdateForSubmission(ctx context.Context, id int64, status models.Status, destID string) error

	// ListByStatus returns all jobs in the given status ordered by ID.
	ListByStatus(ctx context.Context, status models.Status) ([]*models.Job, error)

	// ResetStatus moves every job in from to to and returns the number of
	// rows changed. Used by the startup sweep.
	ResetStatus(ctx context.Context, from, to models.Status) (int64, error)

	// LoadAdmissible returns the queued jobs that fit under each
	// (user, service) cell's concurrency allowance given the currently
	// submitted jobs, ordered by user, service, then ID. limits maps a
	// service name to its per-user allowance; services absent from the map
	// admit nothing.
	LoadAdmissible(ctx context.Context, limits map[string]uint) ([]*models.Job, error)
}

// PayloadStorage persists client-side payload metadata.
type PayloadStorage interface {
	// Insert stores a new payload row and returns its assigned ID.
	Insert(ctx context.Context, payload *models.Payload) (int64, error)

	// GetByID returns the payload with the given ID, or models.ErrNotFound.
	GetByID(ctx context.Context, id int64) (*models.Payload, error)

	// Update persists the payload's current status and location.
	Update(ctx context.Context, payload *models.Payload) error

	// ListByStatus returns all payloads in the given status ordered by ID.
	ListByStatus(ctx context.Context, status models.Status) ([]*models.Payload, error)
}
