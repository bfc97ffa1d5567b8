package models

import (
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Job represents one end-to-end request through the orchestrator: an upload
// from a user, forwarded to a destination service, polled for completion.
//
// A Job row in the jobs table is the single source of truth; in-memory Job
// values are short-lived views loaded by a scheduler tick, mutated, and
// re-persisted. ID == 0 means the job has not been persisted yet.
type Job struct {
	ID      int64  `json:"id"`
	UserID  int64  `json:"user_id"`
	Service string `json:"service"`
	Status  Status `json:"status"`
	// Loc is the absolute path of this job's artifact directory under the
	// data root. Assigned eagerly at construction, before persistence.
	Loc string `json:"loc"`
	// DestID is the identifier the destination returned at upload time.
	// Empty until the job reaches submitted.
	DestID    string    `json:"dest_id"`
	CreatedAt time.Time `json:"created_at"`
}

// NewJob creates an unpersisted job with a fresh artifact directory path
// under dataPath. The directory itself is created by the upload handler.
func NewJob(dataPath string) *Job {
	return &Job{
		Status: StatusUnknown,
		Loc:    filepath.Join(dataPath, uuid.New().String()),
	}
}
