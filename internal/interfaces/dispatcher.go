package interfaces

import (
	"context"

	"github.com/ternarybob/mitto/internal/models"
)

// Dispatcher moves job artifacts between the orchestrator and a destination
// service. Implementations are keyed by the service's configured adapter.
type Dispatcher interface {
	// Upload sends the job's artifact directory to uploadURL and returns
	// the destination-assigned identifier. A non-success HTTP status is
	// reported as *dispatch.StatusError.
	Upload(ctx context.Context, job *models.Job, uploadURL string) (string, error)

	// Download fetches the job's results into its artifact directory.
	// It returns dispatch.ErrNotReady while the destination is still
	// working and dispatch.ErrNotFound when the destination no longer
	// knows the job.
	Download(ctx context.Context, job *models.Job, downloadURL string) error
}
