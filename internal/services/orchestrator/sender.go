package orchestrator

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/ternarybob/mitto/internal/dispatch"
	"github.com/ternarybob/mitto/internal/models"
)

// senderTick admits queued jobs under the per-(user, service) allowance and
// uploads each admitted job concurrently. The tick returns only after every
// spawned upload has finished.
func (s *Service) senderTick(ctx context.Context) {
	jobs, err := s.jobStorage.LoadAdmissible(ctx, s.config.ServiceLimits())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to load admissible jobs")
		return
	}
	if len(jobs) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, job := range jobs {
		g.Go(func() error {
			s.sendJob(gctx, job)
			return nil
		})
	}
	g.Wait()
}

// sendJob moves one job queued -> processing -> submitted. A destination
// rejection (unexpected HTTP status) requeues the job for a later tick;
// any other failure is permanent.
func (s *Service) sendJob(ctx context.Context, job *models.Job) {
	d, svc, ok := s.dispatcherFor(job)
	if !ok {
		return
	}

	if err := s.jobStorage.UpdateStatus(ctx, job.ID, models.StatusProcessing); err != nil {
		s.logger.Error().Err(err).Int64("job_id", job.ID).Msg("Failed to mark job processing")
		return
	}

	destID, err := d.Upload(ctx, job, svc.UploadURL)
	if err != nil {
		var statusErr *dispatch.StatusError
		if errors.As(err, &statusErr) {
			s.logger.Warn().
				Int64("job_id", job.ID).
				Int("status_code", statusErr.Code).
				Str("body", statusErr.Body).
				Msg("Destination rejected upload, requeueing job")
			if uerr := s.jobStorage.UpdateStatus(ctx, job.ID, models.StatusQueued); uerr != nil {
				s.logger.Error().Err(uerr).Int64("job_id", job.ID).Msg("Failed to requeue job")
			}
			return
		}

		s.logger.Error().Err(err).Int64("job_id", job.ID).Msg("Upload failed, marking job failed")
		if uerr := s.jobStorage.UpdateStatus(ctx, job.ID, models.StatusFailed); uerr != nil {
			s.logger.Error().Err(uerr).Int64("job_id", job.ID).Msg("Failed to mark job failed")
		}
		return
	}

	if err := s.jobStorage.UpdateForSubmission(ctx, job.ID, models.StatusSubmitted, destID); err != nil {
		s.logger.Error().Err(err).Int64("job_id", job.ID).Msg("Failed to mark job submitted")
		return
	}

	s.logger.Info().
		Int64("job_id", job.ID).
		Str("service", job.Service).
		Str("dest_id", destID).
		Msg("Job submitted")
}
