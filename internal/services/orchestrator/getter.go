package orchestrator

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/ternarybob/mitto/internal/dispatch"
	"github.com/ternarybob/mitto/internal/models"
)

// getterTick polls the destination for every submitted job, with download
// fan-out capped by the configured concurrency.
func (s *Service) getterTick(ctx context.Context) {
	jobs, err := s.jobStorage.ListByStatus(ctx, models.StatusSubmitted)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list submitted jobs")
		return
	}
	if len(jobs) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Scheduler.DownloadConcurrency)
	for _, job := range jobs {
		g.Go(func() error {
			s.fetchJob(gctx, job)
			return nil
		})
	}
	g.Wait()
}

// fetchJob attempts one result download. Not-ready and transport errors
// leave the job submitted for the next tick; terminal destination answers
// move it to unknown.
func (s *Service) fetchJob(ctx context.Context, job *models.Job) {
	d, svc, ok := s.dispatcherFor(job)
	if !ok {
		return
	}

	err := d.Download(ctx, job, svc.DownloadURL)
	switch {
	case err == nil:
		if uerr := s.jobStorage.UpdateStatus(ctx, job.ID, models.StatusCompleted); uerr != nil {
			s.logger.Error().Err(uerr).Int64("job_id", job.ID).Msg("Failed to mark job completed")
			return
		}
		s.logger.Info().Int64("job_id", job.ID).Str("service", job.Service).Msg("Job completed")

	case errors.Is(err, dispatch.ErrNotReady):
		// Destination still working; retry next tick.

	case errors.Is(err, dispatch.ErrJobNotFound), errors.Is(err, dispatch.ErrJobFailedOrCleaned):
		s.logger.Warn().Err(err).Int64("job_id", job.ID).Msg("Destination lost job, marking unknown")
		if uerr := s.jobStorage.UpdateStatus(ctx, job.ID, models.StatusUnknown); uerr != nil {
			s.logger.Error().Err(uerr).Int64("job_id", job.ID).Msg("Failed to mark job unknown")
		}

	default:
		var statusErr *dispatch.StatusError
		if errors.As(err, &statusErr) {
			s.logger.Warn().
				Int64("job_id", job.ID).
				Int("status_code", statusErr.Code).
				Msg("Unexpected download status, marking job unknown")
			if uerr := s.jobStorage.UpdateStatus(ctx, job.ID, models.StatusUnknown); uerr != nil {
				s.logger.Error().Err(uerr).Int64("job_id", job.ID).Msg("Failed to mark job unknown")
			}
			return
		}
		// Transport-level failure; treat as transient.
		s.logger.Warn().Err(err).Int64("job_id", job.ID).Msg("Download failed, will retry")
	}
}
