package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/ternarybob/mitto/internal/models"
)

// janitorRun reaps artifact directories older than the retention window.
// The status transition to cleaned happens before the directory is removed
// so a crash mid-reap never leaves a live job pointing at a missing loc.
func (s *Service) janitorRun(ctx context.Context) {
	entries, err := os.ReadDir(s.config.Storage.DataPath)
	if err != nil {
		s.logger.Error().Err(err).Str("path", s.config.Storage.DataPath).Msg("Janitor failed to read data root")
		return
	}

	maxAge := s.config.MaxAge()
	now := time.Now()

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		loc := filepath.Join(s.config.Storage.DataPath, entry.Name())

		info, err := entry.Info()
		if err != nil {
			s.logger.Warn().Err(err).Str("loc", loc).Msg("Janitor failed to stat directory")
			continue
		}
		if now.Sub(info.ModTime()) < maxAge {
			continue
		}

		job, err := s.jobStorage.GetByLoc(ctx, loc)
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Warn().Str("loc", loc).Msg("Aged directory has no job record, skipping")
			continue
		}
		if err != nil {
			s.logger.Error().Err(err).Str("loc", loc).Msg("Janitor job lookup failed")
			continue
		}

		if err := s.jobStorage.UpdateStatus(ctx, job.ID, models.StatusCleaned); err != nil {
			s.logger.Error().Err(err).Int64("job_id", job.ID).Msg("Failed to mark job cleaned")
			continue
		}
		if err := os.RemoveAll(loc); err != nil {
			s.logger.Error().Err(err).Str("loc", loc).Msg("Failed to remove artifact directory")
			continue
		}

		s.logger.Info().
			Int64("job_id", job.ID).
			Str("loc", loc).
			Msg("Reaped aged artifact directory")
	}
}
