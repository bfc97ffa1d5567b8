// Package orchestrator runs the server-side scheduler: the sender pushes
// queued jobs to their destination service, the getter collects finished
// results, and the janitor reaps aged artifact directories.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/mitto/internal/common"
	"github.com/ternarybob/mitto/internal/dispatch"
	"github.com/ternarybob/mitto/internal/interfaces"
	"github.com/ternarybob/mitto/internal/models"
)

// Service owns the three orchestrator drivers.
type Service struct {
	config      *common.Config
	jobStorage  interfaces.JobStorage
	dispatchers map[string]interfaces.Dispatcher
	logger      arbor.ILogger
	cron        *cron.Cron
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	running     bool
}

// NewService builds the scheduler with one dispatcher per adapter referenced
// by the configured services.
func NewService(config *common.Config, jobStorage interfaces.JobStorage, logger arbor.ILogger) (*Service, error) {
	dispatchers := make(map[string]interfaces.Dispatcher)
	for _, svc := range config.Services {
		if _, ok := dispatchers[svc.Adapter]; ok {
			continue
		}
		d, err := dispatch.ForAdapter(svc.Adapter, logger)
		if err != nil {
			return nil, fmt.Errorf("service %s: %w", svc.Name, err)
		}
		dispatchers[svc.Adapter] = d
	}
	return NewServiceWithDispatchers(config, jobStorage, dispatchers, logger), nil
}

// NewServiceWithDispatchers wires explicit dispatchers. Tests use this to
// substitute fakes.
func NewServiceWithDispatchers(config *common.Config, jobStorage interfaces.JobStorage, dispatchers map[string]interfaces.Dispatcher, logger arbor.ILogger) *Service {
	return &Service{
		config:      config,
		jobStorage:  jobStorage,
		dispatchers: dispatchers,
		logger:      logger,
		cron:        cron.New(),
	}
}

// Start sweeps stranded jobs, then launches the sender and getter tickers
// and the janitor cron entry.
func (s *Service) Start() error {
	if s.running {
		return fmt.Errorf("orchestrator already running")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	// Jobs stranded in processing by a crash are requeued so the sender
	// picks them up again.
	if n, err := s.jobStorage.ResetStatus(ctx, models.StatusProcessing, models.StatusQueued); err != nil {
		cancel()
		return fmt.Errorf("startup sweep failed: %w", err)
	} else if n > 0 {
		s.logger.Warn().Int64("count", n).Msg("Requeued jobs stranded in processing")
	}

	s.startLoop(ctx, "sender", s.config.Scheduler.SendInterval, s.senderTick)
	s.startLoop(ctx, "getter", s.config.Scheduler.GetInterval, s.getterTick)

	if _, err := s.cron.AddFunc(s.config.Scheduler.JanitorSchedule, func() {
		defer common.Recover(s.logger, "janitor")
		s.janitorRun(ctx)
	}); err != nil {
		cancel()
		return fmt.Errorf("failed to schedule janitor: %w", err)
	}
	s.cron.Start()

	s.running = true
	s.logger.Info().
		Str("send_interval", s.config.Scheduler.SendInterval.String()).
		Str("get_interval", s.config.Scheduler.GetInterval.String()).
		Str("janitor_schedule", s.config.Scheduler.JanitorSchedule).
		Msg("Orchestrator scheduler started")
	return nil
}

// startLoop drives tick on a fixed interval until the context is cancelled.
// Each tick body runs under panic recovery; a bad tick never kills the loop.
func (s *Service) startLoop(ctx context.Context, name string, interval time.Duration, tick func(context.Context)) {
	s.wg.Add(1)
	common.SafeGo(s.logger, name, func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				func() {
					defer common.Recover(s.logger, name)
					tick(ctx)
				}()
			}
		}
	})
}

// Stop halts the drivers and waits for in-flight ticks to finish.
func (s *Service) Stop() {
	if !s.running {
		return
	}
	s.cancel()
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.running = false
	s.logger.Info().Msg("Orchestrator scheduler stopped")
}

// dispatcherFor resolves the dispatcher and service config for a job.
func (s *Service) dispatcherFor(job *models.Job) (interfaces.Dispatcher, common.ServiceConfig, bool) {
	svc, ok := s.config.Service(job.Service)
	if !ok {
		s.logger.Warn().
			Int64("job_id", job.ID).
			Str("service", job.Service).
			Msg("Job references unconfigured service")
		return nil, common.ServiceConfig{}, false
	}
	d, ok := s.dispatchers[svc.Adapter]
	if !ok {
		s.logger.Error().
			Int64("job_id", job.ID).
			Str("adapter", svc.Adapter).
			Msg("No dispatcher for adapter")
		return nil, common.ServiceConfig{}, false
	}
	return d, svc, true
}
