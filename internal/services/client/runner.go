// Package client runs the client-side scheduler: the runner executes
// prepared payloads by invoking their run script and records the outcome.
package client

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/mitto/internal/common"
	"github.com/ternarybob/mitto/internal/interfaces"
	"github.com/ternarybob/mitto/internal/models"
)

// Runner drives payload execution on a fixed interval.
type Runner struct {
	config         *common.Config
	payloadStorage interfaces.PayloadStorage
	logger         arbor.ILogger
	cancel         context.CancelFunc
	wg             sync.WaitGroup
	running        bool
}

// NewRunner creates the payload runner.
func NewRunner(config *common.Config, payloadStorage interfaces.PayloadStorage, logger arbor.ILogger) *Runner {
	return &Runner{
		config:         config,
		payloadStorage: payloadStorage,
		logger:         logger,
	}
}

// Start launches the runner loop.
func (r *Runner) Start() error {
	if r.running {
		return fmt.Errorf("runner already running")
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	r.wg.Add(1)
	common.SafeGo(r.logger, "runner", func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.config.Scheduler.RunInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				func() {
					defer common.Recover(r.logger, "runner tick")
					r.runnerTick(ctx)
				}()
			}
		}
	})

	r.running = true
	r.logger.Info().
		Str("run_interval", r.config.Scheduler.RunInterval.String()).
		Msg("Payload runner started")
	return nil
}

// Stop halts the loop and waits for in-flight executions.
func (r *Runner) Stop() {
	if !r.running {
		return
	}
	r.cancel()
	r.wg.Wait()
	r.running = false
	r.logger.Info().Msg("Payload runner stopped")
}

// runnerTick executes every prepared payload concurrently and waits for all
// of them before returning.
func (r *Runner) runnerTick(ctx context.Context) {
	payloads, err := r.payloadStorage.ListByStatus(ctx, models.StatusPrepared)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to list prepared payloads")
		return
	}
	if len(payloads) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, payload := range payloads {
		g.Go(func() error {
			r.executePayload(gctx, payload)
			return nil
		})
	}
	g.Wait()
}

// executePayload runs bash run.sh in the payload directory. Exit 0 completes
// the payload; a missing script, launch failure, or non-zero exit fails it.
func (r *Runner) executePayload(ctx context.Context, payload *models.Payload) {
	script := payload.RunScript()
	if _, err := os.Stat(script); err != nil {
		r.logger.Warn().
			Int64("payload_id", payload.ID).
			Str("script", script).
			Msg("Payload has no run script, marking failed")
		r.finish(ctx, payload, models.StatusFailed)
		return
	}

	cmd := exec.CommandContext(ctx, "bash", script)
	cmd.Dir = payload.Loc

	if err := cmd.Run(); err != nil {
		r.logger.Warn().Err(err).
			Int64("payload_id", payload.ID).
			Msg("Payload execution failed")
		r.finish(ctx, payload, models.StatusFailed)
		return
	}

	r.logger.Info().Int64("payload_id", payload.ID).Msg("Payload executed")
	r.finish(ctx, payload, models.StatusCompleted)
}

func (r *Runner) finish(ctx context.Context, payload *models.Payload, status models.Status) {
	payload.Status = status
	if err := r.payloadStorage.Update(ctx, payload); err != nil {
		r.logger.Error().Err(err).Int64("payload_id", payload.ID).Msg("Failed to update payload status")
	}
}
