// Package app wires configuration, storage, handlers and schedulers into a
// runnable process. The same binary skeleton serves two modes: the
// orchestrator (upload/download plus sender, getter and janitor) and the
// client (submit/retrieve plus the payload runner).
package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/mitto/internal/artifacts"
	"github.com/ternarybob/mitto/internal/common"
	"github.com/ternarybob/mitto/internal/handlers"
	"github.com/ternarybob/mitto/internal/interfaces"
	"github.com/ternarybob/mitto/internal/services/client"
	"github.com/ternarybob/mitto/internal/services/orchestrator"
	"github.com/ternarybob/mitto/internal/storage/sqlite"
)

// Mode selects which half of the system a process runs.
type Mode string

const (
	ModeOrchestrator Mode = "orchestrator"
	ModeClient       Mode = "client"
)

// App holds all application components and dependencies
type App struct {
	Mode   Mode
	Config *common.Config
	Logger arbor.ILogger
	DB     *sqlite.SQLiteDB

	JobStorage     interfaces.JobStorage
	PayloadStorage interfaces.PayloadStorage

	ApiHandler     *handlers.ApiHandler
	JobHandler     *handlers.JobHandler
	PayloadHandler *handlers.PayloadHandler

	Orchestrator *orchestrator.Service
	Runner       *client.Runner
}

// New builds an App for the given mode: opens the metadata store, prepares
// the artifact root and constructs the mode's handlers and scheduler.
func New(mode Mode, config *common.Config, logger arbor.ILogger) (*App, error) {
	if err := artifacts.EnsureRoot(config.Storage.DataPath); err != nil {
		return nil, err
	}

	db, err := sqlite.NewSQLiteDB(logger, config.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata store: %w", err)
	}

	a := &App{
		Mode:       mode,
		Config:     config,
		Logger:     logger,
		DB:         db,
		ApiHandler: handlers.NewApiHandler(db, logger),
	}

	switch mode {
	case ModeOrchestrator:
		a.JobStorage = sqlite.NewJobStorage(db, logger)
		a.JobHandler = handlers.NewJobHandler(config, a.JobStorage, logger)
		a.Orchestrator, err = orchestrator.NewService(config, a.JobStorage, logger)
		if err != nil {
			db.Close()
			return nil, err
		}
	case ModeClient:
		a.PayloadStorage = sqlite.NewPayloadStorage(db, config.Storage.DataPath, logger)
		a.PayloadHandler = handlers.NewPayloadHandler(config, a.PayloadStorage, logger)
		a.Runner = client.NewRunner(config, a.PayloadStorage, logger)
	default:
		db.Close()
		return nil, fmt.Errorf("unknown mode %q", mode)
	}

	return a, nil
}

// StartScheduler launches the mode's background drivers.
func (a *App) StartScheduler() error {
	switch a.Mode {
	case ModeOrchestrator:
		return a.Orchestrator.Start()
	case ModeClient:
		return a.Runner.Start()
	}
	return nil
}

// Shutdown stops the schedulers and closes the metadata store.
func (a *App) Shutdown(ctx context.Context) error {
	switch a.Mode {
	case ModeOrchestrator:
		if a.Orchestrator != nil {
			a.Orchestrator.Stop()
		}
	case ModeClient:
		if a.Runner != nil {
			a.Runner.Stop()
		}
	}

	if err := a.DB.Close(); err != nil {
		return fmt.Errorf("failed to close metadata store: %w", err)
	}
	a.Logger.Info().Msg("Application shut down")
	return nil
}
