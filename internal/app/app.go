package app

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/deepscan/internal/common"
	"github.com/ternarybob/deepscan/internal/detector"
	"github.com/ternarybob/deepscan/internal/handlers"
	"github.com/ternarybob/deepscan/internal/interfaces"
	"github.com/ternarybob/deepscan/internal/jobs"
	"github.com/ternarybob/deepscan/internal/services/events"
	"github.com/ternarybob/deepscan/internal/services/health"
	"github.com/ternarybob/deepscan/internal/services/history"
	"github.com/ternarybob/deepscan/internal/storage"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager // Nil when the history database could not be opened

	// Event-driven services
	EventService   interfaces.EventService
	HistoryService *history.Service
	HealthMonitor  *health.Monitor

	// Detection
	Client     *detector.Client
	Controller *jobs.Controller

	// HTTP handlers
	JobHandler     *handlers.JobHandler
	HistoryHandler *handlers.HistoryHandler
	HealthHandler  *handlers.HealthHandler
	WSHandler      *handlers.WebSocketHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	app.EventService = events.NewService(logger)
	if err := events.SubscribeLoggerToAllEvents(app.EventService, logger); err != nil {
		return nil, fmt.Errorf("failed to subscribe event logger: %w", err)
	}

	app.initDatabase()

	if err := app.initServices(); err != nil {
		app.Close()
		return nil, err
	}

	app.initHandlers()

	logger.Debug().
		Str("service_url", app.Client.BaseURL()).
		Str("history", historyState(app.HistoryService)).
		Msg("Application initialized")

	return app, nil
}

// initDatabase opens the history store. History is optional: a locked or
// unwritable database leaves the app running without it.
func (a *App) initDatabase() {
	manager, err := storage.NewStorageManager(a.Logger, a.Config)
	if err != nil {
		a.Logger.Warn().Err(err).Str("path", a.Config.Storage.Badger.Path).Msg("Job history disabled")
		return
	}
	a.StorageManager = manager
}

func (a *App) initServices() error {
	a.Client = detector.NewClientFromConfig(a.Config, a.Logger)

	a.Controller = jobs.NewController(a.Client, a.Logger,
		jobs.WithPollInterval(a.Config.Polling.IntervalDuration()),
		jobs.WithEventService(a.EventService),
		jobs.WithPreviewFrames(a.Config.Report.PreviewFrames),
	)

	if a.StorageManager != nil {
		a.HistoryService = history.NewService(a.StorageManager.JobRecordStorage(), a.EventService, a.Logger)
		if err := a.HistoryService.Start(); err != nil {
			return fmt.Errorf("failed to start history service: %w", err)
		}
	}

	a.HealthMonitor = health.NewMonitor(a.Client, a.EventService, a.Logger,
		a.Config.Health.Schedule, a.Config.Service.RequestTimeoutDuration())

	return nil
}

func (a *App) initHandlers() {
	a.JobHandler = handlers.NewJobHandler(a.Controller, a.Client.UploadPolicy(), a.Logger)
	a.HealthHandler = handlers.NewHealthHandler(a.HealthMonitor, a.Logger)
	a.WSHandler = handlers.NewWebSocketHandler(a.EventService, a.Logger, &a.Config.WebSocket)
	if a.HistoryService != nil {
		a.HistoryHandler = handlers.NewHistoryHandler(a.HistoryService, a.Logger)
	}
}

// StartBackground starts scheduled work for long-running modes
func (a *App) StartBackground() error {
	if !a.Config.Health.Enabled {
		return nil
	}
	if err := a.HealthMonitor.Start(); err != nil {
		return fmt.Errorf("failed to start health monitor: %w", err)
	}
	return nil
}

// Close stops background work, abandons any active job and closes storage
func (a *App) Close() error {
	if a.HealthMonitor != nil {
		a.HealthMonitor.Stop()
	}

	if a.Controller != nil {
		a.Controller.Cancel()
	}

	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close storage")
			return err
		}
	}

	a.Logger.Debug().Msg("Application closed")
	return nil
}

func historyState(h *history.Service) string {
	if h == nil {
		return "disabled"
	}
	return "enabled"
}
