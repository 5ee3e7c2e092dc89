// Package application wires the engines, scheduler and renderer together
// from one configuration.
package application

import (
	"fmt"
	"os"

	"backup-dr/internal/backup"
	"backup-dr/internal/config"
	"backup-dr/internal/confirmation"
	"backup-dr/internal/display"
	"backup-dr/internal/logging"
	"backup-dr/internal/schedule"
)

// Application holds every assembled component. Construct with New, release
// with Close.
type Application struct {
	Config       *config.Config
	Logger       *logging.Logger
	Store        *backup.Store
	Compressor   *backup.Compressor
	Backups      *backup.BackupEngine
	Restores     *backup.RestoreEngine
	Scheduler    *schedule.Service
	Renderer     *display.Renderer
	Confirmation *confirmation.Service
}

// New assembles an Application from the configuration. The scheduler is
// wired lazily; call StartScheduler when cron dispatch is needed.
func New(cfg *config.Config) (*Application, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	logLevel := logging.LogLevelNormal
	if cfg.Quiet {
		logLevel = logging.LogLevelQuiet
	} else if cfg.Verbose {
		logLevel = logging.LogLevelVerbose
	}
	logger, err := logging.NewLogger(logging.Config{
		Level:   logLevel,
		Output:  os.Stderr,
		LogFile: cfg.LogFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	store, err := backup.NewStore(cfg.BackupDir)
	if err != nil {
		return nil, err
	}

	compressor := backup.NewCompressor(cfg.Compression.Level, logger)
	backups := backup.NewBackupEngine(store, compressor, logger)
	backups.SetWorkerLimit(cfg.Workers)
	restores := backup.NewRestoreEngine(store, compressor, backups, logger)

	colors := display.NewColorSystem(cfg.Display.ColorEnabled)
	renderer := display.NewRenderer(os.Stdout, display.OutputFormat(cfg.Display.OutputFormat), colors)

	return &Application{
		Config:       cfg,
		Logger:       logger,
		Store:        store,
		Compressor:   compressor,
		Backups:      backups,
		Restores:     restores,
		Renderer:     renderer,
		Confirmation: confirmation.NewService(colors),
	}, nil
}

// StartScheduler brings up the schedule service over the configured
// registry, starting jobs for enabled schedules
func (app *Application) StartScheduler(runner schedule.Runner) error {
	registry, err := schedule.NewRegistry(app.Config.ScheduleFile)
	if err != nil {
		return err
	}
	if runner == nil {
		runner = schedule.NewCronRunner()
	}
	service, err := schedule.NewService(registry, runner, app.Backups, app.Logger)
	if err != nil {
		return err
	}
	app.Scheduler = service
	return nil
}

// Close stops any running scheduler jobs
func (app *Application) Close() {
	if app.Scheduler != nil {
		app.Scheduler.Stop()
	}
}
