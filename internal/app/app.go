package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"syscall"
	"time"

	"b3collect/internal/collect"
	"b3collect/internal/config"
	"b3collect/internal/errors"
	"b3collect/internal/infrastructure"
	"b3collect/internal/journal"
)

// shutdownTimeout bounds the telemetry flush after a job ends
const shutdownTimeout = 10 * time.Second

// Options select the job an Application is built for
type Options struct {
	// Job names the run in telemetry and is the default log file stem
	Job string
	// ConfigFile overrides the config.yaml lookup
	ConfigFile string
	// LogFile picks the log file name inside the logs directory.
	// Without it the job logs to <Job>.log.
	LogFile func(cfg *config.Config) string
	// TruncateLog starts the log file empty on every run
	TruncateLog bool
}

// Application represents one collector run
type Application struct {
	Config    *config.Config
	Paths     *config.Paths
	Logger    *slog.Logger
	Telemetry *infrastructure.Telemetry
	Journal   *journal.Journal // nil when journal.path is empty

	job string
}

// New loads the configuration and initializes logging, telemetry and the journal
func New(opts Options) (*Application, error) {
	if opts.Job == "" {
		return nil, errors.NewAppValidationError("job name is required", nil)
	}

	var (
		cfg *config.Config
		err error
	)
	if opts.ConfigFile != "" {
		cfg, err = config.LoadFrom(opts.ConfigFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	paths, err := config.GetPaths(cfg.Paths)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}

	logFile := opts.Job + ".log"
	if opts.LogFile != nil {
		if name := opts.LogFile(cfg); name != "" {
			logFile = name
		}
	}
	logCfg := infrastructure.LoggingConfigFor(cfg.Logging, paths.LogsDir, logFile)
	logCfg.Truncate = logCfg.Truncate || opts.TruncateLog

	logger, err := infrastructure.InitializeLogger(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	paths.LogPathResolution(logger)

	telemetry, err := infrastructure.InitializeTelemetry(cfg.Telemetry, opts.Job, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	a := &Application{
		Config:    cfg,
		Paths:     paths,
		Logger:    logger,
		Telemetry: telemetry,
		job:       opts.Job,
	}

	if cfg.Journal.Path != "" {
		dsn := cfg.Journal.Path
		if dsn != ":memory:" && !filepath.IsAbs(dsn) {
			dsn = filepath.Join(paths.BaseDir, dsn)
		}
		j, err := journal.Open(dsn)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.Journal = j
		logger.Debug("Journal opened", slog.String("path", dsn))
	}

	return a, nil
}

// RunnerOptions returns the collector options backed by this run's
// logger, telemetry, checkpoint pattern and journal
func (a *Application) RunnerOptions() ([]collect.Option, error) {
	pattern, err := regexp.Compile(a.Config.Checkpoint.Pattern)
	if err != nil {
		return nil, errors.NewConfigError("invalid checkpoint pattern", err).
			WithContext("pattern", a.Config.Checkpoint.Pattern)
	}
	if pattern.NumSubexp() < 2 {
		return nil, errors.NewConfigError("checkpoint pattern needs a month and a year group", nil).
			WithContext("pattern", a.Config.Checkpoint.Pattern)
	}

	opts := []collect.Option{
		collect.WithLogger(a.Logger),
		collect.WithPattern(pattern),
		collect.WithTracer(a.Telemetry.Tracer),
		collect.WithMetrics(a.Telemetry.Metrics),
	}
	if a.Journal != nil {
		opts = append(opts, collect.WithJournal(a.Journal))
	}
	return opts, nil
}

// Run executes job with a run id until it returns or the process is interrupted,
// then releases the application resources
func (a *Application) Run(job func(ctx context.Context) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return a.run(ctx, job)
}

func (a *Application) run(ctx context.Context, job func(ctx context.Context) error) error {
	ctx = infrastructure.EnsureRunID(ctx)
	start := time.Now()

	a.Logger.InfoContext(ctx, "Job starting", slog.String("job", a.job))

	err := job(ctx)
	switch {
	case err == nil:
		a.Logger.InfoContext(ctx, "Job finished",
			slog.String("job", a.job),
			slog.Duration("duration", time.Since(start)))
	case ctx.Err() != nil:
		a.Logger.WarnContext(ctx, "Job interrupted",
			slog.String("job", a.job),
			slog.String("error", err.Error()),
			slog.Duration("duration", time.Since(start)))
	default:
		a.Logger.ErrorContext(ctx, "Job failed",
			slog.String("job", a.job),
			slog.String("error", err.Error()),
			slog.Duration("duration", time.Since(start)))
	}

	if cerr := a.Close(); cerr != nil {
		a.Logger.ErrorContext(ctx, "Error releasing resources", slog.String("error", cerr.Error()))
	}
	return err
}

// Close flushes telemetry and closes the journal. The log file stays open
// until CloseLogs so that shutdown problems are still recorded.
func (a *Application) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if a.Telemetry != nil {
		if err := a.Telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		a.Telemetry = nil
	}
	if a.Journal != nil {
		if err := a.Journal.Close(); err != nil {
			errs = append(errs, errors.NewStorageError("close journal", err))
		}
		a.Journal = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// CloseLogs closes the job log file
func CloseLogs() {
	_ = infrastructure.CloseLogFile()
}
