// Package app wires configuration, storage and services into the
// listingexport command.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"listingexport/internal/config"
	"listingexport/internal/etl"
	_ "listingexport/internal/etl/sources" // register all sources via init()
	"listingexport/internal/service"
	"listingexport/internal/storage"
)

// Options are command-line overrides applied on top of the config file.
type Options struct {
	ConfigPath string
	Source     string
	Output     string
	Schedule   string // cron expression; switches the trigger to schedule
	Watch      bool   // switches the trigger to file_watch on the source
	History    string
	Verify     bool
	Timeout    time.Duration
	LogLevel   string
}

// LoadConfig reads the config file named in opts (or the built-in default)
// and applies the command-line overrides.
func LoadConfig(opts Options) (*config.Config, error) {
	if opts.Schedule != "" && opts.Watch {
		return nil, fmt.Errorf("-schedule and -watch are mutually exclusive")
	}
	cfg := config.Default()
	if opts.ConfigPath != "" {
		var err error
		if cfg, err = config.LoadFile(opts.ConfigPath); err != nil {
			return nil, err
		}
	}

	if opts.Source != "" {
		cfg.Source = opts.Source
	}
	if opts.Output != "" {
		cfg.Output = opts.Output
	}
	if opts.Schedule != "" {
		cfg.Trigger = etl.Trigger{Type: etl.TriggerSchedule, Config: opts.Schedule}
	}
	if opts.Watch {
		cfg.Trigger = etl.Trigger{Type: etl.TriggerFileWatch}
	}
	if opts.History != "" {
		cfg.History = opts.History
	}
	if opts.Verify {
		cfg.Verify = true
	}
	if opts.Timeout > 0 {
		cfg.Timeout = opts.Timeout
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}
	return cfg, cfg.Validate()
}

// NewLogger builds the text logger for cfg's log level.
func NewLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// App holds the wired export job and its service.
type App struct {
	cfg     *config.Config
	job     *etl.ExportJob
	db      *storage.DB
	exports *service.ExportService
	logger  *slog.Logger
}

// New builds the export job from cfg and opens run history when configured.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	job, err := cfg.Job()
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, job: job, logger: logger}

	var store service.RunStore
	if cfg.History != "" {
		db, err := storage.New(cfg.History)
		if err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
		a.db = db
		store = storage.NewRunStore(db)
	}

	engine := &etl.Engine{Dest: &etl.CSVWriter{}, Verify: cfg.Verify}
	a.exports = service.NewExportService(engine, store, &service.LogEmitter{Logger: logger}, logger)
	a.exports.Timeout = cfg.Timeout
	return a, nil
}

// Job returns the configured export job.
func (a *App) Job() *etl.ExportJob { return a.job }

// Exports returns the export service.
func (a *App) Exports() *service.ExportService { return a.exports }

// Run executes the job according to its trigger until it finishes or ctx ends.
func (a *App) Run(ctx context.Context) error {
	if a.job.Source == "" {
		return fmt.Errorf("no source: pass a path or URL, or set source in the config")
	}
	return a.exports.Serve(ctx, a.job)
}

// History writes the newest run logs as a table.
func (a *App) History(w io.Writer, jobName string, limit int) error {
	logs, err := a.exports.ListRunLogs(jobName, limit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tJOB\tSTATUS\tREAD\tWRITTEN\tDURATION\tERROR")
	for _, l := range logs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			l.StartedAt.Local().Format(time.DateTime),
			l.JobName,
			l.Status,
			l.RowsRead,
			l.RowsWritten,
			l.FinishedAt.Sub(l.StartedAt).Round(time.Millisecond),
			l.Error,
		)
	}
	return tw.Flush()
}

// Shutdown stops triggers, waits for in-flight runs and closes history.
func (a *App) Shutdown(ctx context.Context) {
	a.exports.Stop()
	a.exports.WaitRunning(ctx)
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("close history", "err", err)
		}
	}
}
