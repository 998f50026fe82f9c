package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"listingexport/internal/etl"
	"listingexport/internal/etl/sources"
)

// ─────────────────────────────────────────────────────────────
// Export Service: runs export jobs and their triggers
// ─────────────────────────────────────────────────────────────

// DefaultTimeout bounds a single run, source download included.
const DefaultTimeout = 5 * time.Minute

// debounce is how long a watched file must stay quiet before a re-run.
const debounce = 500 * time.Millisecond

var (
	// ErrJobRunning is returned when a run of the same job is still in flight.
	ErrJobRunning = errors.New("job is already running")
	// ErrNoHistory is returned by history queries when no run store is configured.
	ErrNoHistory = errors.New("run history is not enabled")
)

// RunStore persists run logs. *storage.RunStore implements it.
type RunStore interface {
	CreateRunLog(log *etl.RunLog) error
	ListRunLogs(jobName string, limit int) ([]etl.RunLog, error)
}

// ExportService runs export jobs, records their history, and drives the
// schedule and file_watch triggers.
type ExportService struct {
	engine      *etl.Engine
	store       RunStore
	emitter     EventEmitter
	logger      *slog.Logger
	runningJobs runningJobsGuard

	// Timeout bounds each run. Zero means DefaultTimeout.
	Timeout time.Duration

	// watcher / cron lifecycle
	mu          sync.Mutex
	watchCancel context.CancelFunc
	watcher     *fsnotify.Watcher
	cronSched   *cron.Cron
}

// NewExportService creates an ExportService. store and emitter may be nil.
func NewExportService(engine *etl.Engine, store RunStore, emitter EventEmitter, logger *slog.Logger) *ExportService {
	if engine == nil {
		engine = &etl.Engine{}
	}
	if emitter == nil {
		emitter = noopEmitter{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ExportService{
		engine:  engine,
		store:   store,
		emitter: emitter,
		logger:  logger,
	}
}

// ── Run ────────────────────────────────────────────────────

// RunJob executes one export synchronously and records it in the run
// history when a store is configured.
func (s *ExportService) RunJob(ctx context.Context, job *etl.ExportJob) (*etl.ExportResult, error) {
	key := jobKey(job)
	if !s.runningJobs.TryLock(key) {
		s.emitter.Emit(ctx, EventExportSkipped, key)
		return nil, fmt.Errorf("%w: %s", ErrJobRunning, key)
	}
	defer s.runningJobs.Unlock(key)

	runCtx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()

	s.logger.Info("export started", "job", job.Name, "source", job.Source, "output", job.Output)
	result, runErr := s.engine.Run(runCtx, job)

	if s.store != nil {
		if err := s.store.CreateRunLog(etl.NewRunLog(job, result)); err != nil {
			s.logger.Error("record run log", "job", job.Name, "err", err)
		}
	}

	if runErr != nil {
		s.logger.Error("export failed", "job", job.Name, "run", result.RunID, "err", runErr)
	} else {
		s.logger.Info("export finished",
			"job", job.Name,
			"run", result.RunID,
			"rows_read", result.RowsRead,
			"rows_written", result.RowsWritten,
			"duration", result.Duration,
		)
	}
	s.emitter.Emit(ctx, EventExportCompleted, result)

	return result, runErr
}

// Preview extracts and transforms a job without writing its output.
func (s *ExportService) Preview(ctx context.Context, job *etl.ExportJob, maxRows int) (*etl.Table, error) {
	previewCtx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()
	return s.engine.Preview(previewCtx, job, maxRows)
}

// ListSources returns the available source descriptors.
func (s *ExportService) ListSources() []etl.SourceSpec {
	return etl.ListSources()
}

// ListRunLogs returns the newest run logs for jobName, or all jobs when
// jobName is empty.
func (s *ExportService) ListRunLogs(jobName string, limit int) ([]etl.RunLog, error) {
	if s.store == nil {
		return nil, ErrNoHistory
	}
	return s.store.ListRunLogs(jobName, limit)
}

func (s *ExportService) timeout() time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return DefaultTimeout
}

func jobKey(job *etl.ExportJob) string {
	if job.ID != "" {
		return job.ID
	}
	return job.Name
}

// ── Serve (manual / schedule / file_watch) ────────────────

// Serve runs job according to its trigger. A manual job runs once and
// Serve returns its error. Scheduled and watched jobs run once up front,
// then on every cron tick or file change until ctx is cancelled or Stop
// is called. Failures of individual triggered runs are logged, not returned.
// A service drives one Serve at a time; starting another replaces the first's
// triggers.
func (s *ExportService) Serve(ctx context.Context, job *etl.ExportJob) error {
	switch job.Trigger.Type {
	case "", etl.TriggerManual:
		_, err := s.RunJob(ctx, job)
		return err
	case etl.TriggerSchedule, etl.TriggerFileWatch:
	default:
		return fmt.Errorf("unknown trigger type: %q", job.Trigger.Type)
	}

	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.stopWatchersLocked()
	s.watchCancel = cancel
	var err error
	if job.Trigger.Type == etl.TriggerSchedule {
		err = s.startCronLocked(serveCtx, job)
	} else {
		err = s.startWatcherLocked(serveCtx, job)
	}
	if err != nil {
		s.stopWatchersLocked()
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}
	defer s.Stop()

	if _, err := s.RunJob(serveCtx, job); err != nil {
		s.logger.Warn("initial run failed", "job", job.Name, "err", err)
	}

	<-serveCtx.Done()
	return nil
}

// startCronLocked must be called with s.mu held.
func (s *ExportService) startCronLocked(ctx context.Context, job *etl.ExportJob) error {
	if job.Trigger.Config == "" {
		return fmt.Errorf("schedule trigger: cron expression is required")
	}
	c := cron.New()
	_, err := c.AddFunc(job.Trigger.Config, func() {
		s.logger.Info("etl cron: running job", "job", job.Name)
		if _, err := s.RunJob(ctx, job); err != nil {
			s.logger.Warn("etl cron: job failed", "job", job.Name, "err", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule trigger: invalid expression %q: %w", job.Trigger.Config, err)
	}
	c.Start()
	s.cronSched = c
	s.logger.Info("etl cron: scheduled", "job", job.Name, "spec", job.Trigger.Config)
	return nil
}

// startWatcherLocked must be called with s.mu held.
func (s *ExportService) startWatcherLocked(ctx context.Context, job *etl.ExportJob) error {
	path := job.Trigger.Config
	if path == "" {
		src, err := etl.ResolveSource(job.Source)
		if err != nil || src.Spec().Type != "file" {
			return fmt.Errorf("file_watch trigger: source %q is not a local file", job.Source)
		}
		if path, err = sources.LocalPath(job.Source); err != nil {
			return fmt.Errorf("file_watch trigger: %w", err)
		}
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("file_watch trigger: bad path %q: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// Watch the parent directory; replaced files drop a direct watch.
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch dir %q: %w", filepath.Dir(absPath), err)
	}
	s.watcher = watcher

	go func() {
		var timer *time.Timer
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if p, _ := filepath.Abs(event.Name); p != absPath {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(debounce, func() {
					if ctx.Err() != nil {
						return
					}
					s.logger.Info("etl watcher: file changed", "path", absPath, "job", job.Name)
					if _, err := s.RunJob(ctx, job); err != nil {
						s.logger.Warn("etl watcher: run failed", "job", job.Name, "err", err)
					}
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("etl watcher: error", "err", err)
			}
		}
	}()

	s.logger.Info("etl watcher: watching", "path", absPath, "job", job.Name)
	return nil
}

// WaitRunning blocks until all running jobs finish or ctx is cancelled.
// Used for graceful shutdown.
func (s *ExportService) WaitRunning(ctx context.Context) {
	s.runningJobs.WaitAll(ctx)
}

// Stop tears down the watcher and scheduler and makes Serve return.
// It is safe to call more than once.
func (s *ExportService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopWatchersLocked()
}

func (s *ExportService) stopWatchersLocked() {
	if s.watchCancel != nil {
		s.watchCancel()
		s.watchCancel = nil
	}
	if s.watcher != nil {
		s.watcher.Close()
		s.watcher = nil
	}
	if s.cronSched != nil {
		s.cronSched.Stop()
		s.cronSched = nil
	}
}
