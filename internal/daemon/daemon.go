// Package daemon assembles the coding engine's runtime: the response store,
// the job queue and its worker, the definition caches, and the batch
// coordinator, under a single-instance file lock.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"autocoder/internal/batch"
	"autocoder/internal/coder"
	"autocoder/internal/config"
	"autocoder/internal/defcache"
	"autocoder/internal/jobs"
	"autocoder/internal/logging"
	"autocoder/internal/store"
	"autocoder/internal/validity"
)

// Daemon coordinates background job processing and enforces single-instance
// execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger

	responses *store.Store
	jobStore  *jobs.Store
	worker    *jobs.Worker
	index     *validity.Index

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool
	ResponsesPath string
	JobsPath      string
	LockFilePath  string
	JobStats      jobs.Stats
}

// New constructs a daemon with all engine dependencies wired.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	responses, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open response store: %w", err)
	}
	jobStore, err := jobs.Open(cfg)
	if err != nil {
		_ = responses.Close()
		return nil, fmt.Errorf("open job store: %w", err)
	}

	index := validity.NewIndex(responses, logger)
	schemes := defcache.NewSchemeCache(
		time.Duration(cfg.Coding.SchemeCacheTTLMinutes)*time.Minute, time.Now, logger)
	testFiles := defcache.NewTestFileCache(
		time.Duration(cfg.Coding.TestFileCacheTTLMinutes)*time.Minute, time.Now)
	coordinator := batch.NewCoordinator(responses, index, schemes, testFiles, cfg, logger)
	worker := jobs.NewWorker(jobStore, &batchRunner{coordinator: coordinator}, cfg, logger)

	lockPath := filepath.Join(cfg.Paths.DataDir, "autocoderd.lock")
	return &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		responses: responses,
		jobStore:  jobStore,
		worker:    worker,
		index:     index,
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock and launches the job worker.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another autocoder daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.worker.Start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		return fmt.Errorf("start worker: %w", err)
	}
	d.cancel = cancel

	d.running.Store(true)
	d.logger.Info("autocoder daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.worker.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("autocoder daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	var firstErr error
	if err := d.jobStore.Close(); err != nil {
		firstErr = err
	}
	if err := d.responses.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Responses exposes the response store for direct reads.
func (d *Daemon) Responses() *store.Store { return d.responses }

// Jobs exposes the job store for enqueue and inspection.
func (d *Daemon) Jobs() *jobs.Store { return d.jobStore }

// InvalidateWorkspace drops the cached validity map for a workspace after its
// definition files changed.
func (d *Daemon) InvalidateWorkspace(workspaceID int64) {
	d.index.Invalidate(workspaceID)
}

// Status reports runtime state and job statistics.
func (d *Daemon) Status(ctx context.Context) (Status, error) {
	stats, err := d.jobStore.Stats(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{
		Running:       d.running.Load(),
		ResponsesPath: d.responses.Path(),
		JobsPath:      d.jobStore.Path(),
		LockFilePath:  d.lockPath,
		JobStats:      stats,
	}, nil
}

// batchRunner adapts the batch coordinator to the job worker contract.
type batchRunner struct {
	coordinator *batch.Coordinator
}

func (r *batchRunner) RunBatch(ctx context.Context, spec jobs.BatchSpec, progress func(int), cancelled func(context.Context) bool) (jobs.Result, error) {
	run, err := coder.ParseRunVersion(spec.Run)
	if err != nil {
		return jobs.Result{}, err
	}
	outcome := r.coordinator.Run(ctx, batch.Request{
		WorkspaceID: spec.WorkspaceID,
		PersonIDs:   spec.PersonIDs,
		Groups:      spec.Groups,
		Run:         run,
		Progress:    progress,
		Cancelled:   cancelled,
	})
	switch outcome.State {
	case batch.StateFailed:
		return jobs.Result{}, outcome.Err
	case batch.StateCancelled:
		return jobs.Result{
			Cancelled:      true,
			TotalResponses: outcome.TotalResponses,
			StatusCounts:   outcome.CountsByName(),
		}, nil
	default:
		return jobs.Result{
			TotalResponses: outcome.TotalResponses,
			StatusCounts:   outcome.CountsByName(),
		}, nil
	}
}
