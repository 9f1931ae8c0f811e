package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"autocoder/internal/config"
	"autocoder/internal/logging"
	"autocoder/internal/services"
)

// BatchRunner executes one coding batch for a claimed job. The progress
// callback receives checkpoint percentages; the cancelled predicate reports
// whether the job's pause flag has been set.
type BatchRunner interface {
	RunBatch(ctx context.Context, spec BatchSpec, progress func(percent int), cancelled func(ctx context.Context) bool) (Result, error)
}

// Worker polls the job store and drives the batch runner, one job at a time.
type Worker struct {
	store  *Store
	runner BatchRunner
	cfg    *config.Config
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewWorker wires a worker over the given store and runner.
func NewWorker(store *Store, runner BatchRunner, cfg *config.Config, logger *slog.Logger) *Worker {
	return &Worker{
		store:  store,
		runner: runner,
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "jobs-worker"),
	}
}

// Start begins background processing. Active jobs left over from a previous
// process are returned to waiting before polling begins.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return errors.New("worker already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	w.wg.Add(1)
	w.mu.Unlock()

	if recovered, err := w.store.RecoverStale(runCtx, time.Now()); err != nil {
		w.logger.Warn("startup recovery failed, orphaned jobs may remain active",
			logging.Error(err),
			logging.String(logging.FieldEventType, "job_recovery_failed"))
	} else if recovered > 0 {
		w.logger.Info("recovered orphaned jobs", logging.Int64("count", recovered))
	}

	go w.run(runCtx)
	return nil
}

// Stop terminates background processing and waits for the in-flight job to
// reach a checkpoint and exit.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel := w.cancel
	w.running = false
	w.cancel = nil
	w.mu.Unlock()

	cancel()
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if w.heartbeatTimeout() > 0 {
			cutoff := time.Now().Add(-w.heartbeatTimeout())
			if reclaimed, err := w.store.RecoverStale(ctx, cutoff); err != nil {
				w.logger.Warn("stale job reclaim failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "job_reclaim_failed"),
					logging.String(logging.FieldErrorHint, "check job database access"))
			} else if reclaimed > 0 {
				w.logger.Info("reclaimed stale jobs", logging.Int64("count", reclaimed))
			}
		}

		job, err := w.store.NextWaiting(ctx)
		if err != nil {
			w.logger.Error("failed to fetch next job",
				logging.Error(err),
				logging.String(logging.FieldEventType, "job_fetch_failed"),
				logging.String(logging.FieldErrorHint, "check job database access"))
			if !w.sleep(ctx, w.errorRetryInterval()) {
				return
			}
			continue
		}
		if job == nil {
			if !w.sleep(ctx, w.pollInterval()) {
				return
			}
			continue
		}

		if err := w.processJob(ctx, job); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
		}
	}
}

func (w *Worker) processJob(ctx context.Context, job *Job) error {
	jobCtx := services.WithJobID(ctx, job.ID)
	jobCtx = services.WithWorkspaceID(jobCtx, job.WorkspaceID)
	logger := logging.WithContext(jobCtx, w.logger)

	logger.Info("job started",
		logging.Int("run", job.Spec.Run),
		logging.String(logging.FieldEventType, "job_started"))

	heartbeatCtx, stopHeartbeat := context.WithCancel(jobCtx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go w.heartbeatLoop(heartbeatCtx, &hbWG, job.ID)

	progress := func(percent int) {
		if err := w.store.Progress(jobCtx, job.ID, float64(percent)); err != nil {
			logger.Warn("progress update failed", logging.Error(err))
		}
	}
	cancelled := func(checkCtx context.Context) bool {
		if checkCtx.Err() != nil {
			return true
		}
		paused, err := w.store.IsPaused(checkCtx, job.ID)
		if err != nil {
			logger.Warn("pause check failed", logging.Error(err))
			return false
		}
		return paused
	}

	result, runErr := w.runner.RunBatch(jobCtx, job.Spec, progress, cancelled)
	stopHeartbeat()
	hbWG.Wait()

	if runErr != nil {
		logger.Error("job failed",
			logging.Error(runErr),
			logging.String(logging.FieldEventType, "job_failed"))
		if err := w.store.Fail(jobCtx, job.ID, runErr.Error()); err != nil {
			logger.Error("failed to record job failure", logging.Error(err))
		}
		if errors.Is(runErr, context.Canceled) {
			return runErr
		}
		return nil
	}

	// Shutdown interrupts the batch at a checkpoint; leave the job waiting
	// so the next start reruns it from scratch.
	if result.Cancelled && jobCtx.Err() != nil {
		if _, err := w.store.RecoverStale(context.WithoutCancel(jobCtx), time.Now()); err != nil {
			logger.Warn("failed to release interrupted job", logging.Error(err))
		}
		return jobCtx.Err()
	}

	if err := w.store.Complete(jobCtx, job.ID, result); err != nil {
		logger.Error("failed to record job result", logging.Error(err))
		return fmt.Errorf("record job result: %w", err)
	}
	logger.Info("job finished",
		logging.Bool("cancelled", result.Cancelled),
		logging.Int("total_responses", result.TotalResponses),
		logging.String(logging.FieldEventType, "job_finished"))
	return nil
}

func (w *Worker) heartbeatLoop(ctx context.Context, wg *sync.WaitGroup, jobID string) {
	defer wg.Done()
	interval := w.heartbeatInterval()
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.store.Heartbeat(ctx, jobID); err != nil && ctx.Err() == nil {
				w.logger.Warn("heartbeat update failed",
					logging.String(logging.FieldJobID, jobID),
					logging.Error(err))
			}
		}
	}
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func (w *Worker) pollInterval() time.Duration {
	return time.Duration(w.cfg.Workflow.QueuePollInterval) * time.Second
}

func (w *Worker) errorRetryInterval() time.Duration {
	return time.Duration(w.cfg.Workflow.ErrorRetryInterval) * time.Second
}

func (w *Worker) heartbeatInterval() time.Duration {
	return time.Duration(w.cfg.Workflow.HeartbeatInterval) * time.Second
}

func (w *Worker) heartbeatTimeout() time.Duration {
	return time.Duration(w.cfg.Workflow.HeartbeatTimeout) * time.Second
}
