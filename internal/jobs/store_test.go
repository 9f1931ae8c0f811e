package jobs_test

import (
	"context"
	"testing"
	"time"

	"autocoder/internal/jobs"
	"autocoder/internal/testsupport"
)

func openStore(t *testing.T) *jobs.Store {
	t.Helper()
	store, err := jobs.Open(testsupport.NewConfig(t))
	if err != nil {
		t.Fatalf("open job store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func spec(workspaceID int64) jobs.BatchSpec {
	return jobs.BatchSpec{WorkspaceID: workspaceID, PersonIDs: []string{"p1"}, Run: 1}
}

func TestEnqueueAndClaim(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	job, err := store.Enqueue(ctx, spec(1), 0)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if job.State != jobs.StateWaiting {
		t.Fatalf("state = %s, want waiting", job.State)
	}
	if job.ID == "" {
		t.Fatal("job id missing")
	}
	if job.Spec.WorkspaceID != 1 || job.Spec.Run != 1 {
		t.Fatalf("spec round trip broken: %+v", job.Spec)
	}

	claimed, err := store.NextWaiting(ctx)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed == nil || claimed.ID != job.ID {
		t.Fatalf("claimed = %+v, want job %s", claimed, job.ID)
	}
	if claimed.State != jobs.StateActive {
		t.Errorf("claimed state = %s, want active", claimed.State)
	}
	if claimed.LastHeartbeat == nil {
		t.Error("claim should stamp a heartbeat")
	}

	again, err := store.NextWaiting(ctx)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if again != nil {
		t.Errorf("second claim should find nothing, got %s", again.ID)
	}
}

func TestClaimOrderIsOldestFirst(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	first, err := store.Enqueue(ctx, spec(1), 0)
	if err != nil {
		t.Fatalf("enqueue first: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	if _, err := store.Enqueue(ctx, spec(2), 0); err != nil {
		t.Fatalf("enqueue second: %v", err)
	}

	claimed, err := store.NextWaiting(ctx)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed == nil || claimed.ID != first.ID {
		t.Errorf("claimed %+v, want the oldest job %s", claimed, first.ID)
	}
}

func TestDelayedJobsBecomeRunnableAfterDelay(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	job, err := store.Enqueue(ctx, spec(1), time.Hour)
	if err != nil {
		t.Fatalf("enqueue delayed: %v", err)
	}
	if job.State != jobs.StateDelayed {
		t.Fatalf("state = %s, want delayed", job.State)
	}

	claimed, err := store.NextWaiting(ctx)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed != nil {
		t.Errorf("delayed job claimed early: %s", claimed.ID)
	}
}

func TestPauseResumeLifecycle(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	job, err := store.Enqueue(ctx, spec(1), 0)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if err := store.Pause(ctx, job.ID); err != nil {
		t.Fatalf("pause: %v", err)
	}
	paused, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if paused.State != jobs.StatePaused || !paused.IsPaused {
		t.Fatalf("after pause: state=%s paused=%v", paused.State, paused.IsPaused)
	}

	if claimed, err := store.NextWaiting(ctx); err != nil || claimed != nil {
		t.Fatalf("paused job must not be claimable: %+v %v", claimed, err)
	}

	if err := store.Resume(ctx, job.ID); err != nil {
		t.Fatalf("resume: %v", err)
	}
	resumed, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if resumed.State != jobs.StateWaiting || resumed.IsPaused {
		t.Fatalf("after resume: state=%s paused=%v", resumed.State, resumed.IsPaused)
	}
}

func TestPauseFlagVisibleWhileActive(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	job, err := store.Enqueue(ctx, spec(1), 0)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := store.NextWaiting(ctx); err != nil {
		t.Fatalf("claim: %v", err)
	}

	if err := store.Cancel(ctx, job.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	active, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if active.State != jobs.StateActive {
		t.Errorf("active job state changed by cancel: %s", active.State)
	}
	flag, err := store.IsPaused(ctx, job.ID)
	if err != nil {
		t.Fatalf("IsPaused: %v", err)
	}
	if !flag {
		t.Error("pause flag should be set for the running batch to observe")
	}
}

func TestResumeKeepsProgressOfActiveJob(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	job, err := store.Enqueue(ctx, spec(1), 0)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := store.NextWaiting(ctx); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := store.Progress(ctx, job.ID, 60); err != nil {
		t.Fatalf("progress: %v", err)
	}
	if err := store.Pause(ctx, job.ID); err != nil {
		t.Fatalf("pause: %v", err)
	}

	// The flag was never observed at a checkpoint; clearing it must not
	// touch the live progress.
	if err := store.Resume(ctx, job.ID); err != nil {
		t.Fatalf("resume: %v", err)
	}

	active, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if active.State != jobs.StateActive {
		t.Fatalf("state = %s, want active", active.State)
	}
	if active.Progress != 60 {
		t.Fatalf("progress = %.0f, want 60", active.Progress)
	}
	flag, err := store.IsPaused(ctx, job.ID)
	if err != nil {
		t.Fatalf("IsPaused: %v", err)
	}
	if flag {
		t.Error("pause flag should be cleared")
	}
}

func TestCompleteRecordsResult(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	job, err := store.Enqueue(ctx, spec(1), 0)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := store.NextWaiting(ctx); err != nil {
		t.Fatalf("claim: %v", err)
	}

	result := jobs.Result{TotalResponses: 7, StatusCounts: map[string]int{"CODING_COMPLETE": 7}}
	if err := store.Complete(ctx, job.ID, result); err != nil {
		t.Fatalf("complete: %v", err)
	}
	done, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if done.State != jobs.StateCompleted {
		t.Errorf("state = %s, want completed", done.State)
	}
	if done.Progress != 100 {
		t.Errorf("progress = %v, want 100", done.Progress)
	}
	if done.ResultJSON == "" {
		t.Error("result payload missing")
	}
}

func TestCancelledResultLeavesJobPaused(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	job, err := store.Enqueue(ctx, spec(1), 0)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := store.NextWaiting(ctx); err != nil {
		t.Fatalf("claim: %v", err)
	}

	result := jobs.Result{Cancelled: true, TotalResponses: 3, StatusCounts: map[string]int{"CODING_COMPLETE": 3}}
	if err := store.Complete(ctx, job.ID, result); err != nil {
		t.Fatalf("complete: %v", err)
	}
	stopped, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stopped.State != jobs.StatePaused {
		t.Errorf("state = %s, want paused after cancelled result", stopped.State)
	}
	if stopped.ResultJSON == "" {
		t.Error("partial statistics should still be recorded")
	}
}

func TestFailRecordsMessage(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	job, err := store.Enqueue(ctx, spec(1), 0)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := store.Fail(ctx, job.ID, "store unavailable"); err != nil {
		t.Fatalf("fail: %v", err)
	}
	failed, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if failed.State != jobs.StateFailed {
		t.Errorf("state = %s, want failed", failed.State)
	}
	if failed.ErrorMessage != "store unavailable" {
		t.Errorf("error message = %q", failed.ErrorMessage)
	}
}

func TestRecoverStaleReturnsActiveJobsToWaiting(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	job, err := store.Enqueue(ctx, spec(1), 0)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := store.NextWaiting(ctx); err != nil {
		t.Fatalf("claim: %v", err)
	}

	recovered, err := store.RecoverStale(ctx, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if recovered != 1 {
		t.Fatalf("recovered = %d, want 1", recovered)
	}
	back, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if back.State != jobs.StateWaiting {
		t.Errorf("state = %s, want waiting", back.State)
	}
}

func TestStatsGroupsByState(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if _, err := store.Enqueue(ctx, spec(1), 0); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	job, err := store.Enqueue(ctx, spec(2), 0)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := store.Fail(ctx, job.ID, "boom"); err != nil {
		t.Fatalf("fail: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats[jobs.StateWaiting] != 1 || stats[jobs.StateFailed] != 1 {
		t.Errorf("stats = %v", stats)
	}
	if stats.Total() != 2 {
		t.Errorf("total = %d, want 2", stats.Total())
	}
}
