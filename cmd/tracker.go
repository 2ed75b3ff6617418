package cmd

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/drhp-archiver/internal/api"
	"github.com/JakeFAU/drhp-archiver/internal/archiver"
	"github.com/JakeFAU/drhp-archiver/internal/clock/system"
)

// runTracker serializes archive runs started by cron ticks, --run-now, and the
// status server, and remembers the outcome of the last one.
type runTracker struct {
	ctx    context.Context
	app    App
	logger *zap.Logger
	clock  archiver.Clock

	mu      sync.Mutex
	running bool
	last    *api.RunStatus
	wg      sync.WaitGroup
}

func newRunTracker(ctx context.Context, a App, logger *zap.Logger) *runTracker {
	return &runTracker{ctx: ctx, app: a, logger: logger, clock: system.New()}
}

// RunIfIdle runs synchronously unless another run is in progress.
func (t *runTracker) RunIfIdle() bool {
	if !t.acquire() {
		t.logger.Info("run already in progress; skipping")
		return false
	}
	t.execute()
	return true
}

// Trigger starts a run in the background unless another run is in progress.
func (t *runTracker) Trigger() bool {
	if !t.acquire() {
		return false
	}
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.execute()
	}()
	return true
}

// Last returns the status of the most recent finished run.
func (t *runTracker) Last() (api.RunStatus, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.last == nil {
		return api.RunStatus{}, false
	}
	return *t.last, true
}

// Wait blocks until background runs started by Trigger have returned.
func (t *runTracker) Wait() {
	t.wg.Wait()
}

func (t *runTracker) acquire() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return false
	}
	t.running = true
	return true
}

func (t *runTracker) execute() {
	started := t.clock.Now()
	status := api.RunStatus{StartedAt: started}
	defer func() {
		status.FinishedAt = t.clock.Now()
		t.mu.Lock()
		t.running = false
		t.last = &status
		t.mu.Unlock()
	}()

	summary, err := t.app.RunOnce(t.ctx)
	status.RunID = summary.RunID
	status.Candidates = summary.Candidates
	status.Skipped = summary.Skipped
	status.Archived = summary.Archived
	status.Failed = summary.Failed
	if err != nil {
		status.Error = err.Error()
		t.logger.Error("archive run failed", zap.String("run_id", summary.RunID), zap.Error(err))
	}
}
