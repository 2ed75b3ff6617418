package archiver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// RunnerConfig controls a Runner.
type RunnerConfig struct {
	ListingURL string
}

// Dependencies bundles the collaborators a Runner needs. State, Listing, and Archiver are
// required; the rest are optional.
type Dependencies struct {
	State    StateStore
	Listing  ListingFetcher
	Archiver *Archiver
	Pacer    Pacer
	Notifier Notifier
	Observer Observer
	Clock    Clock
	IDs      IDGenerator
}

// Runner executes one load → discover → archive → save pass.
type Runner struct {
	cfg    RunnerConfig
	deps   Dependencies
	logger *zap.Logger
}

// NewRunner validates the dependencies and builds a Runner.
func NewRunner(cfg RunnerConfig, deps Dependencies, logger *zap.Logger) (*Runner, error) {
	if cfg.ListingURL == "" {
		return nil, &ConfigError{Field: "listing.url", Err: errors.New("must be set")}
	}
	if deps.State == nil || deps.Listing == nil || deps.Archiver == nil {
		return nil, errors.New("state store, listing fetcher, and archiver are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{cfg: cfg, deps: deps, logger: logger}, nil
}

// Run performs a single pass. Loading state, discovering candidates, and saving state are
// fatal; individual archive failures are logged and counted. When ctx is canceled mid-run
// the URLs archived so far are still saved before the cancellation error is returned.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	summary := Summary{RunID: r.newRunID()}
	logger := r.logger.With(zap.String("run_id", summary.RunID))

	processed, err := r.deps.State.Load(ctx)
	if err != nil {
		return summary, fmt.Errorf("load state: %w", err)
	}
	logger.Info("loaded state", zap.Int("processed", processed.Len()))

	candidates, err := r.deps.Listing.FetchCandidates(ctx, r.cfg.ListingURL)
	if err != nil {
		return summary, fmt.Errorf("discover candidates: %w", err)
	}
	summary.Candidates = len(candidates)
	r.observeCandidates(len(candidates))
	logger.Info("discovered candidates", zap.Int("count", len(candidates)))

	runErr := r.archiveAll(ctx, logger, candidates, processed, &summary)

	saveCtx := context.WithoutCancel(ctx)
	if err := r.deps.State.Save(saveCtx, processed); err != nil {
		return summary, fmt.Errorf("save state: %w", err)
	}
	if runErr != nil {
		return summary, runErr
	}
	if r.deps.Observer != nil {
		r.deps.Observer.ObserveRunComplete(r.now())
	}
	logger.Info("run complete",
		zap.Int("new", summary.Archived),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

func (r *Runner) archiveAll(
	ctx context.Context,
	logger *zap.Logger,
	candidates []Candidate,
	processed ProcessedSet,
	summary *Summary,
) error {
	for _, c := range candidates {
		if processed.Has(c.URL) {
			summary.Skipped++
			r.observeSkipped()
			logger.Debug("already archived", zap.String("url", c.URL))
			continue
		}
		if err := r.pace(ctx, c.URL); err != nil {
			return err
		}

		res := r.deps.Archiver.Archive(ctx, c)
		if !res.OK() {
			summary.Failed++
			r.observeFailed(res.Stage)
			logger.Error("archive failed",
				zap.String("url", c.URL),
				zap.String("stage", string(res.Stage)),
				zap.Error(res.Err),
			)
			if ctx.Err() != nil {
				return fmt.Errorf("run interrupted: %w", ctx.Err())
			}
			continue
		}

		processed.Add(c.URL)
		summary.Archived++
		r.observeArchived()
		r.notify(ctx, logger, summary.RunID, res.Record)
	}
	return nil
}

func (r *Runner) pace(ctx context.Context, url string) error {
	if r.deps.Pacer == nil {
		return nil
	}
	if err := r.deps.Pacer.Wait(ctx, url); err != nil {
		return fmt.Errorf("run interrupted: %w", err)
	}
	return nil
}

func (r *Runner) notify(ctx context.Context, logger *zap.Logger, runID string, rec Record) {
	if r.deps.Notifier == nil {
		return
	}
	event := ArchivedEvent{
		RunID:      runID,
		URL:        rec.URL,
		RemoteName: rec.RemoteName,
		RemoteURI:  rec.RemoteURI,
		SHA256:     rec.SHA256,
		ArchivedAt: r.now(),
	}
	if err := r.deps.Notifier.Notify(ctx, event); err != nil {
		logger.Warn("notify failed", zap.String("url", rec.URL), zap.Error(err))
	}
}

func (r *Runner) newRunID() string {
	if r.deps.IDs == nil {
		return ""
	}
	id, err := r.deps.IDs.NewID()
	if err != nil {
		r.logger.Warn("run id generation failed", zap.Error(err))
		return ""
	}
	return id
}

func (r *Runner) now() time.Time {
	if r.deps.Clock == nil {
		return time.Now().UTC()
	}
	return r.deps.Clock.Now()
}

func (r *Runner) observeCandidates(n int) {
	if r.deps.Observer != nil {
		r.deps.Observer.ObserveCandidates(n)
	}
}

func (r *Runner) observeSkipped() {
	if r.deps.Observer != nil {
		r.deps.Observer.ObserveSkipped()
	}
}

func (r *Runner) observeArchived() {
	if r.deps.Observer != nil {
		r.deps.Observer.ObserveArchived()
	}
}

func (r *Runner) observeFailed(stage Stage) {
	if r.deps.Observer != nil {
		r.deps.Observer.ObserveFailed(stage)
	}
}
