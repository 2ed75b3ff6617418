// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/JakeFAU/drhp-archiver/internal/archiver"
	"github.com/JakeFAU/drhp-archiver/internal/clock/system"
	"github.com/JakeFAU/drhp-archiver/internal/config"
	"github.com/JakeFAU/drhp-archiver/internal/credentials"
	collyfetcher "github.com/JakeFAU/drhp-archiver/internal/fetcher/colly"
	httpfetcher "github.com/JakeFAU/drhp-archiver/internal/fetcher/http"
	"github.com/JakeFAU/drhp-archiver/internal/hash/sha256"
	"github.com/JakeFAU/drhp-archiver/internal/id/uuid"
	"github.com/JakeFAU/drhp-archiver/internal/metrics"
	"github.com/JakeFAU/drhp-archiver/internal/policy/ratelimit"
	pubsubpublisher "github.com/JakeFAU/drhp-archiver/internal/publisher/pubsub"
	filestate "github.com/JakeFAU/drhp-archiver/internal/state/file"
	pgstate "github.com/JakeFAU/drhp-archiver/internal/state/postgres"
	redisstate "github.com/JakeFAU/drhp-archiver/internal/state/redis"
	"github.com/JakeFAU/drhp-archiver/internal/storage"
	"github.com/JakeFAU/drhp-archiver/internal/storage/drive"
	"github.com/JakeFAU/drhp-archiver/internal/storage/gcs"
	"github.com/JakeFAU/drhp-archiver/internal/storage/local"
	"github.com/JakeFAU/drhp-archiver/internal/storage/memory"
	"github.com/JakeFAU/drhp-archiver/internal/storage/s3"
)

const (
	gcsScope    = "https://www.googleapis.com/auth/devstorage.read_write"
	pubsubScope = "https://www.googleapis.com/auth/pubsub"
)

// App holds all the shared, long-lived services for one process.
// It is initialized once at startup and closed by the command that created it.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	state    archiver.StateStore
	runner   *archiver.Runner
	recorder *metrics.Recorder
	closers  []func() error
}

// Option overrides a service the App would otherwise build from config.
type Option func(*overrides)

type overrides struct {
	state    archiver.StateStore
	uploader archiver.Uploader
	notifier archiver.Notifier
	progress io.Writer
}

// WithStateStore replaces the configured state backend.
func WithStateStore(s archiver.StateStore) Option {
	return func(o *overrides) { o.state = s }
}

// WithUploader replaces the configured storage backend.
func WithUploader(u archiver.Uploader) Option {
	return func(o *overrides) { o.uploader = u }
}

// WithNotifier replaces the configured Pub/Sub notifier.
func WithNotifier(n archiver.Notifier) Option {
	return func(o *overrides) { o.notifier = n }
}

// WithProgressWriter sends download progress bars to w when archive.show_progress is set.
func WithProgressWriter(w io.Writer) Option {
	return func(o *overrides) { o.progress = w }
}

// New creates the App from configuration. It fails fast when any backend cannot be
// initialized; credential problems surface as *archiver.ConfigError.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := overrides{progress: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{cfg: cfg, logger: logger, recorder: metrics.New()}
	logger.Info("initializing application services",
		zap.String("state_backend", cfg.State.Backend),
		zap.String("storage_backend", cfg.Storage.Backend),
	)

	if o.state != nil {
		a.state = o.state
	} else {
		store, closeState, err := OpenState(ctx, cfg.State)
		if err != nil {
			return nil, fmt.Errorf("init state: %w", err)
		}
		a.state = store
		a.closers = append(a.closers, closeState)
	}

	var err error
	uploader := o.uploader
	if uploader == nil {
		uploader, err = a.buildUploader(ctx)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init storage: %w", err)
		}
	}

	notifier := o.notifier
	if notifier == nil && cfg.Notify.Enabled() {
		notifier, err = a.buildNotifier(ctx)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init notifier: %w", err)
		}
	}

	var progress io.Writer
	if cfg.Archive.ShowProgress {
		progress = o.progress
	}
	downloader := httpfetcher.New(httpfetcher.Config{
		UserAgent: cfg.HTTP.UserAgent,
		Headers:   cfg.HTTP.Headers,
		Timeout:   cfg.Timeout(),
		Progress:  progress,
	}, logger)
	arch, err := archiver.NewArchiver(cfg.Archive.OutputDir, downloader, uploader, logger, archiver.WithHasher(sha256.New()))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init archiver: %w", err)
	}

	listing := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.HTTP.UserAgent,
		Headers:   cfg.HTTP.Headers,
		Timeout:   cfg.Timeout(),
		Extension: cfg.Listing.Extension,
		Keywords:  cfg.Listing.Keywords,
	}, logger)

	deps := archiver.Dependencies{
		State:    a.state,
		Listing:  listing,
		Archiver: arch,
		Pacer: ratelimit.New(ratelimit.Config{
			Interval: cfg.Delay(),
			OnDelay:  a.recorder.ObservePacingDelay,
		}),
		Notifier: notifier,
		Observer: a.recorder,
		Clock:    system.New(),
		IDs:      uuid.NewUUIDGenerator(),
	}
	a.runner, err = archiver.NewRunner(archiver.RunnerConfig{ListingURL: cfg.Listing.URL}, deps, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init runner: %w", err)
	}

	logger.Info("application services initialized")
	return a, nil
}

// State exposes the configured state store.
func (a *App) State() archiver.StateStore {
	return a.state
}

// Metrics exposes the run metrics recorder.
func (a *App) Metrics() *metrics.Recorder {
	return a.recorder
}

// RunOnce executes one archive run and pushes metrics when a Pushgateway is configured.
// A failed push is logged and does not change the run's outcome.
func (a *App) RunOnce(ctx context.Context) (archiver.Summary, error) {
	summary, err := a.runner.Run(ctx)
	if a.cfg.Metrics.PushgatewayURL != "" {
		if pushErr := a.recorder.Push(context.WithoutCancel(ctx), a.cfg.Metrics.PushgatewayURL, a.cfg.Metrics.Job); pushErr != nil {
			a.logger.Warn("metrics push failed", zap.Error(pushErr))
		}
	}
	if err != nil {
		return summary, fmt.Errorf("archive run: %w", err)
	}
	return summary, nil
}

// Close releases every backend the App opened, in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("error closing service", zap.Error(err))
		}
	}
	a.closers = nil
}

// OpenState builds the configured state backend. The returned close function is never nil.
func OpenState(ctx context.Context, cfg config.StateConfig) (archiver.StateStore, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Backend {
	case "file":
		store, err := filestate.New(cfg.File)
		if err != nil {
			return nil, noop, err
		}
		return store, noop, nil
	case "postgres":
		store, err := pgstate.New(ctx, pgstate.Config{DSN: cfg.Postgres.DSN, Table: cfg.Postgres.Table})
		if err != nil {
			return nil, noop, err
		}
		return store, func() error { store.Close(); return nil }, nil
	case "redis":
		store, err := redisstate.New(redisstate.Config{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Key:      cfg.Redis.Key,
		})
		if err != nil {
			return nil, noop, err
		}
		return store, store.Close, nil
	default:
		return nil, noop, &archiver.ConfigError{Field: "state.backend", Err: fmt.Errorf("unknown backend %q", cfg.Backend)}
	}
}

func (a *App) buildUploader(ctx context.Context) (archiver.Uploader, error) {
	cfg := a.cfg.Storage
	switch cfg.Backend {
	case storage.BackendDrive:
		account, err := credentials.Load(ctx, cfg.CredentialsFile, drive.Scope)
		if err != nil {
			return nil, err
		}
		return drive.New(ctx, drive.Config{FolderID: cfg.FolderID}, account.ClientOption())
	case storage.BackendGCS:
		opts, err := a.googleOptions(ctx, gcsScope)
		if err != nil {
			return nil, err
		}
		client, err := gcs.NewClient(ctx, opts...)
		if err != nil {
			return nil, err
		}
		store, err := gcs.New(client, gcs.Config{Bucket: cfg.Bucket, Prefix: cfg.Prefix})
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	case storage.BackendS3:
		return s3.New(ctx, s3.Config{
			Bucket:          cfg.Bucket,
			Prefix:          cfg.Prefix,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			PathStyle:       cfg.S3.PathStyle,
			CredentialsFile: cfg.S3.CredentialsFile,
		})
	case storage.BackendLocal:
		return local.New(local.Config{BaseDir: cfg.LocalDir})
	case storage.BackendMemory:
		return memory.NewBlobStore(), nil
	default:
		return nil, &archiver.ConfigError{Field: "storage.backend", Err: fmt.Errorf("unknown backend %q", cfg.Backend)}
	}
}

func (a *App) buildNotifier(ctx context.Context) (archiver.Notifier, error) {
	if a.cfg.Notify.ProjectID == "" {
		return nil, &archiver.ConfigError{Field: "notify.project_id", Err: errors.New("required when notify.topic is set")}
	}
	opts, err := a.googleOptions(ctx, pubsubScope)
	if err != nil {
		return nil, err
	}
	pub, err := pubsubpublisher.New(ctx, a.cfg.Notify.ProjectID, a.cfg.Notify.Topic, opts...)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, pub.Close)
	return pub, nil
}

// googleOptions authenticates with the service-account key when the storage backend
// is a Google one and a key is configured; otherwise application default credentials apply.
func (a *App) googleOptions(ctx context.Context, scope string) ([]option.ClientOption, error) {
	cfg := a.cfg.Storage
	if cfg.CredentialsFile == "" || (cfg.Backend != storage.BackendDrive && cfg.Backend != storage.BackendGCS) {
		return nil, nil
	}
	account, err := credentials.Load(ctx, cfg.CredentialsFile, scope)
	if err != nil {
		return nil, err
	}
	return []option.ClientOption{account.ClientOption()}, nil
}
