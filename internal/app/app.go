// Package app wires the long-lived services of a hotterms run and executes it.
package app

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	gcstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/hotterms/internal/account"
	"github.com/JakeFAU/hotterms/internal/clock/system"
	"github.com/JakeFAU/hotterms/internal/config"
	"github.com/JakeFAU/hotterms/internal/fallback"
	"github.com/JakeFAU/hotterms/internal/id/uuid"
	"github.com/JakeFAU/hotterms/internal/metrics"
	pspub "github.com/JakeFAU/hotterms/internal/publisher/pubsub"
	"github.com/JakeFAU/hotterms/internal/router"
	"github.com/JakeFAU/hotterms/internal/source"
	"github.com/JakeFAU/hotterms/internal/storage"
	"github.com/JakeFAU/hotterms/internal/storage/gcs"
	"github.com/JakeFAU/hotterms/internal/storage/local"
	"github.com/JakeFAU/hotterms/internal/storage/memory"
	"github.com/JakeFAU/hotterms/internal/termfile"
)

// App holds the services shared by a run: configuration, the destination
// store and the optional summary publisher.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	store     storage.BlobStore
	publisher Publisher
	clock     Clock
	ids       *uuid.Generator
	closers   []func() error
}

// Option customizes an App.
type Option func(*App)

// WithStore replaces the configured storage backend.
func WithStore(store storage.BlobStore) Option {
	return func(a *App) { a.store = store }
}

// WithPublisher replaces the configured summary publisher.
func WithPublisher(p Publisher) Option {
	return func(a *App) { a.publisher = p }
}

// WithClock replaces the system clock used for run timestamps.
func WithClock(c Clock) Option {
	return func(a *App) { a.clock = c }
}

// New initializes the services described by cfg. outputDir is the local
// output directory or, for the gcs backend, the object prefix. It fails fast
// when a backend cannot be initialised.
func New(ctx context.Context, cfg config.Config, outputDir string, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()

	a := &App{
		cfg:    cfg,
		logger: logger,
		clock:  system.New(),
		ids:    uuid.New(),
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.store == nil {
		store, err := a.openStore(ctx, outputDir)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		a.store = store
	}

	if a.publisher == nil && cfg.PubSub.Enabled() {
		logger.Info("Connecting to GCP Pub/Sub", zap.String("topic", cfg.PubSub.Topic))
		client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize pubsub: %w", err)
		}
		pub := pspub.New(client.Topic(cfg.PubSub.Topic))
		a.publisher = pub
		a.closers = append(a.closers, func() error {
			pub.Close()
			return client.Close()
		})
	}

	logger.Info("Application services initialized",
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.Bool("hot_search_api", cfg.HotSearchAPI.Enabled),
		zap.Bool("publish_summary", a.publisher != nil),
	)
	return a, nil
}

func (a *App) openStore(ctx context.Context, outputDir string) (storage.BlobStore, error) {
	switch a.cfg.Storage.Backend {
	case config.BackendLocal, "":
		a.logger.Info("Using local storage", zap.String("dir", outputDir))
		return local.New(local.Config{BaseDir: outputDir})
	case config.BackendGCS:
		a.logger.Info("Using GCS storage", zap.String("bucket", a.cfg.Storage.GCSBucket), zap.String("prefix", outputDir))
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		return gcs.New(client, gcs.Config{Bucket: a.cfg.Storage.GCSBucket, Prefix: outputDir})
	case config.BackendMemory:
		a.logger.Info("Using in-memory storage; term files are discarded at exit")
		return memory.NewBlobStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", a.cfg.Storage.Backend)
	}
}

// Store exposes the destination store.
func (a *App) Store() storage.BlobStore {
	return a.store
}

// Run executes one run over accounts. Every log line of the run carries the
// run ID.
func (a *App) Run(ctx context.Context, accounts []account.Account) (Summary, error) {
	runID, err := a.ids.NewID()
	if err != nil {
		return Summary{}, fmt.Errorf("assign run id: %w", err)
	}
	logger := a.logger.With(zap.String("run_id", runID))

	fetcher := source.New(a.cfg.FetcherConfig(), logger)
	writer := termfile.NewWriter(a.store, termfile.SHA256, logger)
	rt := router.New(router.Config{
		APIEnabled:    a.cfg.HotSearchAPI.Enabled,
		BaseURL:       a.cfg.HotSearchAPI.BaseURL,
		Rule:          a.cfg.Router.Rule.ToRule(),
		EndpointDelay: a.cfg.Router.EndpointDelay,
		Concurrency:   a.cfg.Router.Concurrency,
	}, fetcher, writer, system.New(), logger)

	runner := NewRunner(RunnerDeps{
		Pool:        fallback.NewPool(a.cfg.FallbackSources(), fetcher, logger),
		Router:      rt,
		Destination: writer,
		Clock:       a.clock,
		Publisher:   a.publisher,
	}, RunnerConfig{
		PushgatewayURL: a.cfg.Metrics.PushgatewayURL,
		MetricsJob:     a.cfg.Metrics.Job,
	}, logger)

	return runner.Run(ctx, runID, accounts)
}

// Close shuts down the clients opened by New.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("Error closing client", zap.Error(err))
		}
	}
	a.closers = nil
}
