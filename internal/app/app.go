// Package app initializes and holds long-lived application services, acting as
// a dependency injection container for the CLI commands.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/wb-product-ingest/internal/clock/system"
	"github.com/JakeFAU/wb-product-ingest/internal/config"
	"github.com/JakeFAU/wb-product-ingest/internal/discovery"
	collyfetcher "github.com/JakeFAU/wb-product-ingest/internal/fetcher/colly"
	"github.com/JakeFAU/wb-product-ingest/internal/id/uuid"
	"github.com/JakeFAU/wb-product-ingest/internal/merge"
	"github.com/JakeFAU/wb-product-ingest/internal/pipeline"
	"github.com/JakeFAU/wb-product-ingest/internal/policy/ratelimit"
	"github.com/JakeFAU/wb-product-ingest/internal/product"
	pubsubpublisher "github.com/JakeFAU/wb-product-ingest/internal/publisher/pubsub"
	"github.com/JakeFAU/wb-product-ingest/internal/storage/gcs"
	"github.com/JakeFAU/wb-product-ingest/internal/storage/postgres"
	"github.com/JakeFAU/wb-product-ingest/internal/upstream"
)

// ProductStore is a record store that can report readiness.
type ProductStore interface {
	product.RecordStore
	Ping(ctx context.Context) error
}

// App holds the shared services built from one Config.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	fetcher  *collyfetcher.Fetcher
	acquirer *pipeline.Acquirer
	batch    *pipeline.Batch
	clock    *system.Clock
	ids      *uuid.Generator
	closers  []func() error
}

// New wires the acquisition pipeline. External sinks are opened on demand.
func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Upstream.UserAgent,
		Timeout:   cfg.Upstream.Timeout,
		Limiter: ratelimit.New(ratelimit.Config{
			RPS:   cfg.Upstream.RateLimitRPS,
			Burst: cfg.Upstream.RateLimitBurst,
		}),
	})
	client, err := upstream.New(fetcher, cfg.UpstreamClientConfig(), logger.Named("upstream"))
	if err != nil {
		return nil, fmt.Errorf("init upstream client: %w", err)
	}
	acquirer, err := pipeline.NewAcquirer(client, merge.New(cfg.MergeConfig(), logger.Named("merge")), logger.Named("pipeline"))
	if err != nil {
		return nil, fmt.Errorf("init acquirer: %w", err)
	}
	return &App{
		cfg:      cfg,
		logger:   logger,
		fetcher:  fetcher,
		acquirer: acquirer,
		batch:    pipeline.NewBatch(acquirer, cfg.Pipeline.Concurrency),
		clock:    system.New(),
		ids:      uuid.New(),
	}, nil
}

// Config returns the configuration the App was built from.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Acquirer returns the single-product pipeline.
func (a *App) Acquirer() *pipeline.Acquirer { return a.acquirer }

// Batch returns the bounded fan-out over the Acquirer.
func (a *App) Batch() *pipeline.Batch { return a.batch }

// Clock returns the wall clock.
func (a *App) Clock() *system.Clock { return a.clock }

// IDs returns the run and request id generator.
func (a *App) IDs() *uuid.Generator { return a.ids }

// Discovery builds a catalog client sharing the App's fetcher.
func (a *App) Discovery() (*discovery.Client, error) {
	client, err := discovery.New(a.fetcher, a.cfg.DiscoveryClientConfig(), a.logger.Named("discovery"))
	if err != nil {
		return nil, fmt.Errorf("init discovery: %w", err)
	}
	return client, nil
}

// ProductStore connects to Postgres. It returns nil when db.dsn is unset.
func (a *App) ProductStore(ctx context.Context) (ProductStore, error) {
	if a.cfg.DB.DSN == "" {
		return nil, nil
	}
	store, err := postgres.NewProductStore(ctx, postgres.Config{
		DSN:      a.cfg.DB.DSN,
		Table:    a.cfg.DB.Table,
		MaxConns: a.cfg.DB.MaxConns,
	}, a.clock)
	if err != nil {
		return nil, fmt.Errorf("init product store: %w", err)
	}
	a.logger.Info("connected to postgres", zap.String("table", a.cfg.DB.Table))
	a.closers = append(a.closers, func() error { store.Close(); return nil })
	return store, nil
}

// BlobStore opens the GCS bucket. It returns nil when storage.gcs_bucket is unset.
func (a *App) BlobStore(ctx context.Context) (product.BlobStore, error) {
	if a.cfg.Storage.GCSBucket == "" {
		return nil, nil
	}
	store, err := gcs.Open(ctx, gcs.Config{Bucket: a.cfg.Storage.GCSBucket, Prefix: a.cfg.Storage.Prefix})
	if err != nil {
		return nil, fmt.Errorf("init blob store: %w", err)
	}
	a.logger.Info("using GCS output bucket", zap.String("bucket", a.cfg.Storage.GCSBucket))
	a.closers = append(a.closers, store.Close)
	return store, nil
}

// Publisher opens the Pub/Sub topic. It returns nil when pubsub.topic_name is unset.
func (a *App) Publisher(ctx context.Context) (product.Publisher, error) {
	if a.cfg.PubSub.TopicName == "" {
		return nil, nil
	}
	pub, err := pubsubpublisher.Open(ctx, a.cfg.PubSub.ProjectID, a.cfg.PubSub.TopicName)
	if err != nil {
		return nil, fmt.Errorf("init publisher: %w", err)
	}
	a.logger.Info("publishing run summaries", zap.String("topic", a.cfg.PubSub.TopicName))
	a.closers = append(a.closers, pub.Close)
	return pub, nil
}

// Close shuts down opened services in reverse order and flushes the logger.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("error closing service", zap.Error(err))
		}
	}
	a.closers = nil
	_ = a.logger.Sync()
}
