// Package app initializes and holds long-lived application services,
// acting as a dependency injection container for the CLI commands.
package app

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	gcstorage "cloud.google.com/go/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/vantran-dev/recipeharvest/internal/config"
	"github.com/vantran-dev/recipeharvest/internal/extract"
	collyfetcher "github.com/vantran-dev/recipeharvest/internal/fetcher/colly"
	"github.com/vantran-dev/recipeharvest/internal/harvest"
	"github.com/vantran-dev/recipeharvest/internal/logging"
	"github.com/vantran-dev/recipeharvest/internal/metrics"
	"github.com/vantran-dev/recipeharvest/internal/policy/ratelimit"
	gcppublisher "github.com/vantran-dev/recipeharvest/internal/publisher/pubsub"
	"github.com/vantran-dev/recipeharvest/internal/storage/gcs"
	"github.com/vantran-dev/recipeharvest/internal/storage/local"
	pgstore "github.com/vantran-dev/recipeharvest/internal/storage/postgres"
)

// App holds the shared, long-lived services for the application. It is
// initialized once at startup and handed to the commands that need it.
type App struct {
	Cfg       config.Config
	Logger    *zap.Logger
	Site      harvest.Site
	Queue     harvest.JobQueue
	Staging   harvest.StagingStore
	Promoter  harvest.Promoter
	Feedback  harvest.FeedbackTracker
	Fetcher   harvest.Fetcher
	Extractor harvest.Extractor
	BlobStore harvest.BlobStore
	Publisher harvest.Publisher

	pool         *pgxpool.Pool
	gcsClient    *gcstorage.Client
	pubsubClient *pubsub.Client
}

// New builds every service the commands need from the configuration. It
// fails fast when a critical dependency cannot be initialized.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	metrics.Init()

	pool, err := pgstore.NewPool(ctx, pgstore.PoolConfig{
		DSN:      cfg.DB.DSN,
		MaxConns: int32(cfg.DB.MaxConns),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pgstore.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	site := harvest.Site{Source: cfg.Source, Locale: cfg.Locale}
	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerSecond: cfg.Harvest.RequestsPerSecond,
		Burst:             cfg.Harvest.Burst,
	})
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Harvest.UserAgent,
		Timeout:   cfg.FetchTimeout(),
		Pacer:     limiter,
	})
	a := &App{
		Cfg:       cfg,
		Logger:    logger,
		Site:      site,
		Queue:     pgstore.NewJobQueue(pool, site, cfg.Queue.MaxAttempts),
		Staging:   pgstore.NewStagingStore(pool),
		Promoter:  pgstore.NewProductStore(pool),
		Feedback:  pgstore.NewFeedbackStore(pool),
		Fetcher:   fetcher,
		Extractor: extract.NewJSONLD(),
		pool:      pool,
	}

	if err := a.initArchive(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initPublisher(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) initArchive(ctx context.Context) error {
	if !a.Cfg.Archive.Enabled {
		return nil
	}
	switch a.Cfg.Archive.Backend {
	case "local":
		store, err := local.New(local.Config{BaseDir: a.Cfg.Archive.Dir})
		if err != nil {
			return fmt.Errorf("init local archive: %w", err)
		}
		a.BlobStore = store
	case "gcs":
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("init gcs client: %w", err)
		}
		a.gcsClient = client
		store, err := gcs.New(client, gcs.Config{Bucket: a.Cfg.Archive.Bucket})
		if err != nil {
			return fmt.Errorf("init gcs archive: %w", err)
		}
		a.BlobStore = store
	default:
		return fmt.Errorf("unknown archive backend: %s", a.Cfg.Archive.Backend)
	}
	return nil
}

func (a *App) initPublisher(ctx context.Context) error {
	if !a.Cfg.Publish.Enabled {
		return nil
	}
	client, err := pubsub.NewClient(ctx, a.Cfg.Publish.ProjectID)
	if err != nil {
		return fmt.Errorf("init pubsub client: %w", err)
	}
	a.pubsubClient = client
	a.Publisher = gcppublisher.New(client)
	return nil
}

// Close releases the services in reverse initialization order.
func (a *App) Close() {
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.Logger.Warn("close pubsub client", zap.Error(err))
		}
	}
	if a.gcsClient != nil {
		if err := a.gcsClient.Close(); err != nil {
			a.Logger.Warn("close gcs client", zap.Error(err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	_ = a.Logger.Sync()
}
