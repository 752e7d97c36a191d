// Package app assembles the stores, storage and export pipeline shared by the
// api and worker binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/invitely/invitely/internal/api/handler"
	"github.com/invitely/invitely/internal/asset"
	"github.com/invitely/invitely/internal/config"
	"github.com/invitely/invitely/internal/database"
	"github.com/invitely/invitely/internal/docstore"
	"github.com/invitely/invitely/internal/event"
	"github.com/invitely/invitely/internal/export"
	"github.com/invitely/invitely/internal/resilience"
	"github.com/invitely/invitely/internal/storage"
	"github.com/invitely/invitely/internal/worker"
)

// App holds the wired services. Close releases every connection it opened.
type App struct {
	Config   config.Config
	Logger   zerolog.Logger
	Registry *resilience.Registry
	Storage  storage.Interface

	ExportRepo export.Repository
	Events     *event.Service
	Exports    *export.Service
	Assets     *asset.Service
	Processor  *export.Processor
	Reconciler *export.Reconciler
	Sweep      *worker.SweepJob

	// Pool is set when jobs run in-process (EXPORT_DISPATCHER=pool).
	Pool *worker.Pool

	// Checks are the readiness probes for the backends in use.
	Checks map[string]handler.Check

	closers []func() error
}

// NewLogger builds the root logger. Development output is human readable.
func NewLogger(cfg config.Config, service, version string) zerolog.Logger {
	var out io.Writer = os.Stdout
	if !cfg.IsProduction() {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("service", service).
		Str("version", version).
		Logger()
}

// New connects the configured backends and wires the export pipeline.
func New(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*App, error) {
	a := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: resilience.NewRegistry(),
		Checks:   make(map[string]handler.Check),
	}

	if err := a.wire(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context) error {
	eventRepo, err := a.openStores(ctx)
	if err != nil {
		return err
	}

	blobs, err := storage.New(ctx, a.Config.Storage)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	a.Checks["storage"] = func(ctx context.Context) error {
		_, err := blobs.Exists(ctx, "healthcheck")
		return err
	}
	a.Storage = storage.NewResilient(blobs, a.Registry)
	a.Logger.Info().Str("provider", blobs.Provider()).Msg("blob storage initialized")

	locker := a.newLocker()

	metrics, err := export.NewMetrics()
	if err != nil {
		return fmt.Errorf("init export metrics: %w", err)
	}

	a.Processor = export.NewProcessor(export.ProcessorConfig{
		Repo:      a.ExportRepo,
		Storage:   a.Storage,
		Locker:    locker,
		Metrics:   metrics,
		Logger:    a.Logger,
		StepDelay: a.Config.Export.StepDelay,
		LeaseTTL:  a.Config.Export.LeaseTTL,
	})

	dispatcher, err := a.newDispatcher(ctx)
	if err != nil {
		return err
	}

	a.Events = event.NewService(eventRepo, a.Config.BaseURL)
	a.Exports = export.NewService(export.ServiceConfig{
		Repo:       a.ExportRepo,
		Events:     a.Events,
		Storage:    a.Storage,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     a.Logger,
	})
	a.Assets = asset.NewService(a.Storage, a.Logger)

	a.Reconciler = export.NewReconciler(export.ReconcilerConfig{
		Repo:       a.ExportRepo,
		Storage:    a.Storage,
		Dispatcher: dispatcher,
		Locker:     locker,
		Logger:     a.Logger,
		StaleAfter: a.Config.Export.StaleAfter,
		LeaseTTL:   a.Config.Export.LeaseTTL,
	})
	_, sweepCfg := worker.ConfigFromExport(a.Config.Export)
	a.Sweep = worker.NewSweepJob(sweepCfg, a.Reconciler, a.Logger)

	return nil
}

// openStores selects the metadata backend and sets ExportRepo.
func (a *App) openStores(ctx context.Context) (event.Repository, error) {
	switch a.Config.Store {
	case config.StorePostgres:
		pool, err := database.Connect(ctx, a.Config.Postgres)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { pool.Close(); return nil })
		a.Checks["postgres"] = pool.Ping

		if a.Config.Postgres.Migrate {
			if err := database.Migrate(ctx, pool); err != nil {
				return nil, err
			}
		}
		a.Logger.Info().
			Str("host", a.Config.Postgres.Host).
			Int("port", a.Config.Postgres.Port).
			Str("database", a.Config.Postgres.Name).
			Msg("database connected")

		a.ExportRepo = export.NewPostgresRepository(pool)
		return event.NewPostgresRepository(pool), nil

	case config.StoreMongo:
		client, db, err := docstore.Connect(ctx, a.Config.Mongo)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { return docstore.Disconnect(client) })
		a.Checks["mongo"] = func(ctx context.Context) error { return client.Ping(ctx, nil) }

		if err := docstore.EnsureIndexes(ctx, db); err != nil {
			return nil, err
		}
		a.Logger.Info().Str("database", a.Config.Mongo.Database).Msg("mongo connected")

		a.ExportRepo = export.NewMongoRepository(db.Collection(docstore.ExportsCollection))
		return event.NewMongoRepository(db.Collection(docstore.EventsCollection)), nil

	default:
		a.Logger.Warn().Msg("using in-memory store, data is lost on restart")
		a.ExportRepo = export.NewInMemoryRepository()
		return event.NewInMemoryRepository(), nil
	}
}

func (a *App) newLocker() export.Locker {
	if !a.Config.Redis.Enabled {
		return export.NewLocalLocker()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     a.Config.Redis.Addr,
		Password: a.Config.Redis.Password,
		DB:       a.Config.Redis.DB,
	})
	a.closers = append(a.closers, client.Close)

	locker := export.NewRedisLocker(client, "")
	a.Checks["redis"] = locker.Health
	a.Logger.Info().Str("addr", a.Config.Redis.Addr).Msg("redis lease locker enabled")
	return locker
}

func (a *App) newDispatcher(ctx context.Context) (export.Dispatcher, error) {
	if a.Config.Export.Dispatcher == config.DispatcherPubSub {
		d, err := worker.NewPubSubDispatcher(ctx, a.Config.PubSub.ProjectID, a.Config.PubSub.Topic, a.Logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, d.Close)
		a.Logger.Info().Str("topic", a.Config.PubSub.Topic).Msg("export jobs dispatched over pubsub")
		return d, nil
	}

	poolCfg, _ := worker.ConfigFromExport(a.Config.Export)
	a.Pool = worker.NewPool(poolCfg, a.Processor, a.ExportRepo, a.Logger)
	a.Logger.Info().Int("workers", poolCfg.Workers).Msg("export jobs processed in-process")
	return a.Pool, nil
}

// Close releases connections in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
