// Package main provides the entrypoint for the Invitely export worker.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/invitely/invitely/internal/api/handler"
	"github.com/invitely/invitely/internal/api/middleware"
	"github.com/invitely/invitely/internal/app"
	"github.com/invitely/invitely/internal/config"
	"github.com/invitely/invitely/internal/telemetry"
	"github.com/invitely/invitely/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const serviceName = "invitely-worker"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	logger := app.NewLogger(cfg, serviceName, Version)
	logger.Info().
		Str("build_time", BuildTime).
		Str("dispatcher", cfg.Export.Dispatcher).
		Msg("starting Invitely worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.Init(ctx, telemetry.NewConfig(cfg, serviceName, Version))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to initialize services")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close backends")
		}
	}()

	// Worker also exposes health endpoints for Cloud Run
	ops := handler.NewOpsHandler(handler.OpsConfig{
		Version:   Version,
		BuildTime: BuildTime,
		Checks:    a.Checks,
		Registry:  a.Registry,
		Sweep:     a.Sweep,
	})
	mux := chi.NewRouter()
	mux.Use(middleware.Recovery(logger))
	mux.Use(middleware.ContentTypeJSON)
	mux.Get("/health", ops.HealthCheck)
	mux.Get("/ready", ops.ReadinessCheck)
	mux.Get("/status", ops.SystemStatus)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if cfg.Export.Dispatcher == config.DispatcherPubSub {
		handlerCfg := worker.PubSubConfig{
			ProjectID:        cfg.PubSub.ProjectID,
			SubscriptionName: cfg.PubSub.Subscription,
			Processor:        a.Processor,
			Sweep:            a.Sweep,
			MaxOutstanding:   cfg.Export.Workers,
			Logger:           logger,
		}
		subscriber, err := worker.NewPubSubHandler(ctx, handlerCfg)
		if err != nil {
			logger.Error().Err(err).Msg("failed to create pubsub handler")
			return
		}
		defer func() { _ = subscriber.Close() }()

		g.Go(func() error { return subscriber.Start(gctx) })
	} else {
		// Pool mode: pick up pending jobs from the shared store by polling.
		g.Go(func() error { return a.Pool.Run(gctx) })
	}

	if cfg.Export.SweepInterval > 0 {
		g.Go(func() error { return a.Sweep.Start(gctx) })
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down worker")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("worker stopped with error")
		return
	}
	logger.Info().Msg("worker stopped")
}
