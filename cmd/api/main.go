// Package main provides the entrypoint for the Invitely API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/invitely/invitely/internal/api"
	"github.com/invitely/invitely/internal/api/handler"
	"github.com/invitely/invitely/internal/api/middleware"
	"github.com/invitely/invitely/internal/app"
	"github.com/invitely/invitely/internal/auth"
	"github.com/invitely/invitely/internal/config"
	"github.com/invitely/invitely/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const serviceName = "invitely-api"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	logger := app.NewLogger(cfg, serviceName, Version)
	logger.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.Env).
		Msg("starting Invitely API")

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

	metrics, err := middleware.NewMetrics()
	if err != nil {
		logger.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to initialize services")
		os.Exit(1)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close backends")
		}
	}()

	if cfg.IsProduction() && cfg.Auth.SigningKey == "dev-signing-key-change-me" {
		logger.Warn().Msg("using default JWT signing key - not secure for production")
	}
	authService := auth.NewService(auth.NewJWTService(auth.JWTConfig{
		SigningKey: cfg.Auth.SigningKey,
		Issuer:     cfg.Auth.Issuer,
		Audience:   cfg.Auth.Audience,
	}))

	// The in-process pool and sweep only run when this binary processes jobs.
	var sweep handler.SweepReporter
	if a.Pool != nil {
		sweep = a.Sweep
	}

	router := api.NewRouter(api.RouterConfig{
		Logger:     logger,
		Metrics:    metrics,
		RequireTLS: cfg.RequireTLS,
		DevAuth:    !cfg.IsProduction(),
		Ops: handler.OpsConfig{
			Version:   Version,
			BuildTime: BuildTime,
			Checks:    a.Checks,
			Registry:  a.Registry,
			Sweep:     sweep,
		},
		AuthService:   authService,
		EventService:  a.Events,
		ExportService: a.Exports,
		AssetService:  a.Assets,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("addr", server.Addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if a.Pool != nil {
		g.Go(func() error { return a.Pool.Run(gctx) })
		if cfg.Export.SweepInterval > 0 {
			g.Go(func() error { return a.Sweep.Start(gctx) })
		}
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("server stopped with error")
		return
	}
	logger.Info().Msg("server stopped")
}
