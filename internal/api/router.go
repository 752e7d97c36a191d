// Package api provides the HTTP API for Invitely.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/invitely/invitely/internal/api/handler"
	"github.com/invitely/invitely/internal/api/middleware"
	"github.com/invitely/invitely/internal/asset"
	"github.com/invitely/invitely/internal/auth"
	"github.com/invitely/invitely/internal/event"
	"github.com/invitely/invitely/internal/export"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Logger     zerolog.Logger
	Metrics    *middleware.Metrics
	RequireTLS bool

	// DevAuth routes POST /api/auth/dev-token. Never enable in production.
	DevAuth bool

	Ops           handler.OpsConfig
	AuthService   *auth.Service
	EventService  *event.Service
	ExportService *export.Service
	AssetService  *asset.Service
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing())
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.ContentTypeJSON)

	// Initialize handlers
	opsHandler := handler.NewOpsHandler(cfg.Ops)
	authHandler := handler.NewAuthHandler(cfg.AuthService)
	eventHandler := handler.NewEventHandler(cfg.EventService, cfg.Logger)
	exportHandler := handler.NewExportHandler(cfg.ExportService, cfg.Logger)
	assetHandler := handler.NewAssetHandler(cfg.AssetService, cfg.Logger)

	// Create auth middleware
	authMiddleware := middleware.Auth(cfg.AuthService)

	// Create rate limit middleware for different endpoint categories
	authRateLimit := middleware.RateLimitByIP(middleware.AuthRateLimit)
	exportRateLimit := middleware.RateLimitByUser(middleware.ExportRateLimit)
	standardRateLimit := middleware.RateLimitByUser(middleware.StandardRateLimit)
	assetRateLimit := middleware.RateLimitByIP(middleware.AssetRateLimit)

	r.Route("/api", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			// Status endpoint requires authentication
			r.With(authMiddleware).Get("/status", opsHandler.SystemStatus)
		})

		if cfg.DevAuth {
			r.With(authRateLimit, middleware.RequireJSON).Post("/auth/dev-token", authHandler.DevToken)
		}

		// Events (authenticated)
		r.Route("/events", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(standardRateLimit)
			r.Get("/", eventHandler.ListEvents)
			r.With(middleware.RequireJSON).Post("/", eventHandler.CreateEvent)
			r.Get("/{eventId}", eventHandler.GetEvent)
		})

		// Exports (authenticated)
		r.Route("/export", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(standardRateLimit)
			r.Get("/", exportHandler.ListExports)
			r.With(exportRateLimit, middleware.RequireJSON).Post("/", exportHandler.CreateExport)
			r.With(exportRateLimit).Post("/upload-assets", assetHandler.UploadAssets)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", exportHandler.GetExport)
				r.Delete("/", exportHandler.DeleteExport)
				r.Get("/download", exportHandler.DownloadExport)
			})
		})
	})

	// Uploaded assets are public so rendered designs can reference them.
	r.With(assetRateLimit).Get("/uploads/assets/{filename}", assetHandler.ServeAsset)

	return r
}
