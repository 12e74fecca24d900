package router

import (
	"net/http"

	"catalogo-sync-api/internal/handler"
	"catalogo-sync-api/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Config holds the configuration for creating a router.
type Config struct {
	HealthHandler    *handler.HealthHandler
	StagedHandler    *handler.StagedHandler
	CatalogHandler   *handler.CatalogHandler
	InventoryHandler *handler.InventoryHandler
	AuthMiddleware   func(http.Handler) http.Handler
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-Login-Key"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// PUBLIC routes (no auth required)
	if cfg.HealthHandler != nil {
		r.Get("/api/v1/health", cfg.HealthHandler.Health)
	}

	// OPERATOR routes
	r.Group(func(r chi.Router) {
		if cfg.AuthMiddleware != nil {
			r.Use(cfg.AuthMiddleware)
		}

		if cfg.CatalogHandler != nil {
			r.Get("/api/v1/catalog", cfg.CatalogHandler.Get)
			r.Post("/api/v1/sync", cfg.CatalogHandler.Sync)
		}

		if cfg.StagedHandler != nil {
			r.Post("/api/v1/staged", cfg.StagedHandler.Stage)
			r.Get("/api/v1/staged", cfg.StagedHandler.List)
			r.Delete("/api/v1/staged/{id}", cfg.StagedHandler.Discard)
			r.Delete("/api/v1/staged", cfg.StagedHandler.DiscardAll)
		}

		if cfg.InventoryHandler != nil {
			r.Get("/api/v1/inventory", cfg.InventoryHandler.GetBulk)
			r.Get("/api/v1/inventory/{id}", cfg.InventoryHandler.Get)
			r.Post("/api/v1/inventory/{id}", cfg.InventoryHandler.Save)
			r.Delete("/api/v1/inventory/{id}", cfg.InventoryHandler.Delete)
		}
	})

	return r
}
