package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/eeya7ya/magictech-management-sub002/internal/middleware"
)

// Router holds all handlers and creates the chi router
type Router struct {
	notificationHandler *NotificationHandler
	presenceHandler     *PresenceHandler
	healthHandler       *HealthHandler
	logger              *zap.Logger
}

// NewRouter creates a new router
func NewRouter(
	notificationHandler *NotificationHandler,
	presenceHandler *PresenceHandler,
	healthHandler *HealthHandler,
	logger *zap.Logger,
) *Router {
	return &Router{
		notificationHandler: notificationHandler,
		presenceHandler:     presenceHandler,
		healthHandler:       healthHandler,
		logger:              logger,
	}
}

// Setup configures and returns the chi router
func (rt *Router) Setup() *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RecoveryMiddleware(rt.logger))
	r.Use(middleware.LoggingMiddleware(rt.logger))
	r.Use(middleware.CORSMiddleware())
	r.Use(chimiddleware.Compress(5))

	// Health endpoints
	r.Route("/health", func(r chi.Router) {
		r.Get("/", rt.healthHandler.Health)
		r.Get("/ready", rt.healthHandler.Ready)
		r.Get("/live", rt.healthHandler.Live)
	})

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", rt.notificationHandler.List)
			r.Get("/missed", rt.notificationHandler.Missed)
			r.Post("/test", rt.notificationHandler.Trigger)
			r.Delete("/read", rt.notificationHandler.PurgeRead)
			r.Post("/{id}/read", rt.notificationHandler.MarkRead)
			r.Post("/{id}/resolve", rt.notificationHandler.MarkResolved)
			r.Delete("/{id}", rt.notificationHandler.Delete)
		})

		r.Get("/devices", rt.presenceHandler.OnlineDevices)
	})

	return r
}
