package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/mosaic-social/mosaic/internal/api/middleware"
	"github.com/mosaic-social/mosaic/internal/broker"
	"github.com/mosaic-social/mosaic/internal/chat"
	"github.com/mosaic-social/mosaic/internal/handlers"
	"github.com/mosaic-social/mosaic/internal/store"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(logger zerolog.Logger, st store.Store, b *broker.Broker, svc *chat.Service, registry *chat.Registry, rlCfg middleware.RateLimiterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(16 * 1024)) // 16KB max body
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// Rate limiting
	limiter := middleware.NewRateLimiter(b.Client(), logger, rlCfg)
	r.Use(limiter.Middleware)

	// CORS - the frontend is served from a separate origin
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	h := handlers.NewHandler(st, b, svc, registry, logger)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/health", h.Health)

	// Profiles
	r.Post("/profiles", h.CreateProfile)
	r.Get("/profiles/{id}", h.GetProfile)

	// Messaging
	r.Post("/messages/send", h.SendMessage)
	r.Post("/messages/read", h.MarkRead)
	r.Get("/messages/history/{other_user_id}", h.GetHistory)
	r.Get("/messages/conversations", h.GetConversations)

	// Live connections
	r.Get("/ws/{user_id}", h.ServeWS)

	return r
}
