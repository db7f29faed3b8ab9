package http

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/deceser/astrobot/internal/http/handlers"
	"github.com/deceser/astrobot/internal/middleware"
)

// NewRouter creates the HTTP router with the webhook and health endpoints.
func NewRouter(webhookHandler *handlers.WebhookHandler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	healthHandler := handlers.NewHealthHandler()
	r.Get("/health", healthHandler.ServeHTTP)

	// Webhook floods are throttled per client IP; Telegram retries throttled
	// updates on its own.
	limiter := middleware.NewRateLimiter(time.Minute, 300)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(limiter))
		r.Post("/webhook/{token}", webhookHandler.ServeHTTP)
	})

	return r
}
