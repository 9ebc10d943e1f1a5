// Package router assembles the chi router for the booking API.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/figarolabs/figaro-booking/internal/http/handlers"
	httpmiddleware "github.com/figarolabs/figaro-booking/internal/http/middleware"
	"github.com/figarolabs/figaro-booking/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger         *logging.Logger
	TurnHandler    *handlers.TurnHandler
	MetricsHandler http.Handler
}

// New creates a new chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", cfg.TurnHandler.HealthCheck)
	r.Post("/webhook/turn", cfg.TurnHandler.HandleTurn)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	return r
}
