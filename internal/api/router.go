// MeetSync - Meeting Scheduling with Real-Time Updates
// Copyright 2026 Akidima
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Akidima/meetsync

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Akidima/meetsync/internal/config"
)

// NewRouter configures all HTTP routes.
func NewRouter(handler *Handler, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to all routes in order.
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Security.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health probes get permissive rate limiting so monitors can poll
	// frequently without opening an abuse vector.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(httprate.LimitByIP(1000, cfg.Security.RateLimitWindow))
		r.Get("/live", handler.HealthLive)
		r.Get("/ready", handler.HealthReady)
	})

	r.Route("/api/v1/realtime", func(r chi.Router) {
		r.Use(httprate.LimitByIP(cfg.Security.RateLimitReqs, cfg.Security.RateLimitWindow))
		r.Get("/status", handler.RealtimeStatus)
		r.Get("/types", handler.EventTypes)
		r.Post("/broadcast", handler.RealtimeBroadcast)
	})

	// The upgrade endpoint is not rate limited by request count; a
	// WebSocket is one long request and connection-level limits apply
	// after the upgrade.
	r.Get("/ws", handler.WebSocket)

	r.Handle("/metrics", promhttp.Handler())

	return r
}
