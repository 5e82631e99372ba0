// Watchpost - Continuous Sensor Monitoring and Analysis Pipeline
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

// Package api provides the HTTP surface: pipeline status and control under
// /api/v1, Prometheus metrics, health probes, and the websocket upgrade.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/watchpost/watchpost/internal/config"
	"github.com/watchpost/watchpost/internal/pipeline"
)

// NewRouter builds the chi router over the pipeline.
func NewRouter(cfg config.ServerConfig, p *pipeline.Pipeline) http.Handler {
	h := &Handler{p: p, allowWS: cfg.AllowWebsocket}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(cfg.RateLimit, time.Minute))

		r.Get("/status", h.Status)
		r.Get("/workflows", h.Workflows)
		r.Get("/workflows/{id}", h.WorkflowByID)
		r.Get("/sessions", h.Sessions)
		r.Get("/reports", h.Reports)
		r.Get("/reports/{id}", h.ReportByID)
		r.Get("/alerts", h.Alerts)
		r.Post("/alerts/{id}/ack", h.AcknowledgeAlert)
		r.Get("/storage/stats", h.StorageStats)

		r.Post("/capture", h.TriggerCapture)
		r.Post("/scheduler/pause", h.PauseScheduler)
		r.Post("/scheduler/resume", h.ResumeScheduler)

		r.Get("/ws", h.WebSocket)
	})

	return r
}
