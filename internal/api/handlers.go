// Watchpost - Continuous Sensor Monitoring and Analysis Pipeline
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/watchpost/watchpost/internal/logging"
	"github.com/watchpost/watchpost/internal/models"
	"github.com/watchpost/watchpost/internal/pipeline"
	"github.com/watchpost/watchpost/internal/report"
	ws "github.com/watchpost/watchpost/internal/websocket"
)

// Handler serves the API endpoints over the pipeline's components.
type Handler struct {
	p       *pipeline.Pipeline
	allowWS bool
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// StatusResponse is the /status payload.
type StatusResponse struct {
	Scheduler  models.SchedulerStatus   `json:"scheduler"`
	Phase      models.WorkflowPhase     `json:"phase"`
	Health     float64                  `json:"health"`
	Components []models.ComponentHealth `json:"components"`
	Clients    int                      `json:"websocket_clients"`
}

// Healthz is the liveness probe.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz is the readiness probe: degraded health answers 503 so a load
// balancer stops routing to an unhealthy instance.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	overall, _ := h.p.Health.Snapshot()
	if overall < h.p.Cfg.Health.WarnBelow {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "degraded",
			"health": overall,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready", "health": overall})
}

// Status reports scheduler state, the active workflow phase, and health.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	overall, components := h.p.Health.Snapshot()
	writeJSON(w, http.StatusOK, StatusResponse{
		Scheduler:  h.p.Sched.Status(),
		Phase:      h.p.Orch.Phase(),
		Health:     overall,
		Components: components,
		Clients:    h.p.Hub.ClientCount(),
	})
}

// Workflows lists recent workflow results, newest first.
func (h *Handler) Workflows(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.p.Orch.Recent(limitParam(r, 20)))
}

// WorkflowByID fetches one workflow result, serving from the in-memory
// history first so failed workflows (which are never persisted) are still
// addressable.
func (h *Handler) WorkflowByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	for _, wf := range h.p.Orch.Recent(500) {
		if wf.ID == id {
			writeJSON(w, http.StatusOK, wf)
			return
		}
	}

	rec, err := h.p.Store.Get(r.Context(), "workflows/"+id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(rec.Payload)
}

// Sessions lists recent capture sessions, newest first.
func (h *Handler) Sessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.p.Capture.History().Recent(limitParam(r, 20)))
}

// Reports exports recent concise reports as JSON, CSV, or Markdown.
func (h *Handler) Reports(w http.ResponseWriter, r *http.Request) {
	format, err := report.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	payload, err := report.Export(h.p.Reports.Recent(limitParam(r, 20)), format)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

// ReportByID fetches one persisted detailed report from storage.
func (h *Handler) ReportByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := h.p.Store.Get(r.Context(), "reports/"+id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(rec.Payload)
}

// Alerts lists active alerts; ?all=true includes resolved ones.
func (h *Handler) Alerts(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("all") == "true" {
		writeJSON(w, http.StatusOK, h.p.Alerts.All())
		return
	}
	writeJSON(w, http.StatusOK, h.p.Alerts.Active())
}

// AcknowledgeAlert marks one alert acknowledged.
func (h *Handler) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.p.Alerts.Acknowledge(id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StorageStats reports storage usage against quota.
func (h *Handler) StorageStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.p.Store.UsageStats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// TriggerCapture fires a manual capture through the scheduler's override
// gate. The workflow runs asynchronously; 202 means the fire was published.
func (h *Handler) TriggerCapture(w http.ResponseWriter, r *http.Request) {
	if err := h.p.Sched.TriggerManual(); err != nil {
		if errors.Is(err, models.ErrManualOverrideDisabled) {
			writeError(w, http.StatusForbidden, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "capture triggered"})
}

// pauseRequest is the /scheduler/pause body.
type pauseRequest struct {
	Duration string `json:"duration"`
}

// PauseScheduler suppresses scheduled fires for the requested duration.
func (h *Handler) PauseScheduler(w http.ResponseWriter, r *http.Request) {
	var req pauseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}

	d, err := time.ParseDuration(req.Duration)
	if err != nil || d <= 0 {
		writeError(w, http.StatusBadRequest, errors.New("duration must be a positive Go duration string"))
		return
	}

	h.p.Sched.Pause(d)
	writeJSON(w, http.StatusOK, map[string]string{
		"status":       "paused",
		"paused_until": time.Now().Add(d).UTC().Format(time.RFC3339),
	})
}

// ResumeScheduler clears an active pause.
func (h *Handler) ResumeScheduler(w http.ResponseWriter, r *http.Request) {
	h.p.Sched.Resume()
	writeJSON(w, http.StatusOK, map[string]string{"status": "resumed"})
}

// WebSocket upgrades the connection and registers the client with the hub.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if !h.allowWS {
		writeError(w, http.StatusForbidden, errors.New("websocket disabled"))
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Err(err).Msg("websocket upgrade failed")
		return
	}

	client := ws.NewClient(h.p.Hub, conn)
	h.p.Hub.Register <- client
	client.Start()
}

func limitParam(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > 500 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
