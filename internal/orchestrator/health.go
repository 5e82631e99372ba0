// Watchpost - Continuous Sensor Monitoring and Analysis Pipeline
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/watchpost/watchpost/internal/alerting"
	"github.com/watchpost/watchpost/internal/config"
	"github.com/watchpost/watchpost/internal/logging"
	"github.com/watchpost/watchpost/internal/metrics"
	"github.com/watchpost/watchpost/internal/models"
)

// HealthReporter is any component that self-reports a health score.
type HealthReporter interface {
	Health() models.ComponentHealth
}

// HealthMonitor samples component health on an interval and aggregates it
// into an overall score. Dropping below the configured floor raises one
// warning per degradation episode; recovery re-arms the alert.
type HealthMonitor struct {
	cfg       config.HealthConfig
	alerts    *alerting.Manager
	reporters []HealthReporter

	mu      sync.Mutex
	overall float64
	last    []models.ComponentHealth
	warned  bool
}

// NewHealthMonitor creates a monitor over the given reporters.
func NewHealthMonitor(cfg config.HealthConfig, alerts *alerting.Manager, reporters ...HealthReporter) *HealthMonitor {
	return &HealthMonitor{
		cfg:       cfg,
		alerts:    alerts,
		reporters: reporters,
		overall:   1.0,
	}
}

// String names the service in supervisor logs.
func (m *HealthMonitor) String() string { return "health-monitor" }

// Serve samples on the configured interval until ctx is cancelled. It
// satisfies suture.Service.
func (m *HealthMonitor) Serve(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	m.Sample()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Sample()
		}
	}
}

// Sample polls every reporter and recomputes the overall score: the
// unweighted mean of component scores.
func (m *HealthMonitor) Sample() float64 {
	components := make([]models.ComponentHealth, 0, len(m.reporters))
	var sum float64
	for _, r := range m.reporters {
		h := r.Health()
		components = append(components, h)
		sum += h.Score
	}

	overall := 1.0
	if len(components) > 0 {
		overall = sum / float64(len(components))
	}
	metrics.SystemHealthScore.WithLabelValues("overall").Set(overall)

	m.mu.Lock()
	m.overall = overall
	m.last = components
	degraded := overall < m.cfg.WarnBelow
	shouldWarn := degraded && !m.warned
	m.warned = degraded
	m.mu.Unlock()

	if shouldWarn && m.alerts != nil {
		m.alerts.Raise(models.SeverityWarning, "health",
			fmt.Sprintf("overall health %.2f below %.2f: %s", overall, m.cfg.WarnBelow, worstComponent(components)),
			"")
	}
	if degraded {
		logging.Warn().Float64("overall", overall).Msg("system health degraded")
	}
	return overall
}

// Snapshot returns the last sampled overall score and component breakdown.
func (m *HealthMonitor) Snapshot() (float64, []models.ComponentHealth) {
	m.mu.Lock()
	defer m.mu.Unlock()

	components := make([]models.ComponentHealth, len(m.last))
	copy(components, m.last)
	return m.overall, components
}

func worstComponent(components []models.ComponentHealth) string {
	if len(components) == 0 {
		return "no components reporting"
	}
	worst := components[0]
	for _, c := range components[1:] {
		if c.Score < worst.Score {
			worst = c
		}
	}
	return fmt.Sprintf("worst component %s at %.2f", worst.Component, worst.Score)
}
