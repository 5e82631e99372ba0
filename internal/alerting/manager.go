// Watchpost - Continuous Sensor Monitoring and Analysis Pipeline
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

// Package alerting holds the in-memory alert ring. Any component raises
// alerts through the Manager; observers receive them on the event bus, and
// the API reads the ring for the dashboard.
package alerting

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/watchpost/watchpost/internal/config"
	"github.com/watchpost/watchpost/internal/events"
	"github.com/watchpost/watchpost/internal/logging"
	"github.com/watchpost/watchpost/internal/metrics"
	"github.com/watchpost/watchpost/internal/models"
)

// Manager is the bounded alert store. Alerts age out via Prune; the ring cap
// is a hard backstop against alert storms.
type Manager struct {
	cfg config.AlertingConfig
	bus *events.Bus

	mu      sync.RWMutex
	alerts  []*models.SystemAlert
	nowFunc func() time.Time
}

// NewManager creates an alert manager. bus may be nil in tests.
func NewManager(cfg config.AlertingConfig, bus *events.Bus) *Manager {
	return &Manager{
		cfg:     cfg,
		bus:     bus,
		nowFunc: time.Now,
	}
}

// Raise records a new alert and publishes it on the bus. It returns the
// stored alert with its assigned ID.
func (m *Manager) Raise(severity models.Severity, component, message, workflowID string) *models.SystemAlert {
	alert := &models.SystemAlert{
		ID:         uuid.New().String(),
		Severity:   severity,
		Component:  component,
		Message:    message,
		Timestamp:  m.nowFunc().UTC(),
		WorkflowID: workflowID,
	}

	m.mu.Lock()
	m.alerts = append(m.alerts, alert)
	if len(m.alerts) > m.cfg.RingSize {
		m.alerts = m.alerts[len(m.alerts)-m.cfg.RingSize:]
	}
	m.mu.Unlock()

	metrics.AlertsRaised.WithLabelValues(string(severity), component).Inc()
	logging.Warn().
		Str("alert_id", alert.ID).
		Str("severity", string(severity)).
		Str("component", component).
		Str("message", message).
		Msg("alert raised")

	if m.bus != nil {
		if err := m.bus.Publish(events.TopicAlerts, alert); err != nil {
			logging.Err(err).Str("alert_id", alert.ID).Msg("failed to publish alert")
		}
	}
	return alert
}

// Acknowledge marks an alert acknowledged. Returns ErrNotFound for unknown
// IDs.
func (m *Manager) Acknowledge(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.alerts {
		if a.ID == id {
			a.Acknowledged = true
			return nil
		}
	}
	return models.ErrNotFound
}

// ResolveWarnings auto-resolves unacknowledged warning and info alerts after
// a successful workflow. Error and critical alerts are never auto-resolved.
func (m *Manager) ResolveWarnings(component string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	var resolved int
	for _, a := range m.alerts {
		if a.Resolved || a.Component != component {
			continue
		}
		if a.Severity == models.SeverityWarning || a.Severity == models.SeverityInfo {
			a.Resolved = true
			resolved++
		}
	}
	return resolved
}

// Active returns unresolved alerts, newest first.
func (m *Manager) Active() []*models.SystemAlert {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.SystemAlert, 0, len(m.alerts))
	for i := len(m.alerts) - 1; i >= 0; i-- {
		if !m.alerts[i].Resolved {
			out = append(out, m.alerts[i])
		}
	}
	return out
}

// All returns every retained alert, newest first.
func (m *Manager) All() []*models.SystemAlert {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.SystemAlert, len(m.alerts))
	for i, a := range m.alerts {
		out[len(m.alerts)-1-i] = a
	}
	return out
}

// Prune drops alerts older than the configured max age and returns how many
// were removed.
func (m *Manager) Prune() int {
	cutoff := m.nowFunc().Add(-m.cfg.MaxAge)

	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.alerts[:0]
	for _, a := range m.alerts {
		if a.Timestamp.After(cutoff) {
			kept = append(kept, a)
		}
	}
	removed := len(m.alerts) - len(kept)
	m.alerts = kept

	if removed > 0 {
		logging.Debug().Int("removed", removed).Msg("pruned aged alerts")
	}
	return removed
}
