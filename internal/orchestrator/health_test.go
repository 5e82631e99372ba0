// Watchpost - Continuous Sensor Monitoring and Analysis Pipeline
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package orchestrator

import (
	"testing"

	"github.com/watchpost/watchpost/internal/alerting"
	"github.com/watchpost/watchpost/internal/config"
	"github.com/watchpost/watchpost/internal/models"
)

type staticHealth struct {
	name  string
	score float64
}

func (s *staticHealth) Health() models.ComponentHealth {
	return models.ComponentHealth{Component: s.name, Score: s.score}
}

func TestSampleAggregatesMean(t *testing.T) {
	m := NewHealthMonitor(config.Default().Health, nil,
		&staticHealth{"capture", 1.0},
		&staticHealth{"analysis", 0.5},
	)

	if got := m.Sample(); got != 0.75 {
		t.Errorf("Sample() = %.2f, want 0.75", got)
	}

	overall, components := m.Snapshot()
	if overall != 0.75 || len(components) != 2 {
		t.Errorf("Snapshot() = %.2f with %d components", overall, len(components))
	}
}

func TestDegradationWarnsOncePerEpisode(t *testing.T) {
	alerts := alerting.NewManager(config.Default().Alerting, nil)
	flaky := &staticHealth{"storage", 0.5}
	m := NewHealthMonitor(config.Default().Health, alerts, flaky) // warn below 0.8

	m.Sample()
	m.Sample()
	if got := len(alerts.Active()); got != 1 {
		t.Fatalf("expected one warning for a continuous episode, got %d", got)
	}

	// Recovery re-arms; a second degradation warns again.
	flaky.score = 1.0
	m.Sample()
	flaky.score = 0.4
	m.Sample()
	if got := len(alerts.Active()); got != 2 {
		t.Errorf("expected a second warning after recovery, got %d", got)
	}
}

func TestNoReportersIsHealthy(t *testing.T) {
	m := NewHealthMonitor(config.Default().Health, nil)
	if got := m.Sample(); got != 1.0 {
		t.Errorf("Sample() with no reporters = %.2f, want 1.0", got)
	}
}
