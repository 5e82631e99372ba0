// Watchpost - Continuous Sensor Monitoring and Analysis Pipeline
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

// Package pipeline is the composition root: it builds every component from
// configuration and owns the consumers that react to bus events.
package pipeline

import (
	"fmt"

	"github.com/watchpost/watchpost/internal/alerting"
	"github.com/watchpost/watchpost/internal/analysis"
	"github.com/watchpost/watchpost/internal/capture"
	"github.com/watchpost/watchpost/internal/config"
	"github.com/watchpost/watchpost/internal/events"
	"github.com/watchpost/watchpost/internal/models"
	"github.com/watchpost/watchpost/internal/orchestrator"
	"github.com/watchpost/watchpost/internal/report"
	"github.com/watchpost/watchpost/internal/scheduler"
	"github.com/watchpost/watchpost/internal/storage"
	"github.com/watchpost/watchpost/internal/websocket"
)

// Pipeline holds the wired component graph. Construction wires everything;
// the supervisor tree decides what actually runs.
type Pipeline struct {
	Cfg      *config.Config
	Bus      *events.Bus
	Store    *storage.Store
	Alerts   *alerting.Manager
	Capture  *capture.Stage
	Analysis *analysis.Stage
	Reports  *report.Generator
	Orch     *orchestrator.Orchestrator
	Sched    *scheduler.Scheduler
	Health   *orchestrator.HealthMonitor
	Hub      *websocket.Hub
}

// New builds the full component graph from cfg.
func New(cfg *config.Config) (*Pipeline, error) {
	store, err := storage.New(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	bus := events.NewBus()
	alerts := alerting.NewManager(cfg.Alerting, bus)

	source := capture.NewSimulatedSource(1)
	captureStage := capture.NewStage(cfg.Capture, source, store)

	backend, err := buildBackend(cfg.Analysis)
	if err != nil {
		store.Close()
		return nil, err
	}
	analysisStage := analysis.NewStage(cfg.Analysis, backend)

	reports := report.NewGenerator(cfg.Report, cfg.Analysis.HistorySize)
	orch := orchestrator.New(cfg, captureStage, analysisStage, reports, store, alerts, bus)
	sched := scheduler.New(cfg.Scheduler, bus, alerts)
	health := orchestrator.NewHealthMonitor(cfg.Health, alerts,
		captureStage, analysisStage, store, orch)

	return &Pipeline{
		Cfg:      cfg,
		Bus:      bus,
		Store:    store,
		Alerts:   alerts,
		Capture:  captureStage,
		Analysis: analysisStage,
		Reports:  reports,
		Orch:     orch,
		Sched:    sched,
		Health:   health,
		Hub:      websocket.NewHub(),
	}, nil
}

func buildBackend(cfg config.AnalysisConfig) (analysis.Backend, error) {
	switch cfg.Backend {
	case "simulated":
		return analysis.NewBreakerBackend(analysis.NewSimulatedBackend(), cfg.Breaker), nil
	default:
		return nil, models.NewValidationError(fmt.Sprintf("unknown analysis backend %q", cfg.Backend), nil)
	}
}

// Close releases the pipeline's resources: the bus first so consumers stop
// receiving, then the store.
func (p *Pipeline) Close() error {
	busErr := p.Bus.Close()
	storeErr := p.Store.Close()
	if busErr != nil {
		return busErr
	}
	return storeErr
}
