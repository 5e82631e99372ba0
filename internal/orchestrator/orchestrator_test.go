// Watchpost - Continuous Sensor Monitoring and Analysis Pipeline
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/watchpost/watchpost/internal/alerting"
	"github.com/watchpost/watchpost/internal/analysis"
	"github.com/watchpost/watchpost/internal/capture"
	"github.com/watchpost/watchpost/internal/config"
	"github.com/watchpost/watchpost/internal/models"
	"github.com/watchpost/watchpost/internal/report"
	"github.com/watchpost/watchpost/internal/storage"
)

// goodSource delivers frames that pass the default quality gate.
type goodSource struct{}

func (goodSource) Acquire(ctx context.Context) (*capture.RawFrame, error) {
	data := make([]byte, 4096)
	for i := range data {
		data[i] = byte((i * 16) % 256)
	}
	return &capture.RawFrame{Data: data, Format: "gray8"}, nil
}

// deadSource always fails acquisition.
type deadSource struct{}

func (deadSource) Acquire(ctx context.Context) (*capture.RawFrame, error) {
	return nil, errors.New("no signal")
}

// failingBackend reports an unrecoverable analysis failure.
type failingBackend struct{}

func (failingBackend) Infer(ctx context.Context, req analysis.BackendRequest) (*analysis.BackendResponse, error) {
	return nil, &analysis.PermanentError{Reason: "unsupported input"}
}

type fixture struct {
	orch   *Orchestrator
	alerts *alerting.Manager
	store  *storage.Store
}

func newFixture(t *testing.T, source capture.SensorSource, backend analysis.Backend) *fixture {
	t.Helper()

	cfg := config.Default()
	cfg.Capture.RetryAttempts = 0
	cfg.Capture.RetryDelay = time.Millisecond
	cfg.Capture.ItemSpacing = time.Millisecond
	cfg.Capture.AutoStore = false
	cfg.Storage.InMemory = true

	store, err := storage.New(cfg.Storage)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	alerts := alerting.NewManager(cfg.Alerting, nil)
	captureStage := capture.NewStage(cfg.Capture, source, store)
	analysisStage := analysis.NewStage(cfg.Analysis, backend)
	reports := report.NewGenerator(cfg.Report, cfg.Analysis.HistorySize)

	return &fixture{
		orch:   New(cfg, captureStage, analysisStage, reports, store, alerts, nil),
		alerts: alerts,
		store:  store,
	}
}

func TestExecuteFullWorkflow(t *testing.T) {
	f := newFixture(t, goodSource{}, analysis.NewSimulatedBackend())

	wf, err := f.orch.Execute(context.Background(), models.TriggerScheduled, 2, time.Now())
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}

	if !wf.Success {
		t.Fatalf("workflow should succeed: failed phase %s, phases %+v", wf.FailedPhase, wf.Phases)
	}
	if len(wf.Phases) != 4 {
		t.Errorf("expected 4 phases, got %d", len(wf.Phases))
	}
	wantOrder := []models.WorkflowPhase{
		models.PhaseCapturing, models.PhaseAnalyzing, models.PhaseReporting, models.PhaseStoring,
	}
	for i, want := range wantOrder {
		if wf.Phases[i].Phase != want || !wf.Phases[i].Success {
			t.Errorf("phase %d = %+v, want successful %s", i, wf.Phases[i], want)
		}
	}
	if wf.SessionID == "" || wf.ResultID == "" || wf.ReportID == "" {
		t.Errorf("workflow should link all artifacts: %+v", wf)
	}

	// The detailed report was persisted.
	rec, err := f.store.Get(context.Background(), "reports/"+wf.ReportID)
	if err != nil {
		t.Fatalf("report not persisted: %v", err)
	}
	if rec.Category != models.CategoryReport {
		t.Errorf("report stored under category %s", rec.Category)
	}
	if _, err := f.store.Get(context.Background(), "workflows/"+wf.ID); err != nil {
		t.Errorf("workflow record not persisted: %v", err)
	}

	if f.orch.Phase() != models.PhaseIdle {
		t.Errorf("orchestrator should return to idle, got %s", f.orch.Phase())
	}
}

func TestExecuteBusyGate(t *testing.T) {
	f := newFixture(t, goodSource{}, analysis.NewSimulatedBackend())

	f.orch.inFlight.Store(true)
	_, err := f.orch.Execute(context.Background(), models.TriggerManual, 1, time.Now())
	if !errors.Is(err, models.ErrBusy) {
		t.Fatalf("expected ErrBusy while a workflow runs, got %v", err)
	}

	f.orch.inFlight.Store(false)
	if _, err := f.orch.Execute(context.Background(), models.TriggerManual, 1, time.Now()); err != nil {
		t.Errorf("Execute() after release failed: %v", err)
	}
}

func TestExecuteCaptureFailure(t *testing.T) {
	f := newFixture(t, deadSource{}, analysis.NewSimulatedBackend())

	wf, err := f.orch.Execute(context.Background(), models.TriggerScheduled, 2, time.Now())
	if err != nil {
		t.Fatal(err)
	}

	if wf.Success || wf.FailedPhase != models.PhaseCapturing {
		t.Fatalf("expected capture-phase failure, got success=%v phase=%s", wf.Success, wf.FailedPhase)
	}
	// Later phases never ran.
	if len(wf.Phases) != 1 {
		t.Errorf("expected 1 phase result, got %d", len(wf.Phases))
	}

	// A recoverable failure raises a warning, not a critical.
	active := f.alerts.Active()
	if len(active) != 1 || active[0].Severity != models.SeverityWarning {
		t.Fatalf("expected one warning alert, got %+v", active)
	}
	if active[0].WorkflowID != wf.ID {
		t.Error("alert should link the failed workflow")
	}
}

func TestExecuteAnalysisPermanentFailure(t *testing.T) {
	f := newFixture(t, goodSource{}, failingBackend{})

	wf, err := f.orch.Execute(context.Background(), models.TriggerScheduled, 1, time.Now())
	if err != nil {
		t.Fatal(err)
	}

	if wf.Success || wf.FailedPhase != models.PhaseAnalyzing {
		t.Fatalf("expected analyzing-phase failure, got success=%v phase=%s", wf.Success, wf.FailedPhase)
	}

	// Unrecoverable failures grade critical.
	active := f.alerts.Active()
	if len(active) != 1 || active[0].Severity != models.SeverityCritical {
		t.Fatalf("expected one critical alert, got %+v", active)
	}
}

func TestFailureStreakEscalates(t *testing.T) {
	f := newFixture(t, deadSource{}, analysis.NewSimulatedBackend())

	// Health.FailureStreak defaults to 3.
	for i := 0; i < 3; i++ {
		if _, err := f.orch.Execute(context.Background(), models.TriggerScheduled, 1, time.Now()); err != nil {
			t.Fatal(err)
		}
	}

	var escalated int
	for _, a := range f.alerts.Active() {
		if a.Severity == models.SeverityError {
			escalated++
		}
	}
	if escalated != 1 {
		t.Errorf("expected exactly one streak-escalation alert, got %d", escalated)
	}
	if f.orch.FailStreak() != 3 {
		t.Errorf("expected streak 3, got %d", f.orch.FailStreak())
	}
}

func TestSuccessResolvesWarningsAndResetsStreak(t *testing.T) {
	f := newFixture(t, goodSource{}, analysis.NewSimulatedBackend())

	f.alerts.Raise(models.SeverityWarning, component, "previous transient failure", "")
	f.orch.mu.Lock()
	f.orch.failStreak = 2
	f.orch.mu.Unlock()

	wf, err := f.orch.Execute(context.Background(), models.TriggerScheduled, 1, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if !wf.Success {
		t.Fatalf("workflow should succeed: %+v", wf)
	}

	if f.orch.FailStreak() != 0 {
		t.Errorf("success must reset the streak, got %d", f.orch.FailStreak())
	}
	for _, a := range f.alerts.Active() {
		if a.Severity == models.SeverityWarning && a.Component == component {
			t.Error("orchestrator warnings should auto-resolve on success")
		}
	}
}

func TestRecentNewestFirstAndBounded(t *testing.T) {
	f := newFixture(t, goodSource{}, analysis.NewSimulatedBackend())

	var ids []string
	for i := 0; i < 3; i++ {
		wf, err := f.orch.Execute(context.Background(), models.TriggerScheduled, 1, time.Now())
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, wf.ID)
	}

	recent := f.orch.Recent(2)
	if len(recent) != 2 {
		t.Fatalf("expected 2 results, got %d", len(recent))
	}
	if recent[0].ID != ids[2] || recent[1].ID != ids[1] {
		t.Error("recent workflows should be newest first")
	}
}

func TestHealthTracksOutcomes(t *testing.T) {
	f := newFixture(t, deadSource{}, analysis.NewSimulatedBackend())

	if h := f.orch.Health(); h.Score != 1.0 {
		t.Errorf("expected perfect health with no history, got %.2f", h.Score)
	}
	if _, err := f.orch.Execute(context.Background(), models.TriggerScheduled, 1, time.Now()); err != nil {
		t.Fatal(err)
	}
	if h := f.orch.Health(); h.Score != 0 {
		t.Errorf("expected 0 health after one failure, got %.2f", h.Score)
	}
}
