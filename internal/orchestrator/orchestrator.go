// Watchpost - Continuous Sensor Monitoring and Analysis Pipeline
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

// Package orchestrator runs the capture-analyze-report-store workflow as a
// linear state machine. One workflow runs at a time; phase failures abort the
// run, raise a graded alert, and leave the pipeline ready for the next fire.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/watchpost/watchpost/internal/alerting"
	"github.com/watchpost/watchpost/internal/analysis"
	"github.com/watchpost/watchpost/internal/capture"
	"github.com/watchpost/watchpost/internal/config"
	"github.com/watchpost/watchpost/internal/events"
	"github.com/watchpost/watchpost/internal/logging"
	"github.com/watchpost/watchpost/internal/metrics"
	"github.com/watchpost/watchpost/internal/models"
	"github.com/watchpost/watchpost/internal/report"
	"github.com/watchpost/watchpost/internal/storage"
)

const component = "orchestrator"

// Orchestrator coordinates the pipeline stages.
type Orchestrator struct {
	cfg      *config.Config
	capture  *capture.Stage
	analysis *analysis.Stage
	reports  *report.Generator
	store    *storage.Store
	alerts   *alerting.Manager
	bus      *events.Bus

	inFlight atomic.Bool

	mu         sync.Mutex
	phase      models.WorkflowPhase
	history    []*models.WorkflowResult
	failStreak int
}

// New wires the orchestrator. bus and alerts may be nil in tests.
func New(
	cfg *config.Config,
	captureStage *capture.Stage,
	analysisStage *analysis.Stage,
	reports *report.Generator,
	store *storage.Store,
	alerts *alerting.Manager,
	bus *events.Bus,
) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		capture:  captureStage,
		analysis: analysisStage,
		reports:  reports,
		store:    store,
		alerts:   alerts,
		bus:      bus,
		phase:    models.PhaseIdle,
	}
}

// Execute runs one complete workflow. A second call while one is running
// fails fast with ErrBusy; fires are dropped under overlap, never queued.
//
// Phase failures do not return an error: the workflow result records which
// phase failed and why, and the error return is reserved for the busy gate.
func (o *Orchestrator) Execute(ctx context.Context, trigger models.CaptureTrigger, itemCount int, scheduledAt time.Time) (*models.WorkflowResult, error) {
	if !o.inFlight.CompareAndSwap(false, true) {
		return nil, &models.PipelineError{
			Code:        models.ErrCodeBusy,
			Message:     "workflow already in progress",
			Recoverable: true,
		}
	}
	defer o.inFlight.Store(false)

	wf := &models.WorkflowResult{
		ID:        uuid.New().String(),
		Trigger:   trigger,
		StartedAt: time.Now().UTC(),
	}
	logging.Info().
		Str("workflow_id", wf.ID).
		Str("trigger", string(trigger)).
		Int("items", itemCount).
		Msg("workflow started")

	run := o.runPhases(ctx, wf, itemCount, scheduledAt)

	wf.CompletedAt = time.Now().UTC()
	wf.DurationMs = wf.CompletedAt.Sub(wf.StartedAt).Milliseconds()
	wf.Success = run == nil
	o.setPhase(models.PhaseIdle)

	o.finish(wf, run)
	return wf, nil
}

// phaseError carries a failed phase and its classified cause.
type phaseError struct {
	phase models.WorkflowPhase
	err   *models.PipelineError
}

// runPhases executes the four phases in order, returning the failure that
// aborted the run or nil on success.
func (o *Orchestrator) runPhases(ctx context.Context, wf *models.WorkflowResult, itemCount int, scheduledAt time.Time) *phaseError {
	// Capture.
	o.setPhase(models.PhaseCapturing)
	var batch *capture.BatchResult
	fail := o.runPhase(wf, models.PhaseCapturing, func() *models.PipelineError {
		var err error
		batch, err = o.capture.CaptureBatch(ctx, itemCount, wf.Trigger, scheduledAt)
		if err != nil {
			return models.AsPipelineError(err)
		}
		wf.SessionID = batch.Session.ID
		if batch.Session.Status == models.SessionCancelled {
			return models.NewTransientError("capture cancelled before completion", ctx.Err())
		}
		if batch.Session.Captured == 0 {
			return models.NewTransientError(
				fmt.Sprintf("no items captured: %v", batch.Session.Errors), nil)
		}
		return nil
	})
	if fail != nil {
		return fail
	}

	// Analysis runs on the items that passed the quality gate.
	o.setPhase(models.PhaseAnalyzing)
	var result *models.AnalysisResult
	fail = o.runPhase(wf, models.PhaseAnalyzing, func() *models.PipelineError {
		ready := readyItems(batch.Items)
		if len(ready) == 0 {
			return models.NewTransientError("no captured item passed the quality gate", nil)
		}
		var err error
		result, err = o.analysis.Analyze(ctx, &models.AnalysisRequest{
			Items:   ready,
			Depth:   models.AnalysisDepth(o.cfg.Analysis.Depth),
			Options: models.OutputOptions{Concise: true, Detailed: true},
		})
		if err != nil {
			return models.AsPipelineError(err)
		}
		wf.ResultID = result.ID
		if !result.Success {
			return result.Error
		}
		return nil
	})
	if fail != nil {
		return fail
	}

	// Reporting.
	o.setPhase(models.PhaseReporting)
	var detailed *models.DetailedReport
	fail = o.runPhase(wf, models.PhaseReporting, func() *models.PipelineError {
		detailed = o.reports.Detailed(result, o.analysis.Previous(result.ID))
		wf.ReportID = detailed.ID
		return nil
	})
	if fail != nil {
		return fail
	}

	// Storing.
	o.setPhase(models.PhaseStoring)
	return o.runPhase(wf, models.PhaseStoring, func() *models.PipelineError {
		if err := o.persist(ctx, wf, detailed); err != nil {
			return models.AsPipelineError(err)
		}
		return nil
	})
}

// runPhase runs one phase body, records its PhaseResult on the workflow, and
// converts a failure into the phaseError that aborts the run.
func (o *Orchestrator) runPhase(wf *models.WorkflowResult, phase models.WorkflowPhase, body func() *models.PipelineError) *phaseError {
	start := time.Now()
	perr := body()

	pr := models.PhaseResult{
		Phase:      phase,
		Success:    perr == nil,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if perr != nil {
		pr.Error = perr.Message
		wf.FailedPhase = phase
		metrics.WorkflowPhaseFailures.WithLabelValues(string(phase)).Inc()
	}
	wf.Phases = append(wf.Phases, pr)

	if perr != nil {
		return &phaseError{phase: phase, err: perr}
	}
	return nil
}

// persist writes the detailed report and the workflow record. The report
// write is the one that matters; a workflow-record failure is logged, not
// fatal, so a full store degrades to losing bookkeeping before losing
// reports.
func (o *Orchestrator) persist(ctx context.Context, wf *models.WorkflowResult, detailed *models.DetailedReport) error {
	payload, err := json.Marshal(detailed)
	if err != nil {
		return models.NewUnrecoverableError("encoding report for storage", err)
	}
	rec := &models.StorageRecord{
		Key:            "reports/" + detailed.ID,
		Payload:        payload,
		Category:       models.CategoryReport,
		CriticalLinked: detailed.AlertLevel == models.AlertLevelCritical,
	}
	if err := o.store.Put(ctx, rec); err != nil {
		return err
	}

	wfPayload, err := json.Marshal(wf)
	if err != nil {
		return models.NewUnrecoverableError("encoding workflow record", err)
	}
	wfRec := &models.StorageRecord{
		Key:      "workflows/" + wf.ID,
		Payload:  wfPayload,
		Category: models.CategorySystem,
	}
	if err := o.store.Put(ctx, wfRec); err != nil {
		logging.Err(err).Str("workflow_id", wf.ID).Msg("workflow record not persisted")
	}
	return nil
}

// finish records the outcome, grades alerts, and notifies observers.
func (o *Orchestrator) finish(wf *models.WorkflowResult, run *phaseError) {
	o.mu.Lock()
	if wf.Success {
		o.failStreak = 0
	} else {
		o.failStreak++
	}
	streak := o.failStreak
	o.history = append(o.history, wf)
	if len(o.history) > o.cfg.Analysis.HistorySize {
		o.history = o.history[1:]
	}
	o.mu.Unlock()

	outcome := "success"
	if !wf.Success {
		outcome = "failure"
	}
	metrics.RecordWorkflow(outcome, time.Duration(wf.DurationMs)*time.Millisecond)

	if wf.Success {
		logging.Info().
			Str("workflow_id", wf.ID).
			Int64("duration_ms", wf.DurationMs).
			Msg("workflow completed")
		if o.alerts != nil {
			o.alerts.ResolveWarnings(component)
		}
	} else {
		logging.Warn().
			Str("workflow_id", wf.ID).
			Str("failed_phase", string(wf.FailedPhase)).
			Str("error", run.err.Message).
			Msg("workflow failed")
		o.raiseFailureAlerts(wf, run, streak)
	}

	if o.bus != nil {
		event := events.WorkflowEvent{
			WorkflowID:  wf.ID,
			Success:     wf.Success,
			FailedPhase: string(wf.FailedPhase),
			DurationMs:  wf.DurationMs,
		}
		if err := o.bus.Publish(events.TopicWorkflow, event); err != nil {
			logging.Err(err).Msg("failed to publish workflow event")
		}
	}
}

// raiseFailureAlerts grades the failure: recoverable causes warn, permanent
// causes are critical, and a failure streak escalates to error regardless of
// cause.
func (o *Orchestrator) raiseFailureAlerts(wf *models.WorkflowResult, run *phaseError, streak int) {
	if o.alerts == nil {
		return
	}

	severity := models.SeverityWarning
	if !run.err.Recoverable {
		severity = models.SeverityCritical
	}
	o.alerts.Raise(severity, component,
		fmt.Sprintf("workflow failed in %s phase: %s", run.phase, run.err.Message), wf.ID)

	if streak == o.cfg.Health.FailureStreak {
		o.alerts.Raise(models.SeverityError, component,
			fmt.Sprintf("%d consecutive workflow failures", streak), wf.ID)
	}
}

func (o *Orchestrator) setPhase(p models.WorkflowPhase) {
	o.mu.Lock()
	o.phase = p
	o.mu.Unlock()
}

// Phase returns the currently executing phase, PhaseIdle between workflows.
func (o *Orchestrator) Phase() models.WorkflowPhase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

// Recent returns up to n workflow results, newest first.
func (o *Orchestrator) Recent(n int) []*models.WorkflowResult {
	o.mu.Lock()
	defer o.mu.Unlock()

	if n > len(o.history) {
		n = len(o.history)
	}
	out := make([]*models.WorkflowResult, 0, n)
	for i := len(o.history) - 1; i >= len(o.history)-n; i-- {
		out = append(out, o.history[i])
	}
	return out
}

// FailStreak returns the current consecutive-failure count.
func (o *Orchestrator) FailStreak() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.failStreak
}

// Health reports workflow success rate over retained history.
func (o *Orchestrator) Health() models.ComponentHealth {
	o.mu.Lock()
	total := len(o.history)
	var ok int
	for _, wf := range o.history {
		if wf.Success {
			ok++
		}
	}
	o.mu.Unlock()

	score := 1.0
	if total > 0 {
		score = float64(ok) / float64(total)
	}
	metrics.SystemHealthScore.WithLabelValues(component).Set(score)
	return models.ComponentHealth{Component: component, Score: score}
}

func readyItems(items []models.CapturedItem) []models.CapturedItem {
	ready := make([]models.CapturedItem, 0, len(items))
	for _, item := range items {
		if item.AnalysisReady {
			ready = append(ready, item)
		}
	}
	return ready
}
