// Watchpost - Continuous Sensor Monitoring and Analysis Pipeline
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package models

import "time"

// WorkflowPhase names a step in the orchestrator's state machine.
type WorkflowPhase string

const (
	PhaseIdle      WorkflowPhase = "idle"
	PhaseCapturing WorkflowPhase = "capturing"
	PhaseAnalyzing WorkflowPhase = "analyzing"
	PhaseReporting WorkflowPhase = "reporting"
	PhaseStoring   WorkflowPhase = "storing"
	PhaseCompleted WorkflowPhase = "completed"
	PhaseFailed    WorkflowPhase = "failed"
)

// PhaseResult records the outcome and timing of one workflow phase.
type PhaseResult struct {
	Phase      WorkflowPhase `json:"phase"`
	Success    bool          `json:"success"`
	Error      string        `json:"error,omitempty"`
	DurationMs int64         `json:"duration_ms"`
}

// WorkflowResult aggregates one orchestrator execution. Success means all
// four phases succeeded; on failure FailedPhase names exactly which phase
// aborted the workflow and why.
type WorkflowResult struct {
	ID          string         `json:"id"`
	Trigger     CaptureTrigger `json:"trigger"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt time.Time      `json:"completed_at"`
	Phases      []PhaseResult  `json:"phases"`
	FailedPhase WorkflowPhase  `json:"failed_phase,omitempty"`
	Success     bool           `json:"success"`
	DurationMs  int64          `json:"duration_ms"`

	SessionID string `json:"session_id,omitempty"`
	ResultID  string `json:"result_id,omitempty"`
	ReportID  string `json:"report_id,omitempty"`
}

// ComponentHealth is one component's self-reported health sample.
type ComponentHealth struct {
	Component string  `json:"component"`
	Score     float64 `json:"score"`
	Detail    string  `json:"detail,omitempty"`
}

// SchedulerStatus is the read-only view of scheduler state exposed to the
// presentation layer.
type SchedulerStatus struct {
	Running             bool       `json:"running"`
	PausedUntil         *time.Time `json:"paused_until,omitempty"`
	NextFireTime        *time.Time `json:"next_fire_time,omitempty"`
	CurrentWindow       string     `json:"current_window"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	ManualOverride      bool       `json:"manual_override"`
}
