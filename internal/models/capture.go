// Watchpost - Continuous Sensor Monitoring and Analysis Pipeline
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package models

import "time"

// SessionStatus is the lifecycle state of a capture session. A session is
// immutable once it reaches a terminal status (Completed, Failed, Cancelled).
type SessionStatus string

const (
	SessionPending    SessionStatus = "pending"
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
	SessionFailed     SessionStatus = "failed"
	SessionCancelled  SessionStatus = "cancelled"
)

// Terminal reports whether the status is final.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionFailed || s == SessionCancelled
}

// CaptureTrigger records what initiated a capture session.
type CaptureTrigger string

const (
	TriggerScheduled CaptureTrigger = "scheduled"
	TriggerManual    CaptureTrigger = "manual"
)

// SessionPerf holds per-session timing figures.
type SessionPerf struct {
	TotalMs   int64 `json:"total_ms"`
	AvgItemMs int64 `json:"avg_item_ms"`
}

// CaptureSession is one execution of the capture phase. Partial-batch success
// is a first-class outcome: any captured > 0 completes the session even when
// individual items failed, with per-item failures recorded in Errors.
type CaptureSession struct {
	ID            string         `json:"id"`
	Trigger       CaptureTrigger `json:"trigger"`
	ScheduledTime time.Time      `json:"scheduled_time"`
	ActualStart   time.Time      `json:"actual_start"`
	CompletedTime time.Time      `json:"completed_time,omitempty"`
	Requested     int            `json:"requested"`
	Captured      int            `json:"captured"`
	Status        SessionStatus  `json:"status"`
	ItemIDs       []string       `json:"item_ids,omitempty"`
	Errors        []string       `json:"errors,omitempty"`
	Perf          SessionPerf    `json:"perf"`
}

// QualityReport is the explainable output of quality assessment. Both the
// composite score and the failing sub-metrics are surfaced; an item is never
// reduced to a bare pass/fail.
type QualityReport struct {
	Sharpness   float64  `json:"sharpness"`
	Noise       float64  `json:"noise"`
	Brightness  float64  `json:"brightness"`
	Contrast    float64  `json:"contrast"`
	Overall     float64  `json:"overall"`
	Issues      []string `json:"issues,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// CapturedItem is a single snapshot produced by the capture stage and owned
// by the storage layer thereafter. Items below the quality floor are retained
// with AnalysisReady=false, never silently dropped.
type CapturedItem struct {
	ID            string            `json:"id"`
	Data          []byte            `json:"data,omitempty"`
	CapturedAt    time.Time         `json:"captured_at"`
	QualityScore  float64           `json:"quality_score"`
	AnalysisReady bool              `json:"analysis_ready"`
	Quality       QualityReport     `json:"quality"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}
