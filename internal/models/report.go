// Watchpost - Continuous Sensor Monitoring and Analysis Pipeline
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package models

import "time"

// AlertLevel grades a report's urgency for human readers. Distinct from alert
// Severity, which grades operational alerts.
type AlertLevel string

const (
	AlertLevelNormal   AlertLevel = "normal"
	AlertLevelWarning  AlertLevel = "warning"
	AlertLevelCritical AlertLevel = "critical"
)

// ConciseReport is the short human-facing summary of one analysis result.
// Reports are derived and immutable; they reference their source result by ID
// and never duplicate analysis state.
type ConciseReport struct {
	ID          string     `json:"id"`
	ResultID    string     `json:"result_id"`
	Summary     string     `json:"summary"`
	AlertLevel  AlertLevel `json:"alert_level"`
	Confidence  float64    `json:"confidence"`
	KeyFindings []string   `json:"key_findings,omitempty"`
	NextAction  string     `json:"next_action,omitempty"`
	GeneratedAt time.Time  `json:"generated_at"`
}

// Trends compares a result against prior history. ComparisonToPrevious is
// explicitly null when no history exists; it is never omitted or fabricated.
type Trends struct {
	ComparisonToPrevious *string  `json:"comparison_to_previous"`
	ConfidenceDelta      *float64 `json:"confidence_delta"`
}

// DetailedReport is the superset report assembled from the same analysis
// result plus optional historical comparison.
type DetailedReport struct {
	ConciseReport

	ExecutiveSummary string   `json:"executive_summary"`
	BehaviorPatterns []string `json:"behavior_patterns,omitempty"`
	Trends           Trends   `json:"trends"`
	RawData          string   `json:"raw_data,omitempty"`
}
