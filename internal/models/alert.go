// Watchpost - Continuous Sensor Monitoring and Analysis Pipeline
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package models

import "time"

// Severity grades operational alerts.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// SystemAlert is raised by any component on anomaly detection. Alerts are
// immutable except for the Acknowledged and Resolved flags, and are pruned by
// age rather than count.
type SystemAlert struct {
	ID           string    `json:"id"`
	Severity     Severity  `json:"severity"`
	Component    string    `json:"component"`
	Message      string    `json:"message"`
	Timestamp    time.Time `json:"timestamp"`
	Acknowledged bool      `json:"acknowledged"`

	// Resolved marks warning alerts auto-resolved by a subsequent
	// successful workflow. Critical alerts require acknowledgment and are
	// never auto-resolved.
	Resolved bool `json:"resolved"`

	// WorkflowID links the alert to the workflow execution that raised it,
	// when one exists.
	WorkflowID string `json:"workflow_id,omitempty"`
}
