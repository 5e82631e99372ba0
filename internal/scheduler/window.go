// Watchpost - Continuous Sensor Monitoring and Analysis Pipeline
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

// Package scheduler drives the capture cadence: it selects the active
// time-of-day window, fires capture events on the window's interval, and
// tracks consecutive workflow failures. Scheduling and execution are
// decoupled over the event bus; a fire is a published event, never a direct
// call into the pipeline.
package scheduler

import (
	"time"

	"github.com/watchpost/watchpost/internal/config"
)

// Window names for status and metrics labels.
const (
	WindowDay   = "day"
	WindowNight = "night"
)

// inWindow reports whether hour falls inside [start, end). A window whose end
// precedes its start wraps past midnight.
func inWindow(hour, start, end int) bool {
	if start == end {
		return false
	}
	if start < end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}

// IsDay reports whether t falls inside the configured day window.
func IsDay(t time.Time, day config.WindowConfig) bool {
	return inWindow(t.Hour(), day.StartHour, day.EndHour)
}

// currentWindow selects the active window for t. The day window wins when t
// falls inside it; everything else is night. Selection happens at every fire
// so a run crossing a boundary picks up the new cadence at the next tick.
func currentWindow(t time.Time, cfg config.SchedulerConfig) (string, config.WindowConfig) {
	if IsDay(t, cfg.Day) {
		return WindowDay, cfg.Day
	}
	return WindowNight, cfg.Night
}
