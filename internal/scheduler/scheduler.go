// Watchpost - Continuous Sensor Monitoring and Analysis Pipeline
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/watchpost/watchpost/internal/alerting"
	"github.com/watchpost/watchpost/internal/config"
	"github.com/watchpost/watchpost/internal/events"
	"github.com/watchpost/watchpost/internal/logging"
	"github.com/watchpost/watchpost/internal/metrics"
	"github.com/watchpost/watchpost/internal/models"
)

// Scheduler is the adaptive capture scheduler. It runs as a supervised
// service: Serve blocks until the context is cancelled, firing capture events
// on the active window's interval.
//
// Pausing suppresses fires rather than queueing them; a fire that lands
// inside a pause is skipped for good. The loop never stops on workflow
// failures; it raises an alert at the configured streak and keeps firing.
type Scheduler struct {
	cfg    config.SchedulerConfig
	bus    *events.Bus
	alerts *alerting.Manager

	mu          sync.Mutex
	running     bool
	pausedUntil time.Time
	nextFire    time.Time
	failures    int

	nowFunc func() time.Time
}

// New creates a scheduler publishing on bus and alerting through alerts.
func New(cfg config.SchedulerConfig, bus *events.Bus, alerts *alerting.Manager) *Scheduler {
	return &Scheduler{
		cfg:     cfg,
		bus:     bus,
		alerts:  alerts,
		nowFunc: time.Now,
	}
}

// String names the service in supervisor logs.
func (s *Scheduler) String() string { return "scheduler" }

// Serve runs the fire loop until ctx is cancelled. It satisfies
// suture.Service.
func (s *Scheduler) Serve(ctx context.Context) error {
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	for {
		now := s.nowFunc()
		window, win := currentWindow(now, s.cfg)

		s.mu.Lock()
		s.nextFire = now.Add(win.Interval)
		s.mu.Unlock()

		logging.Debug().
			Str("window", window).
			Dur("interval", win.Interval).
			Msg("scheduler sleeping until next fire")

		timer := time.NewTimer(win.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			logging.Info().Msg("scheduler stopping")
			return ctx.Err()
		case <-timer.C:
			s.fire(s.nowFunc())
		}
	}
}

// fire publishes one scheduled capture event, unless paused or the active
// window is disabled. The window is re-evaluated at fire time, not at
// schedule time, so a tick that crosses a boundary uses the new window's
// batch size.
func (s *Scheduler) fire(now time.Time) {
	window, win := currentWindow(now, s.cfg)

	s.mu.Lock()
	paused := now.Before(s.pausedUntil)
	s.mu.Unlock()

	if paused {
		metrics.SchedulerSuppressed.Inc()
		logging.Info().Str("window", window).Msg("fire suppressed while paused")
		return
	}
	if !win.Enabled {
		metrics.SchedulerSuppressed.Inc()
		logging.Debug().Str("window", window).Msg("fire suppressed, window disabled")
		return
	}

	metrics.SchedulerFires.WithLabelValues(window).Inc()
	event := events.FireEvent{
		Window:      window,
		ItemCount:   win.ItemsPerBatch,
		ScheduledAt: now.UTC(),
	}
	if err := s.bus.Publish(events.TopicCaptureFire, event); err != nil {
		logging.Err(err).Msg("failed to publish fire event")
	}
}

// TriggerManual fires one capture immediately, outside the schedule. It
// bypasses the pause state but is rejected entirely when manual override is
// disabled.
func (s *Scheduler) TriggerManual() error {
	if !s.cfg.ManualOverrideEnabled {
		return models.ErrManualOverrideDisabled
	}

	now := s.nowFunc()
	window, win := currentWindow(now, s.cfg)

	metrics.SchedulerFires.WithLabelValues(window).Inc()
	logging.Info().Str("window", window).Msg("manual capture triggered")
	return s.bus.Publish(events.TopicCaptureFire, events.FireEvent{
		Window:      window,
		ItemCount:   win.ItemsPerBatch,
		ScheduledAt: now.UTC(),
		Manual:      true,
	})
}

// Pause suppresses scheduled fires for d. Pausing while already paused
// replaces the previous deadline.
func (s *Scheduler) Pause(d time.Duration) {
	until := s.nowFunc().Add(d)
	s.mu.Lock()
	s.pausedUntil = until
	s.mu.Unlock()
	logging.Info().Time("until", until).Msg("scheduler paused")
}

// Resume clears any active pause. Resuming an unpaused scheduler is a no-op.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	s.pausedUntil = time.Time{}
	s.mu.Unlock()
	logging.Info().Msg("scheduler resumed")
}

// RecordFireResult feeds workflow outcomes back into the failure streak. A
// success resets the streak; hitting the configured threshold raises a
// warning alert exactly once per streak.
func (s *Scheduler) RecordFireResult(success bool, workflowID string) {
	s.mu.Lock()
	if success {
		s.failures = 0
		s.mu.Unlock()
		return
	}
	s.failures++
	failures := s.failures
	s.mu.Unlock()

	if failures == s.cfg.FailureAlertThreshold && s.alerts != nil {
		s.alerts.Raise(models.SeverityWarning, "scheduler",
			"consecutive capture workflows failed; the schedule continues but needs attention",
			workflowID)
	}
}

// Status returns the read-only scheduler state for the API.
func (s *Scheduler) Status() models.SchedulerStatus {
	now := s.nowFunc()
	window, _ := currentWindow(now, s.cfg)

	s.mu.Lock()
	defer s.mu.Unlock()

	status := models.SchedulerStatus{
		Running:             s.running,
		CurrentWindow:       window,
		ConsecutiveFailures: s.failures,
		ManualOverride:      s.cfg.ManualOverrideEnabled,
	}
	if now.Before(s.pausedUntil) {
		paused := s.pausedUntil
		status.PausedUntil = &paused
	}
	if s.running && !s.nextFire.IsZero() {
		next := s.nextFire
		status.NextFireTime = &next
	}
	return status
}
