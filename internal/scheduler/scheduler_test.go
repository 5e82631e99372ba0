// Watchpost - Continuous Sensor Monitoring and Analysis Pipeline
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/watchpost/watchpost/internal/alerting"
	"github.com/watchpost/watchpost/internal/config"
	"github.com/watchpost/watchpost/internal/events"
	"github.com/watchpost/watchpost/internal/models"
)

func TestWindowSelection(t *testing.T) {
	cfg := config.Default().Scheduler // day 7-19, night 19-7

	tests := []struct {
		hour int
		want string
	}{
		{0, WindowNight},
		{3, WindowNight},
		{6, WindowNight},
		{7, WindowDay},
		{10, WindowDay},
		{18, WindowDay},
		{19, WindowNight},
		{20, WindowNight},
		{23, WindowNight},
	}
	for _, tt := range tests {
		at := time.Date(2026, 8, 29, tt.hour, 30, 0, 0, time.UTC)
		window, win := currentWindow(at, cfg)
		if window != tt.want {
			t.Errorf("hour %d: got %s, want %s", tt.hour, window, tt.want)
		}
		if tt.want == WindowDay && win.ItemsPerBatch != 3 {
			t.Errorf("hour %d: day window should carry 3 items, got %d", tt.hour, win.ItemsPerBatch)
		}
		if tt.want == WindowNight && win.ItemsPerBatch != 1 {
			t.Errorf("hour %d: night window should carry 1 item, got %d", tt.hour, win.ItemsPerBatch)
		}
	}
}

func TestInWindowEdgeCases(t *testing.T) {
	// A degenerate window (start == end) matches nothing.
	for hour := 0; hour < 24; hour++ {
		if inWindow(hour, 9, 9) {
			t.Errorf("zero-width window must not match hour %d", hour)
		}
	}

	// Midnight wrap: 22-4 covers 22,23,0,1,2,3.
	covered := map[int]bool{22: true, 23: true, 0: true, 1: true, 2: true, 3: true}
	for hour := 0; hour < 24; hour++ {
		if inWindow(hour, 22, 4) != covered[hour] {
			t.Errorf("wrap window 22-4 at hour %d: got %v", hour, !covered[hour])
		}
	}
}

func TestFirePublishesEvent(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := bus.Subscribe(ctx, events.TopicCaptureFire)
	if err != nil {
		t.Fatal(err)
	}

	s := New(config.Default().Scheduler, bus, nil)
	s.fire(time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC))

	select {
	case msg := <-ch:
		var fire events.FireEvent
		if err := events.Decode(msg, &fire); err != nil {
			t.Fatal(err)
		}
		msg.Ack()
		if fire.Window != WindowDay || fire.ItemCount != 3 || fire.Manual {
			t.Errorf("unexpected fire event: %+v", fire)
		}
	case <-time.After(time.Second):
		t.Fatal("no fire event published")
	}
}

func TestPauseSuppressesFires(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := bus.Subscribe(ctx, events.TopicCaptureFire)
	if err != nil {
		t.Fatal(err)
	}

	s := New(config.Default().Scheduler, bus, nil)
	s.Pause(time.Hour)
	s.fire(time.Now())

	select {
	case <-ch:
		t.Fatal("fire during pause must be suppressed, not queued")
	case <-time.After(50 * time.Millisecond):
	}

	// Resume restores firing; the suppressed fire is not replayed.
	s.Resume()
	s.fire(time.Now())
	select {
	case msg := <-ch:
		msg.Ack()
	case <-time.After(time.Second):
		t.Fatal("fire after resume should be published")
	}
}

func TestDisabledWindowSuppressesFires(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	cfg := config.Default().Scheduler
	cfg.Night.Enabled = false

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := bus.Subscribe(ctx, events.TopicCaptureFire)
	if err != nil {
		t.Fatal(err)
	}

	s := New(cfg, bus, nil)
	s.fire(time.Date(2026, 8, 29, 3, 0, 0, 0, time.UTC)) // night

	select {
	case <-ch:
		t.Fatal("disabled window must not fire")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTriggerManual(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := bus.Subscribe(ctx, events.TopicCaptureFire)
	if err != nil {
		t.Fatal(err)
	}

	s := New(config.Default().Scheduler, bus, nil)
	// Manual triggers bypass the pause.
	s.Pause(time.Hour)
	if err := s.TriggerManual(); err != nil {
		t.Fatalf("TriggerManual() failed: %v", err)
	}

	select {
	case msg := <-ch:
		var fire events.FireEvent
		if err := events.Decode(msg, &fire); err != nil {
			t.Fatal(err)
		}
		msg.Ack()
		if !fire.Manual {
			t.Error("manual fire should be flagged manual")
		}
	case <-time.After(time.Second):
		t.Fatal("manual trigger published nothing")
	}
}

func TestTriggerManualDisabled(t *testing.T) {
	cfg := config.Default().Scheduler
	cfg.ManualOverrideEnabled = false

	s := New(cfg, events.NewBus(), nil)
	if err := s.TriggerManual(); !errors.Is(err, models.ErrManualOverrideDisabled) {
		t.Errorf("expected ErrManualOverrideDisabled, got %v", err)
	}
}

func TestFailureStreakRaisesOneAlert(t *testing.T) {
	alerts := alerting.NewManager(config.Default().Alerting, nil)
	cfg := config.Default().Scheduler // threshold 3

	s := New(cfg, events.NewBus(), alerts)
	for i := 0; i < 5; i++ {
		s.RecordFireResult(false, "wf-x")
	}

	// One alert at the threshold, not one per failure past it.
	if got := len(alerts.Active()); got != 1 {
		t.Fatalf("expected exactly 1 alert for the streak, got %d", got)
	}
	if s.Status().ConsecutiveFailures != 5 {
		t.Errorf("expected streak of 5, got %d", s.Status().ConsecutiveFailures)
	}

	// Success resets; a new streak alerts again.
	s.RecordFireResult(true, "wf-y")
	if s.Status().ConsecutiveFailures != 0 {
		t.Error("success must reset the streak")
	}
	for i := 0; i < 3; i++ {
		s.RecordFireResult(false, "wf-z")
	}
	if got := len(alerts.Active()); got != 2 {
		t.Errorf("expected a second alert for the new streak, got %d", got)
	}
}

func TestServeFiresAndStops(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	cfg := config.Default().Scheduler
	cfg.Day.Interval = 10 * time.Millisecond
	cfg.Night.Interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := bus.Subscribe(ctx, events.TopicCaptureFire)
	if err != nil {
		t.Fatal(err)
	}

	s := New(cfg, bus, nil)
	serveCtx, stopServe := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(serveCtx) }()

	select {
	case msg := <-ch:
		msg.Ack()
	case <-time.After(time.Second):
		t.Fatal("serve loop never fired")
	}
	if !s.Status().Running {
		t.Error("scheduler should report running while serving")
	}

	stopServe()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("serve loop did not stop on cancel")
	}
	if s.Status().Running {
		t.Error("scheduler should report stopped after serve returns")
	}
}

func TestStatusPausedUntil(t *testing.T) {
	s := New(config.Default().Scheduler, events.NewBus(), nil)

	if s.Status().PausedUntil != nil {
		t.Error("unpaused scheduler must report nil PausedUntil")
	}
	s.Pause(time.Hour)
	if s.Status().PausedUntil == nil {
		t.Error("paused scheduler must report the deadline")
	}
	s.Resume()
	if s.Status().PausedUntil != nil {
		t.Error("resumed scheduler must report nil PausedUntil")
	}
}
