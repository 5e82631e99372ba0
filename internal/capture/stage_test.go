// Watchpost - Continuous Sensor Monitoring and Analysis Pipeline
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package capture

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/watchpost/watchpost/internal/config"
	"github.com/watchpost/watchpost/internal/models"
)

// scriptedSource drives CaptureBatch tests: acquire outcomes are decided by
// a function of the 1-based call counter.
type scriptedSource struct {
	calls   int
	outcome func(call int) (*RawFrame, error)
}

func (s *scriptedSource) Acquire(ctx context.Context) (*RawFrame, error) {
	s.calls++
	return s.outcome(s.calls)
}

func fastCaptureConfig() config.CaptureConfig {
	cfg := config.Default().Capture
	cfg.RetryAttempts = 1
	cfg.RetryDelay = time.Millisecond
	cfg.ItemSpacing = time.Millisecond
	cfg.AutoStore = false
	return cfg
}

func TestCaptureBatchAllSucceed(t *testing.T) {
	src := &scriptedSource{outcome: func(int) (*RawFrame, error) { return rampFrame(), nil }}
	stage := NewStage(fastCaptureConfig(), src, nil)

	result, err := stage.CaptureBatch(context.Background(), 3, models.TriggerScheduled, time.Now())
	if err != nil {
		t.Fatalf("CaptureBatch() failed: %v", err)
	}

	session := result.Session
	if session.Status != models.SessionCompleted {
		t.Errorf("expected completed, got %s", session.Status)
	}
	if session.Captured != 3 || len(result.Items) != 3 {
		t.Errorf("expected 3 items, got captured=%d items=%d", session.Captured, len(result.Items))
	}
	if len(session.Errors) != 0 {
		t.Errorf("expected no errors, got %v", session.Errors)
	}
	if len(session.ItemIDs) != 3 {
		t.Errorf("expected 3 item ids, got %d", len(session.ItemIDs))
	}
	for _, item := range result.Items {
		if !item.AnalysisReady {
			t.Errorf("ramp frames should be analysis-ready, item %s was not", item.ID)
		}
	}
}

func TestCaptureBatchPartialFailure(t *testing.T) {
	// Item 2 fails on both its attempts (calls 2 and 3 with one retry);
	// items 1 and 3 succeed. Partial success completes the session.
	src := &scriptedSource{outcome: func(call int) (*RawFrame, error) {
		if call == 2 || call == 3 {
			return nil, errors.New("device busy")
		}
		return rampFrame(), nil
	}}
	stage := NewStage(fastCaptureConfig(), src, nil)

	result, err := stage.CaptureBatch(context.Background(), 3, models.TriggerManual, time.Now())
	if err != nil {
		t.Fatalf("CaptureBatch() failed: %v", err)
	}

	session := result.Session
	if session.Status != models.SessionCompleted {
		t.Errorf("partial batch should complete, got %s", session.Status)
	}
	if session.Captured != 2 {
		t.Errorf("expected 2 captured, got %d", session.Captured)
	}
	if len(session.Errors) != 1 || !strings.HasPrefix(session.Errors[0], "item 2:") {
		t.Errorf("expected one 'item 2:' error, got %v", session.Errors)
	}
}

func TestCaptureBatchAllFail(t *testing.T) {
	src := &scriptedSource{outcome: func(int) (*RawFrame, error) { return nil, errors.New("no signal") }}
	stage := NewStage(fastCaptureConfig(), src, nil)

	result, err := stage.CaptureBatch(context.Background(), 2, models.TriggerScheduled, time.Now())
	if err != nil {
		t.Fatalf("CaptureBatch() itself should not fail: %v", err)
	}

	if result.Session.Status != models.SessionFailed {
		t.Errorf("zero captured must fail the session, got %s", result.Session.Status)
	}
	if result.Session.Captured != 0 {
		t.Errorf("expected 0 captured, got %d", result.Session.Captured)
	}
	if len(result.Session.Errors) != 2 {
		t.Errorf("expected 2 item errors, got %v", result.Session.Errors)
	}
}

func TestCaptureRetriesThenSucceeds(t *testing.T) {
	// First attempt fails, retry succeeds.
	src := &scriptedSource{outcome: func(call int) (*RawFrame, error) {
		if call == 1 {
			return nil, errors.New("transient")
		}
		return rampFrame(), nil
	}}
	stage := NewStage(fastCaptureConfig(), src, nil)

	result, err := stage.CaptureBatch(context.Background(), 1, models.TriggerScheduled, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if result.Session.Captured != 1 {
		t.Errorf("expected retry to recover the item, got captured=%d errors=%v",
			result.Session.Captured, result.Session.Errors)
	}
	if src.calls != 2 {
		t.Errorf("expected 2 acquire calls, got %d", src.calls)
	}
}

func TestCaptureBatchSizeBounds(t *testing.T) {
	stage := NewStage(fastCaptureConfig(), &scriptedSource{outcome: func(int) (*RawFrame, error) { return rampFrame(), nil }}, nil)

	for _, n := range []int{0, -1, 11} {
		_, err := stage.CaptureBatch(context.Background(), n, models.TriggerManual, time.Now())
		if !errors.Is(err, models.ErrValidationFailed) {
			t.Errorf("count %d: expected validation error, got %v", n, err)
		}
	}
}

func TestCaptureBatchCancelledMidway(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &scriptedSource{outcome: func(call int) (*RawFrame, error) {
		if call == 1 {
			cancel() // cancel after the first item completes
		}
		return rampFrame(), nil
	}}
	stage := NewStage(fastCaptureConfig(), src, nil)

	result, err := stage.CaptureBatch(ctx, 3, models.TriggerScheduled, time.Now())
	if err != nil {
		t.Fatal(err)
	}

	if result.Session.Status != models.SessionCancelled {
		t.Errorf("expected cancelled session, got %s", result.Session.Status)
	}
	// The item captured before cancellation is kept.
	if result.Session.Captured != 1 {
		t.Errorf("expected 1 captured item, got %d", result.Session.Captured)
	}
}

func TestLowQualityItemsRetainedNotReady(t *testing.T) {
	src := &scriptedSource{outcome: func(int) (*RawFrame, error) { return flatFrame(), nil }}
	stage := NewStage(fastCaptureConfig(), src, nil)

	result, err := stage.CaptureBatch(context.Background(), 2, models.TriggerScheduled, time.Now())
	if err != nil {
		t.Fatal(err)
	}

	// Low quality is not a capture failure: items are retained and flagged.
	if result.Session.Captured != 2 {
		t.Errorf("expected 2 captured, got %d", result.Session.Captured)
	}
	for _, item := range result.Items {
		if item.AnalysisReady {
			t.Errorf("flat frame item %s should not be analysis-ready", item.ID)
		}
		if len(item.Quality.Issues) == 0 {
			t.Errorf("gated item %s should carry issues", item.ID)
		}
	}
}

func TestSessionHistoryBounded(t *testing.T) {
	h := NewSessionHistory(3)
	for i := 0; i < 5; i++ {
		h.Append(&models.CaptureSession{ID: string(rune('a' + i))})
	}

	if h.Len() != 3 {
		t.Fatalf("expected capacity 3, got %d", h.Len())
	}
	recent := h.Recent(3)
	if recent[0].ID != "e" || recent[2].ID != "c" {
		t.Errorf("expected newest-first [e d c], got [%s %s %s]", recent[0].ID, recent[1].ID, recent[2].ID)
	}
}

func TestStageHealthTracksFailures(t *testing.T) {
	failing := &scriptedSource{outcome: func(int) (*RawFrame, error) { return nil, errors.New("dead sensor") }}
	stage := NewStage(fastCaptureConfig(), failing, nil)

	if h := stage.Health(); h.Score != 1.0 {
		t.Errorf("expected perfect health before any session, got %.2f", h.Score)
	}

	if _, err := stage.CaptureBatch(context.Background(), 1, models.TriggerScheduled, time.Now()); err != nil {
		t.Fatal(err)
	}

	if h := stage.Health(); h.Score != 0 {
		t.Errorf("expected 0 health after a fully failed session, got %.2f", h.Score)
	}
}
