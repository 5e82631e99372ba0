// Watchpost - Continuous Sensor Monitoring and Analysis Pipeline
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package capture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/watchpost/watchpost/internal/config"
	"github.com/watchpost/watchpost/internal/logging"
	"github.com/watchpost/watchpost/internal/metrics"
	"github.com/watchpost/watchpost/internal/models"
	"github.com/watchpost/watchpost/internal/storage"
)

// Batch size bounds for one capture session.
const (
	MinBatchSize = 1
	MaxBatchSize = 10
)

// Stage is the capture stage. It owns the session history; the storage layer
// owns items once stored.
type Stage struct {
	source   SensorSource
	store    *storage.Store
	assessor *Assessor
	cfg      config.CaptureConfig
	history  *SessionHistory

	mu       sync.Mutex
	sessions int64
	failures int64
}

// NewStage creates the capture stage. store may be nil when auto-store is
// disabled.
func NewStage(cfg config.CaptureConfig, source SensorSource, store *storage.Store) *Stage {
	return &Stage{
		source:   source,
		store:    store,
		assessor: NewAssessor(cfg.Quality),
		cfg:      cfg,
		history:  NewSessionHistory(cfg.HistorySize),
	}
}

// BatchResult is the outcome of one capture batch: the session record plus
// the items that were actually captured.
type BatchResult struct {
	Session *models.CaptureSession
	Items   []models.CapturedItem
}

// CaptureBatch acquires count snapshots, spacing acquisitions by the
// configured interval. A per-item failure is recorded in the session's
// Errors and does not abort the rest of the batch; the session completes as
// long as at least one item succeeded. Context cancellation between items
// finishes the session as Cancelled without discarding captured items.
func (s *Stage) CaptureBatch(ctx context.Context, count int, trigger models.CaptureTrigger, scheduledAt time.Time) (*BatchResult, error) {
	if count < MinBatchSize || count > MaxBatchSize {
		return nil, models.NewValidationError(
			fmt.Sprintf("batch size %d outside [%d,%d]", count, MinBatchSize, MaxBatchSize), nil)
	}

	session := &models.CaptureSession{
		ID:            uuid.New().String(),
		Trigger:       trigger,
		ScheduledTime: scheduledAt,
		ActualStart:   time.Now().UTC(),
		Requested:     count,
		Status:        models.SessionInProgress,
	}
	metrics.CaptureBatchSize.Observe(float64(count))

	// Device contention makes parallel capture counterproductive; items are
	// acquired strictly sequentially, paced by the limiter.
	limiter := rate.NewLimiter(rate.Every(s.cfg.ItemSpacing), 1)

	items := make([]models.CapturedItem, 0, count)
	cancelled := false
	for i := 0; i < count; i++ {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		if err := limiter.Wait(ctx); err != nil {
			cancelled = true
			break
		}

		item, err := s.captureOne(ctx, i+1)
		if err != nil {
			session.Errors = append(session.Errors, fmt.Sprintf("item %d: %v", i+1, err))
			metrics.CaptureAttempts.WithLabelValues("failure").Inc()
			continue
		}

		items = append(items, *item)
		session.ItemIDs = append(session.ItemIDs, item.ID)
	}

	session.Captured = len(items)
	session.CompletedTime = time.Now().UTC()
	elapsed := session.CompletedTime.Sub(session.ActualStart)
	session.Perf.TotalMs = elapsed.Milliseconds()
	if session.Captured > 0 {
		session.Perf.AvgItemMs = elapsed.Milliseconds() / int64(session.Captured)
	}

	switch {
	case cancelled:
		session.Status = models.SessionCancelled
	case session.Captured > 0:
		session.Status = models.SessionCompleted
	default:
		session.Status = models.SessionFailed
	}

	metrics.CaptureSessionDuration.Observe(elapsed.Seconds())
	s.recordSession(session)
	s.history.Append(session)

	logging.Info().
		Str("session_id", session.ID).
		Str("status", string(session.Status)).
		Int("requested", session.Requested).
		Int("captured", session.Captured).
		Msg("capture session finished")

	return &BatchResult{Session: session, Items: items}, nil
}

// captureOne acquires a single item with fixed-delay retries. Capture
// failures are typically transient device contention, so the delay is fixed
// rather than exponential.
func (s *Stage) captureOne(ctx context.Context, seq int) (*models.CapturedItem, error) {
	var frame *RawFrame
	var lastErr error

	for attempt := 0; attempt <= s.cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			metrics.CaptureAttempts.WithLabelValues("retry").Inc()
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.cfg.RetryDelay):
			}
		}

		frame, lastErr = s.source.Acquire(ctx)
		if lastErr == nil {
			break
		}
		logging.Debug().
			Err(lastErr).
			Int("seq", seq).
			Int("attempt", attempt+1).
			Msg("acquisition attempt failed")
	}
	if lastErr != nil {
		return nil, models.NewTransientError(
			fmt.Sprintf("acquire failed after %d attempts", s.cfg.RetryAttempts+1), lastErr)
	}

	quality := s.assessor.Assess(frame)
	item := &models.CapturedItem{
		ID:            uuid.New().String(),
		Data:          frame.Data,
		CapturedAt:    frame.CapturedAt,
		QualityScore:  quality.Overall,
		AnalysisReady: s.assessor.Ready(quality),
		Quality:       quality,
		Metadata:      frame.Meta,
	}

	metrics.CaptureAttempts.WithLabelValues("success").Inc()
	metrics.CaptureQualityScore.Observe(quality.Overall)
	if !item.AnalysisReady {
		metrics.CaptureNotReady.Inc()
		logging.Warn().
			Str("item_id", item.ID).
			Float64("score", quality.Overall).
			Strs("issues", quality.Issues).
			Msg("item below quality floor, retained but not analysis-ready")
	}

	if s.cfg.AutoStore && s.store != nil {
		if err := s.storeItem(ctx, item); err != nil {
			// The item stays in the batch; persistence failure is
			// reported but does not discard the capture.
			logging.Err(err).Str("item_id", item.ID).Msg("auto-store failed")
		}
	}

	return item, nil
}

func (s *Stage) storeItem(ctx context.Context, item *models.CapturedItem) error {
	payload, err := marshalItem(item)
	if err != nil {
		return err
	}
	return s.store.Put(ctx, &models.StorageRecord{
		Key:      "items/" + item.ID,
		Payload:  payload,
		Category: models.CategoryItem,
	})
}

func (s *Stage) recordSession(session *models.CaptureSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions++
	if session.Status == models.SessionFailed {
		s.failures++
	}
}

// History returns the bounded session history.
func (s *Stage) History() *SessionHistory {
	return s.history
}

// Health reports the stage's session success rate.
func (s *Stage) Health() models.ComponentHealth {
	s.mu.Lock()
	sessions, failures := s.sessions, s.failures
	s.mu.Unlock()

	score := 1.0
	if sessions > 0 {
		score = float64(sessions-failures) / float64(sessions)
	}
	metrics.SystemHealthScore.WithLabelValues("capture").Set(score)
	return models.ComponentHealth{Component: "capture", Score: score}
}
