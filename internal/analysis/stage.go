// Watchpost - Continuous Sensor Monitoring and Analysis Pipeline
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/watchpost/watchpost/internal/config"
	"github.com/watchpost/watchpost/internal/logging"
	"github.com/watchpost/watchpost/internal/metrics"
	"github.com/watchpost/watchpost/internal/models"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Stage is the analysis stage. At most one analysis runs at a time; a second
// Analyze call while one is in progress fails fast with ErrBusy rather than
// queueing, keeping upstream overload visible instead of buffered.
//
// The stage never retries internally: retry policy belongs to the
// orchestrator, which reads the Recoverable flag off failed results.
type Stage struct {
	backend Backend
	cache   *ResultCache
	cfg     config.AnalysisConfig

	inFlight atomic.Bool

	mu      sync.Mutex
	history []*models.AnalysisResult
	runs    int64
	fails   int64
}

// NewStage creates the analysis stage around a backend.
func NewStage(cfg config.AnalysisConfig, backend Backend) *Stage {
	return &Stage{
		backend: backend,
		cache:   NewResultCache(cfg.CacheSize, cfg.CacheTTL),
		cfg:     cfg,
	}
}

// Fingerprint computes the deterministic cache key over the request-defining
// fields: item ids (order-independent), analysis type, and depth.
func Fingerprint(itemIDs []string, analysisType string, depth models.AnalysisDepth) string {
	sorted := make([]string, len(itemIDs))
	copy(sorted, itemIDs)
	sort.Strings(sorted)

	h := sha256.New()
	for _, id := range sorted {
		h.Write([]byte(id))
		h.Write([]byte{0})
	}
	h.Write([]byte(analysisType))
	h.Write([]byte{0})
	h.Write([]byte(depth))
	return hex.EncodeToString(h.Sum(nil))
}

// Analyze runs one request through the stage: single-flight gate, cache
// lookup, validation, backend invocation with timeout, normalization.
//
// A backend failure is not an error return: it yields a result with
// Success=false, Confidence=0 and a structured Error. The error return is
// reserved for gate rejection (ErrBusy) and request validation.
func (s *Stage) Analyze(ctx context.Context, req *models.AnalysisRequest) (*models.AnalysisResult, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		metrics.AnalysisBusyRejections.Inc()
		return nil, &models.PipelineError{
			Code:        models.ErrCodeBusy,
			Message:     "analysis already in progress",
			Recoverable: true,
		}
	}
	defer s.inFlight.Store(false)

	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	if req.CacheKey == "" {
		ids := make([]string, len(req.Items))
		for i, item := range req.Items {
			ids[i] = item.ID
		}
		req.CacheKey = Fingerprint(ids, "batch", req.Depth)
	}

	// Cache lookup precedes validation and execution: a hit returns the
	// prior result verbatim with no backend call and no re-storage.
	if cached, ok := s.cache.Get(req.CacheKey); ok {
		metrics.AnalysisCacheHits.Inc()
		logging.Debug().Str("cache_key", req.CacheKey).Msg("analysis cache hit")
		hit := *cached
		hit.CacheHit = true
		return &hit, nil
	}
	metrics.AnalysisCacheMisses.Inc()

	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.cfg.MaxProcessTime)
	defer cancel()

	resp, err := s.backend.Infer(ctx, BackendRequest{
		Items: req.Items,
		Depth: req.Depth,
	})
	backendElapsed := time.Since(start)

	var result *models.AnalysisResult
	if err != nil {
		// Timeout takes the same structured-failure path as any backend
		// error; there is no separate code path for it.
		result = s.failedResult(req, classifyBackendError(err))
	} else {
		result = s.normalize(req, resp)
	}
	result.Perf = models.AnalysisPerf{
		TotalMs:   time.Since(start).Milliseconds(),
		BackendMs: backendElapsed.Milliseconds(),
	}

	metrics.AnalysisDuration.Observe(time.Since(start).Seconds())
	s.record(result)

	if result.Success {
		s.cache.Add(req.CacheKey, result)
	}
	return result, nil
}

// validateRequest enforces the request contract: 1..10 items, each with a
// non-empty payload. Violations are never retried.
func (s *Stage) validateRequest(req *models.AnalysisRequest) error {
	if err := validate.Struct(req); err != nil {
		return models.NewValidationError(fmt.Sprintf("invalid analysis request: %v", err), err)
	}
	for i, item := range req.Items {
		if len(item.Data) == 0 {
			return models.NewValidationError(fmt.Sprintf("item %d (%s) has empty payload", i+1, item.ID), nil)
		}
	}
	return nil
}

// normalize converts a backend-specific response into the canonical result,
// attaching the quality scores every successful result carries.
func (s *Stage) normalize(req *models.AnalysisRequest, resp *BackendResponse) *models.AnalysisResult {
	confidence := resp.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	result := &models.AnalysisResult{
		ID:              uuid.New().String(),
		RequestID:       req.ID,
		Success:         true,
		Confidence:      confidence,
		Summary:         resp.Summary,
		Findings:        resp.Findings,
		Recommendations: resp.Recommendations,
		DataQuality:     meanQuality(req.Items),
		AnalysisQuality: analysisQuality(resp, confidence),
		CreatedAt:       time.Now().UTC(),
	}
	if req.Options.Raw {
		result.Raw = resp.Raw
	}
	return result
}

func (s *Stage) failedResult(req *models.AnalysisRequest, perr *models.PipelineError) *models.AnalysisResult {
	metrics.AnalysisFailures.WithLabelValues(string(perr.Code)).Inc()
	logging.Warn().
		Str("request_id", req.ID).
		Str("code", string(perr.Code)).
		Bool("recoverable", perr.Recoverable).
		Msg("analysis failed")

	return &models.AnalysisResult{
		ID:          uuid.New().String(),
		RequestID:   req.ID,
		Success:     false,
		Confidence:  0,
		DataQuality: meanQuality(req.Items),
		Error:       perr,
		CreatedAt:   time.Now().UTC(),
	}
}

// meanQuality is the mean capture quality of the analyzed items.
func meanQuality(items []models.CapturedItem) float64 {
	if len(items) == 0 {
		return 0
	}
	var sum float64
	for _, item := range items {
		sum += item.QualityScore
	}
	return sum / float64(len(items))
}

// analysisQuality is a presence-weighted score over findings present,
// recommendations present, and confidence above 0.5 — one third each.
func analysisQuality(resp *BackendResponse, confidence float64) float64 {
	var score float64
	if len(resp.Findings) > 0 {
		score += 1.0 / 3
	}
	if len(resp.Recommendations) > 0 {
		score += 1.0 / 3
	}
	if confidence > 0.5 {
		score += 1.0 / 3
	}
	return score
}

func (s *Stage) record(result *models.AnalysisResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs++
	if !result.Success {
		s.fails++
	}

	s.history = append(s.history, result)
	if len(s.history) > s.cfg.HistorySize {
		s.history = s.history[1:]
	}
}

// Previous returns the most recent successful result before the given one,
// for historical comparison in detailed reports. Returns nil when no history
// exists.
func (s *Stage) Previous(currentID string) *models.AnalysisResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.history) - 1; i >= 0; i-- {
		r := s.history[i]
		if r.ID != currentID && r.Success {
			return r
		}
	}
	return nil
}

// Health reports the stage's run success rate.
func (s *Stage) Health() models.ComponentHealth {
	s.mu.Lock()
	runs, fails := s.runs, s.fails
	s.mu.Unlock()

	score := 1.0
	if runs > 0 {
		score = float64(runs-fails) / float64(runs)
	}
	metrics.SystemHealthScore.WithLabelValues("analysis").Set(score)
	return models.ComponentHealth{Component: "analysis", Score: score}
}
