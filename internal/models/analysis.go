// Watchpost - Continuous Sensor Monitoring and Analysis Pipeline
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package models

import "time"

// AnalysisDepth selects how thoroughly the backend inspects a batch. Depth
// participates in the cache fingerprint, so requests at different depths never
// share a cached result.
type AnalysisDepth string

const (
	DepthQuick    AnalysisDepth = "quick"
	DepthStandard AnalysisDepth = "standard"
	DepthDeep     AnalysisDepth = "deep"
)

// OutputOptions selects which presentation artifacts downstream report
// generation should produce.
type OutputOptions struct {
	Concise  bool `json:"concise"`
	Detailed bool `json:"detailed"`
	Raw      bool `json:"raw"`
}

// AnalysisRequest is one batch submitted to the analysis stage.
type AnalysisRequest struct {
	ID       string         `json:"id"`
	Items    []CapturedItem `json:"items" validate:"required,min=1,max=10"`
	Depth    AnalysisDepth  `json:"depth" validate:"required,oneof=quick standard deep"`
	Options  OutputOptions  `json:"options"`
	CacheKey string         `json:"cache_key,omitempty"`
}

// AnalysisPerf holds timing figures for one analysis execution.
type AnalysisPerf struct {
	TotalMs   int64 `json:"total_ms"`
	BackendMs int64 `json:"backend_ms"`
}

// AnalysisResult is the canonical, backend-agnostic outcome of one request.
// Exactly one result maps to one request. A failed result always carries a
// non-nil Error and Confidence 0.
type AnalysisResult struct {
	ID        string `json:"id"`
	RequestID string `json:"request_id"`
	Success   bool   `json:"success"`

	// Confidence is the backend's self-reported confidence, clamped to [0,1].
	Confidence      float64  `json:"confidence"`
	Summary         string   `json:"summary,omitempty"`
	Findings        []string `json:"findings,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
	Raw             string   `json:"raw,omitempty"`

	// DataQuality is the mean capture quality of the analyzed items.
	// AnalysisQuality is a presence-weighted score over findings,
	// recommendations and confidence. Both let consumers discount weak
	// analyses without re-deriving the signal.
	DataQuality     float64 `json:"data_quality"`
	AnalysisQuality float64 `json:"analysis_quality"`

	Error     *PipelineError `json:"error,omitempty"`
	CacheHit  bool           `json:"cache_hit"`
	Perf      AnalysisPerf   `json:"perf"`
	CreatedAt time.Time      `json:"created_at"`
}
