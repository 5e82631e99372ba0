// Watchpost - Continuous Sensor Monitoring and Analysis Pipeline
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

// Package analysis runs captured batches through a pluggable analysis
// backend under single-flight concurrency control, with result caching,
// per-request timeouts, and normalization of backend responses into the
// canonical result shape.
package analysis

import (
	"context"
	"errors"
	"fmt"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/watchpost/watchpost/internal/config"
	"github.com/watchpost/watchpost/internal/logging"
	"github.com/watchpost/watchpost/internal/metrics"
	"github.com/watchpost/watchpost/internal/models"
)

// BackendRequest is what the stage hands to a backend implementation.
type BackendRequest struct {
	Items  []models.CapturedItem
	Depth  models.AnalysisDepth
	Prompt string
}

// BackendResponse is the backend-specific inference outcome. Normalization
// into models.AnalysisResult happens in the stage; this is the only shape
// aware of the backend's own structure.
type BackendResponse struct {
	Confidence      float64
	Summary         string
	Findings        []string
	Recommendations []string
	Raw             string
}

// Backend is the external inference collaborator. The pipeline never
// assumes anything about the model behind it beyond this contract.
type Backend interface {
	Infer(ctx context.Context, req BackendRequest) (*BackendResponse, error)
}

// PermanentError marks a backend failure that retrying cannot fix. Backends
// wrap unrecoverable conditions (bad credentials, unsupported input) in it.
type PermanentError struct {
	Reason string
}

func (e *PermanentError) Error() string {
	return "permanent backend failure: " + e.Reason
}

// BreakerBackend wraps a Backend with a circuit breaker so a flapping
// backend sheds load instead of being hammered by every workflow.
type BreakerBackend struct {
	inner Backend
	cb    *gobreaker.CircuitBreaker[*BackendResponse]
	name  string
}

// NewBreakerBackend wraps backend with a circuit breaker tuned by cfg.
func NewBreakerBackend(backend Backend, cfg config.BreakerConfig) *BreakerBackend {
	const name = "analysis-backend"
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[*BackendResponse](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
		},
	})

	return &BreakerBackend{inner: backend, cb: cb, name: name}
}

// Infer executes the wrapped backend through the breaker. An open circuit
// surfaces as a transient failure so the orchestrator treats it as
// recoverable.
func (b *BreakerBackend) Infer(ctx context.Context, req BackendRequest) (*BackendResponse, error) {
	resp, err := b.cb.Execute(func() (*BackendResponse, error) {
		return b.inner.Infer(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
			return nil, models.NewTransientError("analysis backend circuit open", err)
		}
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
		return nil, err
	}
	metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	return resp, nil
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}

// classifyBackendError maps a backend failure onto the pipeline taxonomy.
// Timeouts and generic errors are transient; PermanentError and exhausted
// contexts carrying one are unrecoverable.
func classifyBackendError(err error) *models.PipelineError {
	var perm *PermanentError
	if errors.As(err, &perm) {
		return models.NewUnrecoverableError(perm.Reason, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return models.NewTransientError("analysis timed out", err)
	}
	var pe *models.PipelineError
	if errors.As(err, &pe) {
		return pe
	}
	return models.NewTransientError(fmt.Sprintf("backend failure: %v", err), err)
}
