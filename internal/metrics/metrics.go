// Watchpost - Continuous Sensor Monitoring and Analysis Pipeline
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

// Package metrics exposes Prometheus instrumentation for the pipeline:
// capture attempts and quality, analysis latency and cache efficiency,
// storage usage and quota pressure, workflow outcomes, scheduler fires,
// and API/WebSocket activity.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Capture Stage Metrics
	CaptureAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capture_attempts_total",
			Help: "Total number of snapshot acquisition attempts",
		},
		[]string{"outcome"}, // "success", "retry", "failure"
	)

	CaptureBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "capture_batch_size",
			Help:    "Number of items requested per capture batch",
			Buckets: []float64{1, 2, 3, 5, 8, 10},
		},
	)

	CaptureQualityScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "capture_quality_score",
			Help:    "Composite quality score of captured items",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)

	CaptureNotReady = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "capture_items_not_analysis_ready_total",
			Help: "Total number of captured items retained below the quality floor",
		},
	)

	CaptureSessionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "capture_session_duration_seconds",
			Help:    "Duration of capture sessions in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Analysis Stage Metrics
	AnalysisDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "analysis_duration_seconds",
			Help:    "Duration of analysis executions in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	AnalysisCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "analysis_cache_hits_total",
			Help: "Total number of analysis result cache hits",
		},
	)

	AnalysisCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "analysis_cache_misses_total",
			Help: "Total number of analysis result cache misses",
		},
	)

	AnalysisBusyRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "analysis_busy_rejections_total",
			Help: "Total number of analyze calls rejected by the single-flight gate",
		},
	)

	AnalysisFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_failures_total",
			Help: "Total number of failed analysis executions",
		},
		[]string{"code"}, // "transient", "validation_failed", "unrecoverable"
	)

	// Storage Layer Metrics
	StorageUsageBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "storage_usage_bytes",
			Help: "Current total bytes accounted against the storage quota",
		},
	)

	StorageQuotaBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "storage_quota_bytes",
			Help: "Configured storage quota in bytes",
		},
	)

	StorageRecords = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "storage_records",
			Help: "Current number of stored records",
		},
		[]string{"category"},
	)

	StorageEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_evictions_total",
			Help: "Total number of records removed by retention cleanup",
		},
		[]string{"category"},
	)

	StorageQuotaRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storage_quota_rejections_total",
			Help: "Total number of writes rejected because the quota was exceeded after cleanup",
		},
	)

	StorageCompressedWrites = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storage_compressed_writes_total",
			Help: "Total number of payloads compressed on write",
		},
	)

	// Workflow / Orchestrator Metrics
	WorkflowDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "workflow_duration_seconds",
			Help:    "End-to-end workflow duration in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	WorkflowOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_outcomes_total",
			Help: "Total number of workflow executions by outcome",
		},
		[]string{"outcome"}, // "completed", "failed", "rejected"
	)

	WorkflowPhaseFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_phase_failures_total",
			Help: "Total number of workflow failures by phase",
		},
		[]string{"phase"},
	)

	SystemHealthScore = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "system_health_score",
			Help: "Self-reported component health (0..1); component=overall is the aggregate",
		},
		[]string{"component"},
	)

	// Scheduler Metrics
	SchedulerFires = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_fires_total",
			Help: "Total number of scheduler fires by window",
		},
		[]string{"window"}, // "day", "night"
	)

	SchedulerSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduler_fires_suppressed_total",
			Help: "Total number of fires suppressed while paused",
		},
	)

	// Alerting Metrics
	AlertsRaised = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerts_raised_total",
			Help: "Total number of system alerts raised",
		},
		[]string{"severity", "component"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breakers by result",
		},
		[]string{"name", "result"}, // "success", "failure", "rejected"
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	WSClientsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_clients_dropped_total",
			Help: "Total number of clients dropped for slow consumption",
		},
	)
)

// RecordAPIRequest records one API request with duration.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordWorkflow records one workflow execution outcome with duration.
func RecordWorkflow(outcome string, duration time.Duration) {
	WorkflowOutcomes.WithLabelValues(outcome).Inc()
	WorkflowDuration.Observe(duration.Seconds())
}
