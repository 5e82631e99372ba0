// Watchpost - Continuous Sensor Monitoring and Analysis Pipeline
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

// Package config defines the Watchpost configuration model and its koanf
// loading pipeline: struct defaults, then YAML file, then WATCHPOST_
// environment variables, each layer overriding the previous.
package config

import "time"

// Config is the root configuration for the pipeline.
type Config struct {
	Scheduler SchedulerConfig `koanf:"scheduler"`
	Capture   CaptureConfig   `koanf:"capture"`
	Analysis  AnalysisConfig  `koanf:"analysis"`
	Report    ReportConfig    `koanf:"report"`
	Storage   StorageConfig   `koanf:"storage"`
	Alerting  AlertingConfig  `koanf:"alerting"`
	Health    HealthConfig    `koanf:"health"`
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// WindowConfig describes one time-of-day capture window. A window where
// EndHour < StartHour wraps past midnight.
type WindowConfig struct {
	StartHour     int           `koanf:"start_hour" validate:"min=0,max=23"`
	EndHour       int           `koanf:"end_hour" validate:"min=0,max=23"`
	Interval      time.Duration `koanf:"interval"`
	ItemsPerBatch int           `koanf:"items_per_batch" validate:"min=1,max=10"`
	Enabled       bool          `koanf:"enabled"`
}

// SchedulerConfig governs the capture cadence.
type SchedulerConfig struct {
	Day                   WindowConfig `koanf:"day"`
	Night                 WindowConfig `koanf:"night"`
	ManualOverrideEnabled bool         `koanf:"manual_override_enabled"`

	// FailureAlertThreshold is the consecutive-failure count that raises a
	// warning alert. The loop itself never stops on failures.
	FailureAlertThreshold int `koanf:"failure_alert_threshold" validate:"min=1"`
}

// QualityConfig holds the composite quality weights and gates. The weights
// are heuristic, preserved as configuration rather than constants.
type QualityConfig struct {
	SharpnessWeight  float64 `koanf:"sharpness_weight"`
	NoiseWeight      float64 `koanf:"noise_weight"`
	BrightnessWeight float64 `koanf:"brightness_weight"`
	ContrastWeight   float64 `koanf:"contrast_weight"`

	// ReadyThreshold is the composite floor for analysisReady.
	ReadyThreshold float64 `koanf:"ready_threshold" validate:"min=0,max=1"`

	// MinSharpness hard-fails an item regardless of its composite score.
	MinSharpness float64 `koanf:"min_sharpness" validate:"min=0,max=1"`
}

// CaptureConfig governs the capture stage.
type CaptureConfig struct {
	RetryAttempts int           `koanf:"retry_attempts" validate:"min=0,max=10"`
	RetryDelay    time.Duration `koanf:"retry_delay"`
	ItemSpacing   time.Duration `koanf:"item_spacing"`
	AutoStore     bool          `koanf:"auto_store"`
	HistorySize   int           `koanf:"history_size" validate:"min=1"`
	Quality       QualityConfig `koanf:"quality"`
}

// AnalysisConfig governs the analysis stage.
type AnalysisConfig struct {
	// Backend selects the analysis backend implementation: "simulated" in
	// development, a real inference client in production.
	Backend string `koanf:"backend" validate:"oneof=simulated"`

	Depth          string        `koanf:"depth" validate:"oneof=quick standard deep"`
	MaxProcessTime time.Duration `koanf:"max_process_time"`
	CacheSize      int           `koanf:"cache_size" validate:"min=1"`
	CacheTTL       time.Duration `koanf:"cache_ttl"`
	HistorySize    int           `koanf:"history_size" validate:"min=1"`

	Breaker BreakerConfig `koanf:"breaker"`
}

// BreakerConfig tunes the circuit breaker in front of the analysis backend.
type BreakerConfig struct {
	MaxRequests  uint32        `koanf:"max_requests"`
	Interval     time.Duration `koanf:"interval"`
	Timeout      time.Duration `koanf:"timeout"`
	MinRequests  uint32        `koanf:"min_requests"`
	FailureRatio float64       `koanf:"failure_ratio" validate:"min=0,max=1"`
}

// ReportConfig governs report generation.
type ReportConfig struct {
	MaxConciseLength int `koanf:"max_concise_length" validate:"min=16"`

	// NormalConfidence and WarningConfidence are the alert-level cut
	// points: >= NormalConfidence is normal, >= WarningConfidence is
	// warning, below is critical.
	NormalConfidence  float64 `koanf:"normal_confidence" validate:"min=0,max=1"`
	WarningConfidence float64 `koanf:"warning_confidence" validate:"min=0,max=1"`
}

// RetentionConfig sets per-category record lifetimes. Critical-alert-linked
// records retain longest regardless of category.
type RetentionConfig struct {
	Report   time.Duration `koanf:"report"`
	Item     time.Duration `koanf:"item"`
	System   time.Duration `koanf:"system"`
	Critical time.Duration `koanf:"critical"`
}

// StorageConfig governs the storage layer.
type StorageConfig struct {
	Path                 string          `koanf:"path" validate:"required"`
	QuotaBytes           int64           `koanf:"quota_bytes" validate:"min=1"`
	CompressionThreshold int             `koanf:"compression_threshold" validate:"min=0"`
	CleanupInterval      time.Duration   `koanf:"cleanup_interval"`
	Retention            RetentionConfig `koanf:"retention"`

	// InMemory runs badger without disk persistence. Test use only.
	InMemory bool `koanf:"in_memory"`
}

// AlertingConfig governs the alert subsystem.
type AlertingConfig struct {
	RingSize      int           `koanf:"ring_size" validate:"min=1"`
	MaxAge        time.Duration `koanf:"max_age"`
	PruneInterval time.Duration `koanf:"prune_interval"`
}

// HealthConfig governs health aggregation.
type HealthConfig struct {
	Interval time.Duration `koanf:"interval"`

	// WarnBelow raises a warning alert when overall health drops under it.
	WarnBelow float64 `koanf:"warn_below" validate:"min=0,max=1"`

	// FailureStreak raises an error alert after this many consecutive
	// workflow failures, independent of the smoothed health score.
	FailureStreak int `koanf:"failure_streak" validate:"min=1"`
}

// ServerConfig governs the HTTP API.
type ServerConfig struct {
	Host           string        `koanf:"host"`
	Port           int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout        time.Duration `koanf:"timeout"`
	RateLimit      int           `koanf:"rate_limit" validate:"min=1"`
	CORSOrigins    []string      `koanf:"cors_origins"`
	AllowWebsocket bool          `koanf:"allow_websocket"`
}

// LoggingConfig governs log output.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// Default returns a Config with production-ready defaults. Defaults are
// loaded first, then overridden by the config file and environment.
func Default() *Config {
	return &Config{
		Scheduler: SchedulerConfig{
			Day: WindowConfig{
				StartHour:     7,
				EndHour:       19,
				Interval:      20 * time.Minute,
				ItemsPerBatch: 3,
				Enabled:       true,
			},
			Night: WindowConfig{
				StartHour:     19,
				EndHour:       7,
				Interval:      time.Hour,
				ItemsPerBatch: 1,
				Enabled:       true,
			},
			ManualOverrideEnabled: true,
			FailureAlertThreshold: 3,
		},
		Capture: CaptureConfig{
			RetryAttempts: 3,
			RetryDelay:    2 * time.Second,
			ItemSpacing:   500 * time.Millisecond,
			AutoStore:     true,
			HistorySize:   50,
			Quality: QualityConfig{
				SharpnessWeight:  0.4,
				NoiseWeight:      0.3,
				BrightnessWeight: 0.2,
				ContrastWeight:   0.1,
				ReadyThreshold:   0.6,
				MinSharpness:     0.3,
			},
		},
		Analysis: AnalysisConfig{
			Backend:        "simulated",
			Depth:          "standard",
			MaxProcessTime: 30 * time.Second,
			CacheSize:      64,
			CacheTTL:       time.Hour,
			HistorySize:    50,
			Breaker: BreakerConfig{
				MaxRequests:  3,
				Interval:     time.Minute,
				Timeout:      2 * time.Minute,
				MinRequests:  10,
				FailureRatio: 0.6,
			},
		},
		Report: ReportConfig{
			MaxConciseLength:  280,
			NormalConfidence:  0.7,
			WarningConfidence: 0.4,
		},
		Storage: StorageConfig{
			Path:                 "/data/watchpost",
			QuotaBytes:           1 << 30, // 1GB
			CompressionThreshold: 4096,
			CleanupInterval:      24 * time.Hour,
			Retention: RetentionConfig{
				Report:   30 * 24 * time.Hour,
				Item:     7 * 24 * time.Hour,
				System:   90 * 24 * time.Hour,
				Critical: 180 * 24 * time.Hour,
			},
		},
		Alerting: AlertingConfig{
			RingSize:      256,
			MaxAge:        7 * 24 * time.Hour,
			PruneInterval: time.Hour,
		},
		Health: HealthConfig{
			Interval:      time.Minute,
			WarnBelow:     0.8,
			FailureStreak: 3,
		},
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8710,
			Timeout:        30 * time.Second,
			RateLimit:      100,
			CORSOrigins:    []string{},
			AllowWebsocket: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
