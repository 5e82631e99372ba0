// Watchpost - Continuous Sensor Monitoring and Analysis Pipeline
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// Note: Load("") falls back to the default search paths; tests relying on env
// overrides run from a temp-free working directory where none exist.

func TestDefaultConfigIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config should validate, got: %v", err)
	}
}

func TestDefaultWindows(t *testing.T) {
	cfg := Default()

	if cfg.Scheduler.Day.StartHour != 7 || cfg.Scheduler.Day.EndHour != 19 {
		t.Errorf("unexpected day window: %d-%d", cfg.Scheduler.Day.StartHour, cfg.Scheduler.Day.EndHour)
	}
	// Night wraps past midnight: end < start is valid.
	if cfg.Scheduler.Night.EndHour >= cfg.Scheduler.Night.StartHour {
		t.Errorf("expected wrapping night window, got %d-%d", cfg.Scheduler.Night.StartHour, cfg.Scheduler.Night.EndHour)
	}
}

func TestValidateRejectsBadWeights(t *testing.T) {
	cfg := Default()
	cfg.Capture.Quality.SharpnessWeight = 0.9

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error for weights not summing to 1.0")
	}
	if !strings.Contains(err.Error(), "weights must sum") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateRejectsZeroInterval(t *testing.T) {
	cfg := Default()
	cfg.Scheduler.Day.Interval = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for zero interval")
	}
}

func TestValidateRejectsInvertedReportThresholds(t *testing.T) {
	cfg := Default()
	cfg.Report.NormalConfidence = 0.3
	cfg.Report.WarningConfidence = 0.6

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for inverted thresholds")
	}
}

func TestLoadFromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
scheduler:
  day:
    interval: 15m
    items_per_batch: 5
storage:
  quota_bytes: 2048
server:
  port: 9999
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Scheduler.Day.Interval != 15*time.Minute {
		t.Errorf("expected 15m interval, got %v", cfg.Scheduler.Day.Interval)
	}
	if cfg.Scheduler.Day.ItemsPerBatch != 5 {
		t.Errorf("expected 5 items per batch, got %d", cfg.Scheduler.Day.ItemsPerBatch)
	}
	if cfg.Storage.QuotaBytes != 2048 {
		t.Errorf("expected quota override, got %d", cfg.Storage.QuotaBytes)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("expected port override, got %d", cfg.Server.Port)
	}
	// Untouched sections keep defaults.
	if cfg.Capture.RetryAttempts != 3 {
		t.Errorf("expected default retry attempts, got %d", cfg.Capture.RetryAttempts)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("WATCHPOST_SERVER_PORT", "7777")
	t.Setenv("WATCHPOST_SCHEDULER_DAY_START_HOUR", "6")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Server.Port != 7777 {
		t.Errorf("expected env port override, got %d", cfg.Server.Port)
	}
	if cfg.Scheduler.Day.StartHour != 6 {
		t.Errorf("expected env window override, got %d", cfg.Scheduler.Day.StartHour)
	}
}

func TestEnvTransform(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"WATCHPOST_SERVER_PORT", "server.port"},
		{"WATCHPOST_SCHEDULER_DAY_START_HOUR", "scheduler.day.start_hour"},
		{"WATCHPOST_SCHEDULER_NIGHT_ITEMS_PER_BATCH", "scheduler.night.items_per_batch"},
		{"WATCHPOST_SCHEDULER_MANUAL_OVERRIDE_ENABLED", "scheduler.manual_override_enabled"},
		{"WATCHPOST_CAPTURE_QUALITY_READY_THRESHOLD", "capture.quality.ready_threshold"},
		{"WATCHPOST_STORAGE_RETENTION_CRITICAL", "storage.retention.critical"},
		{"WATCHPOST_ANALYSIS_BREAKER_TIMEOUT", "analysis.breaker.timeout"},
		{"WATCHPOST_LOGGING_LEVEL", "logging.level"},
	}

	for _, tt := range tests {
		if got := envTransform(tt.in); got != tt.want {
			t.Errorf("envTransform(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
