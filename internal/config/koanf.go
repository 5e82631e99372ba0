// Watchpost - Continuous Sensor Monitoring and Analysis Pipeline
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, in order of
// priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/watchpost/config.yaml",
	"/etc/watchpost/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "WATCHPOST_CONFIG"

// envPrefix is the prefix for configuration environment variables, e.g.
// WATCHPOST_SCHEDULER_DAY_INTERVAL=15m.
const envPrefix = "WATCHPOST_"

// Load builds the configuration from defaults, an optional YAML file, and
// environment variables, then validates it. An empty path triggers the
// default search.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file path, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransform maps WATCHPOST_SECTION_SUB_KEY to section.sub_key. Because
// section names contain no underscores, only the first underscore becomes a
// separator; the rest stay part of the key.
func envTransform(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	parts := strings.SplitN(key, "_", 2)
	if len(parts) == 1 {
		return parts[0]
	}

	// Window sections nest one level deeper: scheduler.day.start_hour.
	section, rest := parts[0], parts[1]
	if section == "scheduler" {
		sub := strings.SplitN(rest, "_", 2)
		if len(sub) == 2 && (sub[0] == "day" || sub[0] == "night") {
			return section + "." + sub[0] + "." + sub[1]
		}
	}
	if section == "capture" && strings.HasPrefix(rest, "quality_") {
		return "capture.quality." + strings.TrimPrefix(rest, "quality_")
	}
	if section == "storage" && strings.HasPrefix(rest, "retention_") {
		return "storage.retention." + strings.TrimPrefix(rest, "retention_")
	}
	if section == "analysis" && strings.HasPrefix(rest, "breaker_") {
		return "analysis.breaker." + strings.TrimPrefix(rest, "breaker_")
	}
	return section + "." + rest
}
