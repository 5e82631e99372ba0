// Watchpost - Continuous Sensor Monitoring and Analysis Pipeline
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

// Package models defines the shared data model of the monitoring pipeline:
// capture sessions and items, analysis requests and results, reports, storage
// records, workflow results, system alerts, and the pipeline error taxonomy.
//
// The package has no dependencies on other internal packages so that every
// component can exchange these types without import cycles.
package models
