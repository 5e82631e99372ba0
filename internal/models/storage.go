// Watchpost - Continuous Sensor Monitoring and Analysis Pipeline
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package models

import "time"

// RecordCategory namespaces storage records and selects their retention class.
type RecordCategory string

const (
	CategoryReport RecordCategory = "report"
	CategoryItem   RecordCategory = "item"
	CategorySystem RecordCategory = "system"
)

// StorageRecord is one durable key/value entry. SizeBytes reflects the stored
// (possibly compressed) payload size; the Compressed flag travels with the
// record so readers need no out-of-band knowledge of the encoding.
type StorageRecord struct {
	Key        string         `json:"key"`
	Payload    []byte         `json:"payload"`
	SizeBytes  int64          `json:"size_bytes"`
	CreatedAt  time.Time      `json:"created_at"`
	Category   RecordCategory `json:"category"`
	Compressed bool           `json:"compressed"`

	// CriticalLinked marks records referenced by critical alerts; they
	// retain longest under the retention policy.
	CriticalLinked bool `json:"critical_linked,omitempty"`
}

// StorageStats is the storage layer's usage report.
type StorageStats struct {
	TotalBytes  int64                    `json:"total_bytes"`
	QuotaBytes  int64                    `json:"quota_bytes"`
	RecordCount int                      `json:"record_count"`
	ByCategory  map[RecordCategory]int64 `json:"by_category"`
	Utilization float64                  `json:"utilization"`
	LastCleanup time.Time                `json:"last_cleanup,omitempty"`
}
