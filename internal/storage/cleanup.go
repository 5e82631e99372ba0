// Watchpost - Continuous Sensor Monitoring and Analysis Pipeline
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package storage

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/watchpost/watchpost/internal/logging"
	"github.com/watchpost/watchpost/internal/metrics"
	"github.com/watchpost/watchpost/internal/models"
)

// CleanupResult summarizes one retention pass.
type CleanupResult struct {
	Removed    int   `json:"removed"`
	FreedBytes int64 `json:"freed_bytes"`
}

// Cleanup applies the retention policy: each record expires once older than
// its category's retention, except critical-alert-linked records which use
// the (longest) critical retention. Running cleanup twice in succession is a
// no-op the second time.
func (s *Store) Cleanup(ctx context.Context) (CleanupResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cleanupLocked(ctx)
}

// cleanupLocked is Cleanup without locking, for the evict-then-write path
// inside Put. Caller must hold s.mu.
func (s *Store) cleanupLocked(ctx context.Context) (CleanupResult, error) {
	now := s.nowFunc()
	var result CleanupResult

	err := s.db.Update(func(txn *badger.Txn) error {
		idx, err := readIndexTxn(txn)
		if err != nil {
			return err
		}

		u := &usage{}
		if err := readJSON(txn, quotaKey, u); err != nil {
			return err
		}
		if u.ByCategory == nil {
			u.ByCategory = map[models.RecordCategory]int64{}
		}

		kept := idx.Entries[:0]
		for _, e := range idx.Entries {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if now.Sub(e.CreatedAt) < s.retentionFor(e) {
				kept = append(kept, e)
				continue
			}

			if err := txn.Delete([]byte(e.Key)); err != nil {
				return err
			}
			u.TotalBytes -= e.SizeBytes
			u.RecordCount--
			u.ByCategory[e.Category] -= e.SizeBytes
			result.Removed++
			result.FreedBytes += e.SizeBytes
			metrics.StorageEvictions.WithLabelValues(string(e.Category)).Inc()
			metrics.StorageRecords.WithLabelValues(string(e.Category)).Dec()
		}
		idx.Entries = kept

		if err := writeJSON(txn, quotaKey, u); err != nil {
			return err
		}
		metrics.StorageUsageBytes.Set(float64(u.TotalBytes))
		return writeJSON(txn, indexKey, idx)
	})
	if err != nil {
		return CleanupResult{}, s.fail(err)
	}

	s.lastCleanup = now
	if result.Removed > 0 {
		logging.Info().
			Int("removed", result.Removed).
			Int64("freed_bytes", result.FreedBytes).
			Msg("storage retention cleanup completed")
	}
	s.ok()
	return result, nil
}

// retentionFor returns the retention duration for an index entry.
// Critical-alert-linked records retain longest regardless of category.
func (s *Store) retentionFor(e entry) time.Duration {
	r := s.cfg.Retention
	if e.CriticalLinked {
		return r.Critical
	}
	switch e.Category {
	case models.CategoryReport:
		return r.Report
	case models.CategoryItem:
		return r.Item
	case models.CategorySystem:
		return r.System
	default:
		return r.Item
	}
}
