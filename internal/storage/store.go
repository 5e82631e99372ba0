// Watchpost - Continuous Sensor Monitoring and Analysis Pipeline
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

// Package storage is the durable record store: BadgerDB-backed key/value
// records with quota accounting, transparent compression, and age-based,
// category-weighted retention cleanup.
//
// Quota enforcement is evict-then-write: a put that would exceed the quota
// first runs retention cleanup, and fails with ErrQuotaExceeded if usage
// still will not fit. A write is never accepted and then evicted.
//
// Key namespaces:
//
//	items/{id}    captured snapshots
//	reports/{id}  reports and workflow artifacts
//	system/...    quota accounting and the time-sorted index
package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/watchpost/watchpost/internal/config"
	"github.com/watchpost/watchpost/internal/logging"
	"github.com/watchpost/watchpost/internal/metrics"
	"github.com/watchpost/watchpost/internal/models"
)

// Reserved keys for storage bookkeeping. Meta records are not counted
// against the quota.
const (
	quotaKey = "system/quota"
	indexKey = "system/index"
)

// Store is the storage layer. All quota mutations happen under mu through
// the public methods; no other component touches the counter.
type Store struct {
	db  *badger.DB
	cfg config.StorageConfig

	mu          sync.Mutex
	lastCleanup time.Time

	opsMu   sync.Mutex
	opsOK   int64
	opsFail int64
	nowFunc func() time.Time
}

// New opens the badger database at cfg.Path and initializes quota
// bookkeeping. Call Close when done.
func New(cfg config.StorageConfig) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path).
		WithLogger(badgerLogger{}).
		WithInMemory(cfg.InMemory)
	if cfg.InMemory {
		opts = opts.WithDir("").WithValueDir("")
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", cfg.Path, err)
	}

	s := &Store{db: db, cfg: cfg, nowFunc: time.Now}
	if err := s.initMeta(); err != nil {
		db.Close()
		return nil, err
	}

	metrics.StorageQuotaBytes.Set(float64(cfg.QuotaBytes))
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// initMeta creates the usage and index records if absent.
func (s *Store) initMeta() error {
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(quotaKey)); errors.Is(err, badger.ErrKeyNotFound) {
			if err := writeJSON(txn, quotaKey, &usage{ByCategory: map[models.RecordCategory]int64{}}); err != nil {
				return err
			}
		}
		if _, err := txn.Get([]byte(indexKey)); errors.Is(err, badger.ErrKeyNotFound) {
			if err := writeJSON(txn, indexKey, &index{}); err != nil {
				return err
			}
		}
		return nil
	})
}

// Put stores one record, compressing the payload above the configured
// threshold. The record's Key, Payload, Category and CriticalLinked fields
// must be set by the caller; size, timestamps and the compression flag are
// filled in here. Returns ErrQuotaExceeded when the write will not fit even
// after cleanup, leaving usage unchanged.
func (s *Store) Put(ctx context.Context, rec *models.StorageRecord) error {
	if rec.Key == "" || rec.Key == quotaKey || rec.Key == indexKey {
		return models.NewValidationError(fmt.Sprintf("invalid storage key %q", rec.Key), nil)
	}

	stored, compressed, err := maybeCompress(rec.Payload, s.cfg.CompressionThreshold)
	if err != nil {
		return s.fail(fmt.Errorf("compress payload for %s: %w", rec.Key, err))
	}

	rec.Compressed = compressed
	rec.SizeBytes = int64(len(stored))
	rec.CreatedAt = s.nowFunc()

	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.readUsage()
	if err != nil {
		return s.fail(err)
	}

	if u.TotalBytes+rec.SizeBytes > s.cfg.QuotaBytes {
		// Evict-then-write: reclaim expired records first. Live data is
		// never evicted to make room.
		if _, err := s.cleanupLocked(ctx); err != nil {
			return s.fail(err)
		}
		u, err = s.readUsage()
		if err != nil {
			return s.fail(err)
		}
		if u.TotalBytes+rec.SizeBytes > s.cfg.QuotaBytes {
			metrics.StorageQuotaRejections.Inc()
			return &models.PipelineError{
				Code:        models.ErrCodeQuotaExceeded,
				Message:     fmt.Sprintf("write of %d bytes exceeds quota (%d/%d used)", rec.SizeBytes, u.TotalBytes, s.cfg.QuotaBytes),
				Recoverable: false,
			}
		}
	}

	envelope := *rec
	envelope.Payload = stored

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := writeJSON(txn, rec.Key, &envelope); err != nil {
			return err
		}

		u.TotalBytes += rec.SizeBytes
		u.RecordCount++
		u.ByCategory[rec.Category] += rec.SizeBytes
		if err := writeJSON(txn, quotaKey, u); err != nil {
			return err
		}

		idx, err := readIndexTxn(txn)
		if err != nil {
			return err
		}
		idx.add(entry{
			Key:            rec.Key,
			CreatedAt:      rec.CreatedAt,
			Category:       rec.Category,
			SizeBytes:      rec.SizeBytes,
			CriticalLinked: rec.CriticalLinked,
		})
		return writeJSON(txn, indexKey, idx)
	})
	if err != nil {
		return s.fail(fmt.Errorf("put %s: %w", rec.Key, err))
	}

	if compressed {
		metrics.StorageCompressedWrites.Inc()
	}
	metrics.StorageUsageBytes.Set(float64(u.TotalBytes))
	metrics.StorageRecords.WithLabelValues(string(rec.Category)).Inc()
	s.ok()
	return nil
}

// Get retrieves a record by key, transparently decompressing the payload.
// The Compressed flag is preserved to reflect the stored encoding.
func (s *Store) Get(ctx context.Context, key string) (*models.StorageRecord, error) {
	var rec models.StorageRecord

	err := s.db.View(func(txn *badger.Txn) error {
		return readJSON(txn, key, &rec)
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, s.failVal(fmt.Errorf("get %s: %w", key, err))
	}

	if rec.Compressed {
		payload, err := decompress(rec.Payload)
		if err != nil {
			return nil, s.failVal(fmt.Errorf("decompress %s: %w", key, err))
		}
		rec.Payload = payload
	}

	s.ok()
	return &rec, nil
}

// Delete removes a record and releases its quota share. Deleting a missing
// key is a no-op.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(txn *badger.Txn) error {
		idx, err := readIndexTxn(txn)
		if err != nil {
			return err
		}
		ent, found := idx.remove(key)
		if !found {
			return nil
		}

		if err := txn.Delete([]byte(key)); err != nil {
			return err
		}

		u := &usage{}
		if err := readJSON(txn, quotaKey, u); err != nil {
			return err
		}
		u.TotalBytes -= ent.SizeBytes
		u.RecordCount--
		u.ByCategory[ent.Category] -= ent.SizeBytes
		if err := writeJSON(txn, quotaKey, u); err != nil {
			return err
		}
		metrics.StorageUsageBytes.Set(float64(u.TotalBytes))
		metrics.StorageRecords.WithLabelValues(string(ent.Category)).Dec()

		return writeJSON(txn, indexKey, idx)
	})
	if err != nil {
		return s.fail(fmt.Errorf("delete %s: %w", key, err))
	}

	s.ok()
	return nil
}

// UsageStats reports current storage usage.
func (s *Store) UsageStats() (models.StorageStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.readUsage()
	if err != nil {
		return models.StorageStats{}, err
	}

	stats := models.StorageStats{
		TotalBytes:  u.TotalBytes,
		QuotaBytes:  s.cfg.QuotaBytes,
		RecordCount: u.RecordCount,
		ByCategory:  u.ByCategory,
		LastCleanup: s.lastCleanup,
	}
	if s.cfg.QuotaBytes > 0 {
		stats.Utilization = float64(u.TotalBytes) / float64(s.cfg.QuotaBytes)
	}
	return stats, nil
}

// RecentKeys returns up to n keys of the given category, newest first,
// served from the time-sorted index without a full scan. An empty category
// matches all records.
func (s *Store) RecentKeys(category models.RecordCategory, n int) ([]string, error) {
	var idx *index
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		idx, err = readIndexTxn(txn)
		return err
	})
	if err != nil {
		return nil, err
	}
	return idx.recent(category, n), nil
}

// Health reports the store's success rate over its lifetime plus quota
// pressure. Used by the orchestrator's health aggregation.
func (s *Store) Health() models.ComponentHealth {
	s.opsMu.Lock()
	ok, fail := s.opsOK, s.opsFail
	s.opsMu.Unlock()

	score := 1.0
	if ok+fail > 0 {
		score = float64(ok) / float64(ok+fail)
	}

	stats, err := s.UsageStats()
	if err == nil && stats.Utilization > 0.9 {
		// Near-full storage degrades health before writes start failing.
		score *= 0.75
		metrics.SystemHealthScore.WithLabelValues("storage").Set(score)
		return models.ComponentHealth{Component: "storage", Score: score, Detail: "quota pressure"}
	}

	metrics.SystemHealthScore.WithLabelValues("storage").Set(score)
	return models.ComponentHealth{Component: "storage", Score: score}
}

func (s *Store) readUsage() (*usage, error) {
	u := &usage{}
	err := s.db.View(func(txn *badger.Txn) error {
		return readJSON(txn, quotaKey, u)
	})
	if err != nil {
		return nil, fmt.Errorf("read usage: %w", err)
	}
	if u.ByCategory == nil {
		u.ByCategory = map[models.RecordCategory]int64{}
	}
	return u, nil
}

func (s *Store) ok() {
	s.opsMu.Lock()
	s.opsOK++
	s.opsMu.Unlock()
}

func (s *Store) fail(err error) error {
	s.opsMu.Lock()
	s.opsFail++
	s.opsMu.Unlock()
	logging.Err(err).Str("component", "storage").Msg("storage operation failed")
	return err
}

func (s *Store) failVal(err error) error {
	return s.fail(err)
}

// usage is the persisted quota accounting record.
type usage struct {
	TotalBytes  int64                           `json:"total_bytes"`
	RecordCount int                             `json:"record_count"`
	ByCategory  map[models.RecordCategory]int64 `json:"by_category"`
}

func writeJSON(txn *badger.Txn, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set([]byte(key), data)
}

func readJSON(txn *badger.Txn, key string, v any) error {
	item, err := txn.Get([]byte(key))
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

// badgerLogger routes badger's internal logging through zerolog.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...any) {
	logging.Error().Str("component", "badger").Msgf(format, args...)
}

func (badgerLogger) Warningf(format string, args ...any) {
	logging.Warn().Str("component", "badger").Msgf(format, args...)
}

func (badgerLogger) Infof(format string, args ...any) {
	logging.Debug().Str("component", "badger").Msgf(format, args...)
}

func (badgerLogger) Debugf(format string, args ...any) {
	logging.Debug().Str("component", "badger").Msgf(format, args...)
}
