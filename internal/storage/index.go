// Watchpost - Continuous Sensor Monitoring and Analysis Pipeline
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package storage

import (
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/watchpost/watchpost/internal/models"
)

// entry is one index row: enough metadata to serve recent-N queries and
// retention decisions without reading record values.
type entry struct {
	Key            string                `json:"key"`
	CreatedAt      time.Time             `json:"created_at"`
	Category       models.RecordCategory `json:"category"`
	SizeBytes      int64                 `json:"size_bytes"`
	CriticalLinked bool                  `json:"critical_linked,omitempty"`
}

// index is the persisted, time-sorted record index (oldest first).
type index struct {
	Entries []entry `json:"entries"`
}

// add inserts an entry keeping Entries sorted by CreatedAt ascending. An
// existing entry for the same key is replaced (overwrite semantics).
func (ix *index) add(e entry) {
	ix.remove(e.Key)
	pos := sort.Search(len(ix.Entries), func(i int) bool {
		return ix.Entries[i].CreatedAt.After(e.CreatedAt)
	})
	ix.Entries = append(ix.Entries, entry{})
	copy(ix.Entries[pos+1:], ix.Entries[pos:])
	ix.Entries[pos] = e
}

// remove deletes the entry for key, returning it if present.
func (ix *index) remove(key string) (entry, bool) {
	for i, e := range ix.Entries {
		if e.Key == key {
			ix.Entries = append(ix.Entries[:i], ix.Entries[i+1:]...)
			return e, true
		}
	}
	return entry{}, false
}

// recent returns up to n keys of the given category, newest first. Empty
// category matches everything.
func (ix *index) recent(category models.RecordCategory, n int) []string {
	keys := make([]string, 0, n)
	for i := len(ix.Entries) - 1; i >= 0 && len(keys) < n; i-- {
		e := ix.Entries[i]
		if category != "" && e.Category != category {
			continue
		}
		keys = append(keys, e.Key)
	}
	return keys
}

func readIndexTxn(txn *badger.Txn) (*index, error) {
	idx := &index{}
	if err := readJSON(txn, indexKey, idx); err != nil {
		return nil, err
	}
	return idx, nil
}
