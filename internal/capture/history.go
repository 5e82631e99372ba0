// Watchpost - Continuous Sensor Monitoring and Analysis Pipeline
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package capture

import (
	"sync"

	"github.com/goccy/go-json"

	"github.com/watchpost/watchpost/internal/models"
)

// SessionHistory is a bounded ring of finished capture sessions, oldest
// evicted first. Bounded capacity keeps memory flat regardless of uptime.
type SessionHistory struct {
	mu       sync.RWMutex
	sessions []*models.CaptureSession
	cap      int
}

// NewSessionHistory creates a history ring with the given capacity.
func NewSessionHistory(capacity int) *SessionHistory {
	if capacity < 1 {
		capacity = 1
	}
	return &SessionHistory{cap: capacity}
}

// Append adds a finished session, evicting the oldest when full.
func (h *SessionHistory) Append(session *models.CaptureSession) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.sessions) == h.cap {
		copy(h.sessions, h.sessions[1:])
		h.sessions[len(h.sessions)-1] = session
		return
	}
	h.sessions = append(h.sessions, session)
}

// Recent returns up to n sessions, newest first.
func (h *SessionHistory) Recent(n int) []*models.CaptureSession {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if n > len(h.sessions) {
		n = len(h.sessions)
	}
	out := make([]*models.CaptureSession, 0, n)
	for i := len(h.sessions) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, h.sessions[i])
	}
	return out
}

// Len returns the number of retained sessions.
func (h *SessionHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

func marshalItem(item *models.CapturedItem) ([]byte, error) {
	return json.Marshal(item)
}
