// Watchpost - Continuous Sensor Monitoring and Analysis Pipeline
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package pipeline

import (
	"context"
	"time"

	"github.com/watchpost/watchpost/internal/logging"
)

// Janitor runs the periodic maintenance passes: storage retention cleanup on
// the storage interval and alert pruning on the alerting interval. Quota
// pressure triggers its own cleanup inline in the storage layer; the janitor
// is the time-based sweep that runs regardless of write activity.
type Janitor struct {
	p *Pipeline
}

// NewJanitor creates the janitor for p.
func NewJanitor(p *Pipeline) *Janitor {
	return &Janitor{p: p}
}

// String names the service in supervisor logs.
func (j *Janitor) String() string { return "janitor" }

// Serve sweeps until ctx is cancelled. It satisfies suture.Service.
func (j *Janitor) Serve(ctx context.Context) error {
	cleanup := time.NewTicker(j.p.Cfg.Storage.CleanupInterval)
	defer cleanup.Stop()
	prune := time.NewTicker(j.p.Cfg.Alerting.PruneInterval)
	defer prune.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-cleanup.C:
			result, err := j.p.Store.Cleanup(ctx)
			if err != nil {
				logging.Err(err).Msg("storage cleanup failed")
				continue
			}
			logging.Info().
				Int("removed", result.Removed).
				Int64("freed_bytes", result.FreedBytes).
				Msg("storage cleanup completed")

		case <-prune.C:
			j.p.Alerts.Prune()
		}
	}
}
