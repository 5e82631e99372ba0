// Watchpost - Continuous Sensor Monitoring and Analysis Pipeline
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

// Package capture acquires snapshot batches from a sensor source, assesses
// each for quality, retries transient acquisition failures with a fixed
// delay, and hands successful items to the storage layer.
package capture

import (
	"context"
	"encoding/binary"
	"hash/fnv"
	"time"
)

// RawFrame is one snapshot as delivered by a sensor source. Transport-level
// protocol negotiation (RTSP/HLS/PTZ) lives behind the source implementation
// and is out of scope here.
type RawFrame struct {
	Data       []byte
	Format     string
	CapturedAt time.Time
	Meta       map[string]string
}

// SensorSource is the external snapshot provider. Any error from Acquire is
// treated as retryable up to the configured attempt budget.
type SensorSource interface {
	Acquire(ctx context.Context) (*RawFrame, error)
}

// SimulatedSource generates deterministic synthetic frames, for development
// and for running the pipeline without hardware. Frame content is derived
// from a seed and a per-frame counter, so quality assessment sees stable,
// varied inputs.
type SimulatedSource struct {
	seed    uint64
	counter uint64
}

// NewSimulatedSource creates a simulated source with the given seed.
func NewSimulatedSource(seed uint64) *SimulatedSource {
	return &SimulatedSource{seed: seed}
}

// Acquire produces one synthetic frame.
func (s *SimulatedSource) Acquire(ctx context.Context) (*RawFrame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.counter++
	h := fnv.New64a()
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], s.seed)
	binary.BigEndian.PutUint64(buf[8:], s.counter)
	h.Write(buf[:])
	state := h.Sum64()

	// A smooth gradient plus hash-derived texture; yields mid-range
	// brightness and non-trivial sharpness/contrast figures.
	data := make([]byte, 4096)
	for i := range data {
		state = state*6364136223846793005 + 1442695040888963407
		gradient := byte((i * 255) / len(data))
		texture := byte(state >> 56)
		data[i] = gradient/2 + texture/4 + 64
	}

	return &RawFrame{
		Data:       data,
		Format:     "gray8",
		CapturedAt: time.Now().UTC(),
		Meta:       map[string]string{"source": "simulated"},
	}, nil
}
