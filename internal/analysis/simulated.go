// Watchpost - Continuous Sensor Monitoring and Analysis Pipeline
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package analysis

import (
	"context"
	"fmt"
	"hash/fnv"
)

// SimulatedBackend is the development stand-in for a real inference client.
// Its output is a deterministic function of the input batch, so identical
// batches produce identical analyses and tests need no stubbing to get
// stable behavior.
type SimulatedBackend struct{}

// NewSimulatedBackend creates the simulated backend.
func NewSimulatedBackend() *SimulatedBackend {
	return &SimulatedBackend{}
}

// Infer derives findings from item quality statistics and a content hash.
func (s *SimulatedBackend) Infer(ctx context.Context, req BackendRequest) (*BackendResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h := fnv.New64a()
	var qualitySum float64
	for _, item := range req.Items {
		h.Write([]byte(item.ID))
		h.Write(item.Data)
		qualitySum += item.QualityScore
	}
	meanQuality := qualitySum / float64(len(req.Items))

	// Confidence tracks input quality with a hash-derived wobble, bounded
	// away from the extremes.
	wobble := float64(h.Sum64()%21) / 100 // 0.00..0.20
	confidence := 0.55 + 0.25*meanQuality + wobble
	if confidence > 0.99 {
		confidence = 0.99
	}

	findings := []string{
		fmt.Sprintf("scene stable across %d snapshots", len(req.Items)),
		fmt.Sprintf("mean input quality %.2f", meanQuality),
	}
	recommendations := []string{"continue monitoring at the current cadence"}
	if meanQuality < 0.7 {
		recommendations = append(recommendations, "review sensor positioning to improve capture quality")
	}
	if req.Depth == "deep" {
		findings = append(findings, "no anomalous motion patterns detected in extended inspection")
	}

	return &BackendResponse{
		Confidence:      confidence,
		Summary:         fmt.Sprintf("Analyzed %d snapshots; no anomalies detected.", len(req.Items)),
		Findings:        findings,
		Recommendations: recommendations,
		Raw:             fmt.Sprintf(`{"batch_hash":"%x","mean_quality":%.3f}`, h.Sum64(), meanQuality),
	}, nil
}
