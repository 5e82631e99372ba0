// Watchpost - Continuous Sensor Monitoring and Analysis Pipeline
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package capture

import (
	"strings"
	"testing"

	"github.com/watchpost/watchpost/internal/config"
)

// rampFrame yields a steep, mostly-linear gradient: high sharpness, modest
// noise, mid brightness. Passes the default ready gate.
func rampFrame() *RawFrame {
	data := make([]byte, 4096)
	for i := range data {
		data[i] = byte((i * 16) % 256)
	}
	return &RawFrame{Data: data, Format: "gray8"}
}

// flatFrame is a uniform mid-gray frame: zero sharpness, zero contrast.
func flatFrame() *RawFrame {
	data := make([]byte, 4096)
	for i := range data {
		data[i] = 128
	}
	return &RawFrame{Data: data, Format: "gray8"}
}

// darkFrame is uniformly near-black.
func darkFrame() *RawFrame {
	data := make([]byte, 4096)
	for i := range data {
		data[i] = 4
	}
	return &RawFrame{Data: data, Format: "gray8"}
}

func defaultAssessor() *Assessor {
	return NewAssessor(config.Default().Capture.Quality)
}

func TestAssessRampFrameIsReady(t *testing.T) {
	a := defaultAssessor()
	report := a.Assess(rampFrame())

	if report.Overall < 0.6 {
		t.Errorf("expected composite >= 0.6 for ramp frame, got %.3f", report.Overall)
	}
	if !a.Ready(report) {
		t.Errorf("ramp frame should be analysis-ready: %+v", report)
	}
}

func TestAssessFlatFrameHardFailsSharpness(t *testing.T) {
	a := defaultAssessor()
	report := a.Assess(flatFrame())

	if report.Sharpness != 0 {
		t.Errorf("flat frame sharpness should be 0, got %.3f", report.Sharpness)
	}
	if a.Ready(report) {
		t.Error("flat frame must hard-fail the sharpness gate")
	}

	// The failure must be explainable: issues name the failing sub-metric.
	found := false
	for _, issue := range report.Issues {
		if strings.Contains(issue, "sharpness") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a sharpness issue, got %v", report.Issues)
	}
	if len(report.Suggestions) == 0 {
		t.Error("expected at least one suggestion for a failing frame")
	}
}

func TestAssessDarkFrameReportsExposure(t *testing.T) {
	report := defaultAssessor().Assess(darkFrame())

	found := false
	for _, issue := range report.Issues {
		if strings.Contains(issue, "underexposed") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected underexposed issue, got %v", report.Issues)
	}
}

func TestCompositeUsesConfiguredWeights(t *testing.T) {
	// All weight on sharpness: flat frame scores 0, ramp frame scores its
	// raw sharpness.
	cfg := config.QualityConfig{
		SharpnessWeight: 1.0,
		ReadyThreshold:  0.4,
		MinSharpness:    0.3,
	}
	a := NewAssessor(cfg)

	flat := a.Assess(flatFrame())
	if flat.Overall != 0 {
		t.Errorf("expected 0 composite with sharpness-only weights, got %.3f", flat.Overall)
	}

	ramp := a.Assess(rampFrame())
	if ramp.Overall != ramp.Sharpness {
		t.Errorf("composite %.3f should equal sharpness %.3f under sharpness-only weights", ramp.Overall, ramp.Sharpness)
	}
}

func TestHardFailOverridesComposite(t *testing.T) {
	// Threshold of zero would pass everything on the composite alone; the
	// sharpness hard-fail must still gate.
	cfg := config.Default().Capture.Quality
	cfg.ReadyThreshold = 0
	a := NewAssessor(cfg)

	if a.Ready(a.Assess(flatFrame())) {
		t.Error("hard-fail rule must gate independently of the composite score")
	}
}

func TestFrameMetricsBounds(t *testing.T) {
	frames := []*RawFrame{rampFrame(), flatFrame(), darkFrame(), {Data: []byte{1, 2}}}
	a := defaultAssessor()

	for i, f := range frames {
		r := a.Assess(f)
		for name, v := range map[string]float64{
			"sharpness": r.Sharpness, "noise": r.Noise,
			"brightness": r.Brightness, "contrast": r.Contrast, "overall": r.Overall,
		} {
			if v < 0 || v > 1 {
				t.Errorf("frame %d: %s = %.3f outside [0,1]", i, name, v)
			}
		}
	}
}
