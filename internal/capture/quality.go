// Watchpost - Continuous Sensor Monitoring and Analysis Pipeline
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package capture

import (
	"fmt"
	"math"

	"github.com/watchpost/watchpost/internal/config"
	"github.com/watchpost/watchpost/internal/models"
)

// Assessor scores frame quality as a weighted composite over sharpness,
// noise, brightness and contrast. Weights and gates come from configuration;
// the defaults are heuristic, not tuned.
type Assessor struct {
	cfg config.QualityConfig
}

// NewAssessor creates an assessor with the given quality configuration.
func NewAssessor(cfg config.QualityConfig) *Assessor {
	return &Assessor{cfg: cfg}
}

// Assess computes the composite quality report for a frame. The report
// carries both the score and the specific failing sub-metrics, so a caller
// can always explain why an item was gated.
func (a *Assessor) Assess(frame *RawFrame) models.QualityReport {
	sharpness, noise, brightness, contrast := frameMetrics(frame.Data)

	overall := a.cfg.SharpnessWeight*sharpness +
		a.cfg.NoiseWeight*(1-noise) +
		a.cfg.BrightnessWeight*math.Min(2*brightness, 1) +
		a.cfg.ContrastWeight*contrast

	report := models.QualityReport{
		Sharpness:  sharpness,
		Noise:      noise,
		Brightness: brightness,
		Contrast:   contrast,
		Overall:    clamp01(overall),
	}

	if sharpness < a.cfg.MinSharpness {
		report.Issues = append(report.Issues,
			fmt.Sprintf("sharpness %.2f below minimum %.2f", sharpness, a.cfg.MinSharpness))
		report.Suggestions = append(report.Suggestions, "check focus or clean the sensor optics")
	}
	if brightness < 0.15 {
		report.Issues = append(report.Issues, fmt.Sprintf("underexposed (brightness %.2f)", brightness))
		report.Suggestions = append(report.Suggestions, "improve scene lighting or increase exposure")
	}
	if brightness > 0.9 {
		report.Issues = append(report.Issues, fmt.Sprintf("overexposed (brightness %.2f)", brightness))
		report.Suggestions = append(report.Suggestions, "reduce exposure or enable backlight compensation")
	}
	if noise > 0.5 {
		report.Issues = append(report.Issues, fmt.Sprintf("high noise (%.2f)", noise))
		report.Suggestions = append(report.Suggestions, "reduce sensor gain")
	}
	if contrast < 0.1 {
		report.Issues = append(report.Issues, fmt.Sprintf("low contrast (%.2f)", contrast))
	}
	if report.Overall < a.cfg.ReadyThreshold {
		report.Issues = append(report.Issues,
			fmt.Sprintf("composite score %.2f below ready threshold %.2f", report.Overall, a.cfg.ReadyThreshold))
	}

	return report
}

// Ready applies the analysis gate: composite score at or above the threshold
// and no hard-fail sub-metric. Gated items are retained, never dropped.
func (a *Assessor) Ready(report models.QualityReport) bool {
	return report.Overall >= a.cfg.ReadyThreshold && report.Sharpness >= a.cfg.MinSharpness
}

// frameMetrics derives the four sub-metrics from raw frame bytes.
// Brightness is the mean level, contrast the spread, sharpness the mean
// adjacent-sample delta, and noise the mean second difference (texture that
// is not edges). All normalized into [0,1].
func frameMetrics(data []byte) (sharpness, noise, brightness, contrast float64) {
	if len(data) < 3 {
		return 0, 1, 0, 0
	}

	var sum float64
	for _, b := range data {
		sum += float64(b)
	}
	mean := sum / float64(len(data))
	brightness = mean / 255

	var variance, firstDiff, secondDiff float64
	for i, b := range data {
		d := float64(b) - mean
		variance += d * d
		if i > 0 {
			firstDiff += math.Abs(float64(data[i]) - float64(data[i-1]))
		}
		if i > 1 {
			secondDiff += math.Abs(float64(data[i]) - 2*float64(data[i-1]) + float64(data[i-2]))
		}
	}
	variance /= float64(len(data))
	contrast = clamp01(math.Sqrt(variance) / 128)
	sharpness = clamp01(firstDiff / float64(len(data)-1) / 64)
	noise = clamp01(secondDiff / float64(len(data)-2) / 96)
	return sharpness, noise, brightness, contrast
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
