// Watchpost - Continuous Sensor Monitoring and Analysis Pipeline
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

// Package report turns analysis results into human-facing reports: a concise
// alert-graded summary, a detailed report with historical trends, and
// machine-readable exports.
package report

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/watchpost/watchpost/internal/config"
	"github.com/watchpost/watchpost/internal/logging"
	"github.com/watchpost/watchpost/internal/models"
)

// summaryTemplates are keyed by alert level. Placeholder substitution happens
// before length enforcement so a truncated summary never contains a split
// placeholder.
var summaryTemplates = map[models.AlertLevel]string{
	models.AlertLevelNormal:   "All clear: {summary} (confidence {confidence})",
	models.AlertLevelWarning:  "Attention: {summary} (confidence {confidence})",
	models.AlertLevelCritical: "ALERT: {summary} (confidence {confidence})",
}

const failedSummary = "analysis did not complete: {error}"

// Generator assembles reports from analysis results. Generated reports are
// immutable; the generator keeps a bounded history of concise reports for the
// presentation layer.
type Generator struct {
	cfg config.ReportConfig

	mu      sync.Mutex
	history []*models.ConciseReport
	maxHist int
}

// NewGenerator creates a report generator.
func NewGenerator(cfg config.ReportConfig, historySize int) *Generator {
	if historySize < 1 {
		historySize = 1
	}
	return &Generator{cfg: cfg, maxHist: historySize}
}

// Concise produces the short summary report for a result. The summary is the
// level-keyed template with placeholders substituted, then hard-truncated to
// the configured maximum.
func (g *Generator) Concise(result *models.AnalysisResult) *models.ConciseReport {
	level := g.alertLevel(result)

	var summary string
	if result.Success {
		summary = substitute(summaryTemplates[level], map[string]string{
			"summary":    result.Summary,
			"confidence": fmt.Sprintf("%.0f%%", result.Confidence*100),
		})
	} else {
		reason := "unknown failure"
		if result.Error != nil {
			reason = result.Error.Message
		}
		summary = substitute(failedSummary, map[string]string{"error": reason})
	}

	report := &models.ConciseReport{
		ID:          uuid.New().String(),
		ResultID:    result.ID,
		Summary:     truncate(summary, g.cfg.MaxConciseLength),
		AlertLevel:  level,
		Confidence:  result.Confidence,
		KeyFindings: keyFindings(result),
		NextAction:  nextAction(result, level),
		GeneratedAt: time.Now().UTC(),
	}

	g.mu.Lock()
	g.history = append(g.history, report)
	if len(g.history) > g.maxHist {
		g.history = g.history[1:]
	}
	g.mu.Unlock()

	logging.Debug().
		Str("report_id", report.ID).
		Str("result_id", result.ID).
		Str("alert_level", string(level)).
		Msg("concise report generated")
	return report
}

// Detailed produces the full report. previous is the prior successful result
// for trend comparison, or nil when none exists; in that case the comparison
// fields are explicitly null rather than fabricated.
func (g *Generator) Detailed(result *models.AnalysisResult, previous *models.AnalysisResult) *models.DetailedReport {
	concise := g.Concise(result)

	detailed := &models.DetailedReport{
		ConciseReport:    *concise,
		ExecutiveSummary: executiveSummary(result),
		BehaviorPatterns: result.Findings,
		Trends:           buildTrends(result, previous),
		RawData:          result.Raw,
	}
	return detailed
}

// alertLevel grades a result by its confidence against the configured cut
// points. Failed analyses are always critical.
func (g *Generator) alertLevel(result *models.AnalysisResult) models.AlertLevel {
	switch {
	case !result.Success:
		return models.AlertLevelCritical
	case result.Confidence >= g.cfg.NormalConfidence:
		return models.AlertLevelNormal
	case result.Confidence >= g.cfg.WarningConfidence:
		return models.AlertLevelWarning
	default:
		return models.AlertLevelCritical
	}
}

// Recent returns up to n concise reports, newest first.
func (g *Generator) Recent(n int) []*models.ConciseReport {
	g.mu.Lock()
	defer g.mu.Unlock()

	if n > len(g.history) {
		n = len(g.history)
	}
	out := make([]*models.ConciseReport, 0, n)
	for i := len(g.history) - 1; i >= len(g.history)-n; i-- {
		out = append(out, g.history[i])
	}
	return out
}

func buildTrends(result, previous *models.AnalysisResult) models.Trends {
	if previous == nil {
		return models.Trends{}
	}

	delta := result.Confidence - previous.Confidence
	var comparison string
	switch {
	case delta > 0.05:
		comparison = fmt.Sprintf("confidence improved by %.0f points since the previous analysis", delta*100)
	case delta < -0.05:
		comparison = fmt.Sprintf("confidence dropped by %.0f points since the previous analysis", -delta*100)
	default:
		comparison = "consistent with the previous analysis"
	}
	return models.Trends{
		ComparisonToPrevious: &comparison,
		ConfidenceDelta:      &delta,
	}
}

func executiveSummary(result *models.AnalysisResult) string {
	if !result.Success {
		reason := "an unknown failure"
		if result.Error != nil {
			reason = result.Error.Message
		}
		return fmt.Sprintf("The scheduled analysis did not complete due to %s.", reason)
	}
	return fmt.Sprintf("%s Input quality averaged %.0f%% across the batch; analysis completeness scored %.0f%%.",
		result.Summary, result.DataQuality*100, result.AnalysisQuality*100)
}

func keyFindings(result *models.AnalysisResult) []string {
	const maxKey = 3
	if len(result.Findings) <= maxKey {
		return result.Findings
	}
	return result.Findings[:maxKey]
}

func nextAction(result *models.AnalysisResult, level models.AlertLevel) string {
	if len(result.Recommendations) > 0 {
		return result.Recommendations[0]
	}
	if level == models.AlertLevelCritical {
		return "investigate the failed analysis"
	}
	return ""
}

// substitute replaces {name} placeholders with their values. Unknown
// placeholders are left intact so a template mistake is visible, not silent.
func substitute(template string, values map[string]string) string {
	out := template
	for name, value := range values {
		out = strings.ReplaceAll(out, "{"+name+"}", value)
	}
	return out
}

// truncate enforces the concise length cap. Truncated summaries end with
// "..." and never exceed max, including the ellipsis.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
