// Watchpost - Continuous Sensor Monitoring and Analysis Pipeline
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/watchpost/watchpost/internal/models"
)

// Format names a report export encoding.
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
)

// ParseFormat maps a request parameter onto a Format. Empty defaults to JSON.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	default:
		return "", models.NewValidationError(fmt.Sprintf("unknown report format %q", s), nil)
	}
}

// ContentType returns the MIME type for a format.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	default:
		return "application/json; charset=utf-8"
	}
}

// Export encodes concise reports in the requested format.
func Export(reports []*models.ConciseReport, format Format) ([]byte, error) {
	switch format {
	case FormatCSV:
		return exportCSV(reports)
	case FormatMarkdown:
		return exportMarkdown(reports), nil
	default:
		return json.MarshalIndent(reports, "", "  ")
	}
}

func exportCSV(reports []*models.ConciseReport) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"id", "result_id", "generated_at", "alert_level", "confidence", "summary", "next_action"}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("writing csv header: %w", err)
	}
	for _, r := range reports {
		row := []string{
			r.ID,
			r.ResultID,
			r.GeneratedAt.Format(time.RFC3339),
			string(r.AlertLevel),
			fmt.Sprintf("%.2f", r.Confidence),
			r.Summary,
			r.NextAction,
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("writing csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func exportMarkdown(reports []*models.ConciseReport) []byte {
	var b strings.Builder
	b.WriteString("# Watchpost Reports\n\n")
	for _, r := range reports {
		fmt.Fprintf(&b, "## %s — %s\n\n", r.GeneratedAt.Format(time.RFC3339), strings.ToUpper(string(r.AlertLevel)))
		fmt.Fprintf(&b, "%s\n\n", r.Summary)
		if len(r.KeyFindings) > 0 {
			b.WriteString("Key findings:\n\n")
			for _, f := range r.KeyFindings {
				fmt.Fprintf(&b, "- %s\n", f)
			}
			b.WriteString("\n")
		}
		if r.NextAction != "" {
			fmt.Fprintf(&b, "Next action: %s\n\n", r.NextAction)
		}
	}
	return []byte(b.String())
}
