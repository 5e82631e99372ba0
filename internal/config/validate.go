// Watchpost - Continuous Sensor Monitoring and Analysis Pipeline
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package config

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags plus the cross-field rules the tags cannot
// express. All violations are aggregated into one error.
func (c *Config) Validate() error {
	var errs []error

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs = append(errs, fmt.Errorf("%s: failed %q validation", fe.Namespace(), fe.Tag()))
			}
		} else {
			errs = append(errs, err)
		}
	}

	for name, w := range map[string]WindowConfig{"day": c.Scheduler.Day, "night": c.Scheduler.Night} {
		if w.Enabled && w.Interval <= 0 {
			errs = append(errs, fmt.Errorf("scheduler.%s.interval must be positive", name))
		}
	}

	q := c.Capture.Quality
	weightSum := q.SharpnessWeight + q.NoiseWeight + q.BrightnessWeight + q.ContrastWeight
	if math.Abs(weightSum-1.0) > 0.001 {
		errs = append(errs, fmt.Errorf("capture.quality weights must sum to 1.0, got %.3f", weightSum))
	}

	if c.Report.WarningConfidence > c.Report.NormalConfidence {
		errs = append(errs, errors.New("report.warning_confidence must not exceed report.normal_confidence"))
	}

	if c.Analysis.MaxProcessTime <= 0 {
		errs = append(errs, errors.New("analysis.max_process_time must be positive"))
	}

	if c.Storage.CleanupInterval <= 0 {
		errs = append(errs, errors.New("storage.cleanup_interval must be positive"))
	}

	return errors.Join(errs...)
}
