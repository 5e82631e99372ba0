// Watchpost - Continuous Sensor Monitoring and Analysis Pipeline
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package models

import (
	"errors"
	"fmt"
)

// ErrorCode classifies pipeline failures. The code determines retry policy:
// transient failures may be retried by the owning stage, busy failures may be
// retried by the caller, validation and unrecoverable failures are never
// retried, and quota failures are fatal to the write but not the process.
type ErrorCode string

const (
	ErrCodeTransient     ErrorCode = "transient"
	ErrCodeBusy          ErrorCode = "busy"
	ErrCodeQuotaExceeded ErrorCode = "quota_exceeded"
	ErrCodeValidation    ErrorCode = "validation_failed"
	ErrCodeUnrecoverable ErrorCode = "unrecoverable"
)

// Sentinel errors for the pipeline error taxonomy. Callers match with
// errors.Is; structured details travel in PipelineError.
var (
	// ErrBusy is returned by single-flight gates when an operation is
	// already in progress. Callers may retry later; requests are never queued.
	ErrBusy = errors.New("operation already in flight")

	// ErrQuotaExceeded is returned when a write would exceed the storage
	// quota even after retention cleanup has run.
	ErrQuotaExceeded = errors.New("storage quota exceeded")

	// ErrValidationFailed indicates a malformed request that must not be retried.
	ErrValidationFailed = errors.New("validation failed")

	// ErrManualOverrideDisabled is returned when a manual capture is
	// requested but the scheduler's manual override flag is off.
	ErrManualOverrideDisabled = errors.New("manual override disabled")

	// ErrNotFound is returned by storage lookups for missing keys.
	ErrNotFound = errors.New("record not found")
)

// PipelineError is the structured failure carried across stage boundaries.
// Every final failure surfaces one of these; stages never swallow a failure
// silently.
type PipelineError struct {
	Code        ErrorCode `json:"code"`
	Message     string    `json:"message"`
	Recoverable bool      `json:"recoverable"`
	Err         error     `json:"-"`
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// Is maps error codes onto the sentinel errors so callers can use errors.Is
// without inspecting codes.
func (e *PipelineError) Is(target error) bool {
	switch target {
	case ErrBusy:
		return e.Code == ErrCodeBusy
	case ErrQuotaExceeded:
		return e.Code == ErrCodeQuotaExceeded
	case ErrValidationFailed:
		return e.Code == ErrCodeValidation
	}
	return false
}

// NewTransientError wraps a retryable upstream failure.
func NewTransientError(msg string, err error) *PipelineError {
	return &PipelineError{Code: ErrCodeTransient, Message: msg, Recoverable: true, Err: err}
}

// NewValidationError wraps a malformed-request failure. Never retried.
func NewValidationError(msg string, err error) *PipelineError {
	return &PipelineError{Code: ErrCodeValidation, Message: msg, Recoverable: false, Err: err}
}

// NewUnrecoverableError wraps a permanent upstream failure.
func NewUnrecoverableError(msg string, err error) *PipelineError {
	return &PipelineError{Code: ErrCodeUnrecoverable, Message: msg, Recoverable: false, Err: err}
}

// AsPipelineError extracts a PipelineError from an error chain, or wraps the
// error as transient if it carries no classification.
func AsPipelineError(err error) *PipelineError {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe
	}
	return NewTransientError(err.Error(), err)
}
