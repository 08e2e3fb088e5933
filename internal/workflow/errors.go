package workflow

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrDirectoryUnavailable is returned when doors could not be loaded.
	ErrDirectoryUnavailable = errors.New("directory unavailable")
	// ErrScanFailed is returned when an NFC scan did not yield a tag.
	ErrScanFailed = errors.New("scan failed")
	// ErrScanDiscarded completes a scan whose door was deselected, changed
	// method or reset while the scan was in flight.
	ErrScanDiscarded = errors.New("scan discarded")
	// ErrNotFound is returned for unknown workflow ids.
	ErrNotFound = errors.New("workflow not found")
)

// ValidationError describes incomplete or invalid local state. It is always
// recoverable by further input.
type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Reason
}

// Is makes errors.Is(err, ErrValidation) work.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Outcome aggregates the per-door results of a submission.
type Outcome string

const (
	OutcomeAllSucceeded   Outcome = "all_succeeded"
	OutcomePartialFailure Outcome = "partial_failure"
	OutcomeAllFailed      Outcome = "all_failed"
)

// SubmissionError reports the doors the backend did not accept. Doors not
// listed succeeded and were cleared.
type SubmissionError struct {
	Outcome       Outcome
	FailedDoorIDs []string
	Causes        map[string]error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission %s: failed doors [%s]", e.Outcome, strings.Join(e.FailedDoorIDs, ", "))
}
