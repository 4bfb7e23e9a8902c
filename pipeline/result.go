// Package pipeline drives a deposited check through its stages: ingest,
// image transform, OCR, MICR parse, recording, and deposit processing.
// Each stage is safe to re-run; the orchestrator decides retry vs. abort
// from the error classification the stage reports.
package pipeline

import (
	"errors"
	"fmt"
)

// Stage names, carried on errors and log lines.
const (
	StageIngest    = "ingest"
	StageTransform = "transform"
	StageParse     = "parse"
	StageCleanup   = "cleanup"
	StageRecord    = "record"
)

// RetryableError marks a transient stage failure: network faults,
// collaborator 5xx responses, codec hiccups. The record keeps its current
// status and the stage is re-run under the retry policy.
type RetryableError struct {
	Stage string
	Err   error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *RetryableError) Unwrap() error { return e.Err }

// FatalError marks a failure that retrying cannot fix within this
// invocation: contract violations, unsupported formats, malformed names.
// The record is left unchanged for manual inspection.
type FatalError struct {
	Stage string
	Err   error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// Retryable wraps err as transient for the named stage.
func Retryable(stage string, err error) error {
	return &RetryableError{Stage: stage, Err: err}
}

// Fatal wraps err as non-retryable for the named stage.
func Fatal(stage string, err error) error {
	return &FatalError{Stage: stage, Err: err}
}

// IsFatal reports whether err carries a FatalError anywhere in its chain.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}
