// Package common provides shared utilities and types used across the pipeline.
package common

import (
	"errors"
	"fmt"
)

// Fatal pipeline errors. Per-record and per-bucket problems are handled by
// tagging (see model.ReasonCode); these abort the whole run, because a
// partial artifact is worse than a visible failure.
var (
	// ErrGeographyConflict indicates overlapping validity intervals for one
	// station in the geography reference table.
	ErrGeographyConflict = errors.New("geography conflict")

	// ErrConsistency indicates a hierarchical consistency mismatch after
	// accumulation: coarser buckets disagree with the sum of their children.
	ErrConsistency = errors.New("internal consistency check failed")

	// ErrMissingReference indicates a required reference table could not be
	// loaded.
	ErrMissingReference = errors.New("missing reference table")

	// ErrIncompleteBucket indicates the artifact writer was handed a bucket
	// missing required fields.
	ErrIncompleteBucket = errors.New("incomplete bucket")

	// ErrInvalidConfig indicates an unusable configuration value.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// UserError wraps an error with a message suitable for terminal output.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{UserMessage: userMessage, Err: err}
}
