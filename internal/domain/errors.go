package domain

import (
	"errors"
	"fmt"
)

var (
	ErrImageNotFound     = errors.New("image not found")
	ErrInvalidFormat     = errors.New("invalid or unsupported image format")
	ErrFileTooLarge      = errors.New("file size exceeds maximum allowed")
	ErrInvalidImageData  = errors.New("invalid image data")
	ErrQueueFailed       = errors.New("queue operation failed")
	ErrAlreadyProcessing = errors.New("image is already being processed")

	ErrUnknownKind      = errors.New("unknown transformation kind")
	ErrSessionNotFound  = errors.New("session not found")
	ErrInvalidState     = errors.New("operation not allowed in current session state")
	ErrCommitInProgress = errors.New("commit already in progress")
	ErrCommitCancelled  = errors.New("commit cancelled")
	ErrEmptyQueue       = errors.New("transformation queue is empty")
	ErrQueueFrozen      = errors.New("transformation queue is frozen by an in-flight commit")
	ErrVersionConflict  = errors.New("image was modified by another commit")
	ErrLockBusy         = errors.New("image is locked by another commit")
	ErrEmptyResult      = errors.New("operation produced an empty image")

	ErrUnknownDraftField = errors.New("unknown draft field")
	ErrInvalidDraftValue = errors.New("invalid draft value")
	ErrInvalidDescriptor = errors.New("malformed transformation descriptor")
)

type ValidationReason string

const (
	ReasonOutOfBounds       ValidationReason = "out_of_bounds"
	ReasonRange             ValidationReason = "range"
	ReasonEmpty             ValidationReason = "empty"
	ReasonUnsupportedFormat ValidationReason = "unsupported_format"
	ReasonUnknownFilter     ValidationReason = "unknown_filter"
	ReasonInvalidDimensions ValidationReason = "invalid_dimensions"
	ReasonUnknownKind       ValidationReason = "unknown_kind"
)

// ValidationError rejects a descriptor before it reaches a queue.
type ValidationError struct {
	Kind   Kind
	Reason ValidationReason
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid %s: %s: %s", e.Kind, e.Reason, e.Detail)
	}
	return fmt.Sprintf("invalid %s.%s: %s: %s", e.Kind, e.Field, e.Reason, e.Detail)
}

// ExecutorError is a failure reported by the operation executor for one step.
type ExecutorError struct {
	Kind  Kind
	Cause error
}

func (e *ExecutorError) Error() string {
	return fmt.Sprintf("executor %s: %v", e.Kind, e.Cause)
}

func (e *ExecutorError) Unwrap() error {
	return e.Cause
}

// PipelineError reports the first failing step of a commit. FailedAt is the
// zero-based queue index of that step.
type PipelineError struct {
	FailedAt int
	Kind     Kind
	Cause    error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline failed at step %d (%s): %v", e.FailedAt, e.Kind, e.Cause)
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}
