package replay

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes replay configuration failures.
type ErrorCode string

const (
	// ErrCodeInvalidSeed indicates a seed that is not an integer.
	ErrCodeInvalidSeed ErrorCode = "INVALID_SEED"

	// ErrCodeInvalidClock indicates a fixed clock that is missing, naive or unparsable.
	ErrCodeInvalidClock ErrorCode = "INVALID_CLOCK"

	// ErrCodeEmptyPolicy indicates a hybrid selector with no step types and no step ids.
	ErrCodeEmptyPolicy ErrorCode = "EMPTY_POLICY"

	// ErrCodeInvalidPolicy indicates a selector naming an unknown step type.
	ErrCodeInvalidPolicy ErrorCode = "INVALID_POLICY"

	// ErrCodeAlignmentMismatch indicates source and rerun step counts differ
	// under strict alignment.
	ErrCodeAlignmentMismatch ErrorCode = "ALIGNMENT_MISMATCH"

	// ErrCodeStepTypeMismatch indicates a selected position whose source and
	// rerun step types differ.
	ErrCodeStepTypeMismatch ErrorCode = "STEP_TYPE_MISMATCH"

	// ErrCodeNoSelection indicates a selector that matched no source step.
	ErrCodeNoSelection ErrorCode = "NO_SELECTION"

	// ErrCodeMissingRerunStep indicates a selected position beyond the end of
	// the rerun (relaxed alignment only).
	ErrCodeMissingRerunStep ErrorCode = "MISSING_RERUN_STEP"
)

// ConfigurationError is returned when a replay request cannot be honored.
// Replay fails fast: no partial run is returned alongside it.
type ConfigurationError struct {
	Code    ErrorCode
	Message string

	// StepIndex is the 1-based source position involved, if any.
	StepIndex int

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.StepIndex > 0 {
		msg = fmt.Sprintf("%s (step=%d)", msg, e.StepIndex)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// IsConfigurationError reports whether err wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// HasCode reports whether err wraps a ConfigurationError with the given code.
func HasCode(err error, code ErrorCode) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce) && ce.Code == code
}
