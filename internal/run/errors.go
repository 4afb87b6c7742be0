package run

import (
	"errors"
	"fmt"
)

// ValidationErrorCode categorizes model validation failures.
type ValidationErrorCode string

const (
	// ErrCodeUnknownStepType indicates a step type outside the closed enum.
	ErrCodeUnknownStepType ValidationErrorCode = "UNKNOWN_STEP_TYPE"

	// ErrCodeInvalidTimestamp indicates a run timestamp without an offset.
	ErrCodeInvalidTimestamp ValidationErrorCode = "INVALID_TIMESTAMP"

	// ErrCodeDuplicateStepID indicates two steps in a run share an id.
	ErrCodeDuplicateStepID ValidationErrorCode = "DUPLICATE_STEP_ID"

	// ErrCodeHashMismatch indicates a stored hash that no longer matches content.
	ErrCodeHashMismatch ValidationErrorCode = "HASH_MISMATCH"
)

// ValidationError is returned when a Step or Run violates the data model.
type ValidationError struct {
	Code    ValidationErrorCode
	Field   string
	Message string

	// StepID identifies the offending step, if any.
	StepID string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.StepID != "" {
		return fmt.Sprintf("%s: %s: %s (step=%s)", e.Code, e.Field, e.Message, e.StepID)
	}
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Field, e.Message)
}

// IsValidationError reports whether err wraps a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
