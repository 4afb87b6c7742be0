package canon

import (
	"errors"
	"fmt"
)

// CanonicalizationError is returned when a value has no canonical form,
// e.g. a NaN or infinite float.
type CanonicalizationError struct {
	// Path is the JSON pointer of the offending value, empty for the root.
	Path string

	// Reason is a human-readable description.
	Reason string
}

// Error implements the error interface.
func (e *CanonicalizationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("canonicalization failed at %s: %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("canonicalization failed: %s", e.Reason)
}

// IsCanonicalizationError reports whether err wraps a CanonicalizationError.
func IsCanonicalizationError(err error) bool {
	var ce *CanonicalizationError
	return errors.As(err, &ce)
}
