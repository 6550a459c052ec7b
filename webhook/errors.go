package webhook

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when an operation references an unknown
// subscriber or delivery id.
var ErrNotFound = errors.New("not found")

// ValidationError reports malformed registration or update input.
// It is surfaced synchronously to the caller and never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
