package trusty

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest rejects a decision request with a missing field. It
	// is always raised before any store access.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrStoreUnavailable wraps any failure reaching the directory store. It
	// is distinct from a deny decision: callers get either a definite
	// boolean or this error, never a coerced false.
	ErrStoreUnavailable = errors.New("directory store unavailable")

	// ErrNotFound reports a missing tenant, user, or role on the
	// administrative surface.
	ErrNotFound = errors.New("not found")
)

// ValidationError rejects malformed administrative input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s %s", e.Field, e.Reason)
}

func validationErr(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func storeFailure(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
}
