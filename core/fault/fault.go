package fault

import (
	"errors"
	"fmt"
)

// Sentinel error kinds surfaced by services. Handlers map these to
// HTTP status codes; everything else is treated as an internal error.
var (
	// ErrNotFound indicates a referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidRange indicates a reservation window with end <= start.
	ErrInvalidRange = errors.New("invalid date range")
	// ErrConflict indicates an overlapping reservation or a state change
	// blocked by an open loan.
	ErrConflict = errors.New("conflict")
	// ErrValidation indicates missing or malformed input fields.
	ErrValidation = errors.New("validation failed")
)

// NotFoundf wraps ErrNotFound with context.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
}

// InvalidRangef wraps ErrInvalidRange with context.
func InvalidRangef(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrInvalidRange)...)
}

// Conflictf wraps ErrConflict with context.
func Conflictf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrConflict)...)
}

// Validationf wraps ErrValidation with context.
func Validationf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrValidation)...)
}

// Status returns the HTTP status code for an error based on its kind.
// Unknown errors map to 500.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return 404
	case errors.Is(err, ErrConflict):
		return 409
	case errors.Is(err, ErrInvalidRange), errors.Is(err, ErrValidation):
		return 400
	default:
		return 500
	}
}
