package services

import (
	"errors"
	"fmt"

	"watch-match-backend/internal/kv"
)

// Error taxonomy surfaced to callers. Handlers map these to HTTP status codes.
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrInvalidReaction = fmt.Errorf("%w: unrecognized reaction", ErrInvalidInput)
	ErrForbidden       = errors.New("forbidden")
	ErrStorage         = errors.New("storage failure")
)

// invalid tags a validation failure
func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// classify tags a repository error as NotFound or StorageFailure
func classify(op string, err error) error {
	if errors.Is(err, kv.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, op)
	}
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
