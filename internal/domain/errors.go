package domain

import "errors"

// Domain errors returned by repository implementations and the scheduling engine.

var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrGardenNotFound indicates the specified garden does not exist or is inactive.
	ErrGardenNotFound = errors.New("garden not found")

	// ErrTaskNotFound indicates the specified task does not exist.
	ErrTaskNotFound = errors.New("task not found")

	// ErrInvalidID indicates the provided ID format is invalid.
	ErrInvalidID = errors.New("invalid ID format")

	// ErrInvalidInput indicates a malformed value (enum, date, quantity).
	ErrInvalidInput = errors.New("invalid input")
)

// TransientError marks a store failure as retryable.
// Wrap transient database errors so callers can apply the retry-once policy.
type TransientError struct {
	Err error
}

func (e TransientError) Error() string {
	return "transient: " + e.Err.Error()
}

func (e TransientError) Unwrap() error {
	return e.Err
}

// Transient wraps an error as retryable. Returns nil for nil input.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return TransientError{Err: err}
}

// IsTransient reports whether err (or any wrapped error) is retryable.
func IsTransient(err error) bool {
	var te TransientError
	return errors.As(err, &te)
}
