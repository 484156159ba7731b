package contract

import "errors"

// Failure taxonomy. Validation, NotFound and Conflict raised by a tool are
// fed back into the loop as observations; Exhausted and Timeout terminate
// the loop with a deterministic fallback reply; Upstream failures at the
// classification step trigger the handler-fallback path.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrExhausted  = errors.New("iteration budget exhausted")
	ErrTimeout    = errors.New("reasoning deadline exceeded")
	ErrUpstream   = errors.New("upstream failure")
)

// Recoverable reports whether a tool error should continue the loop as an
// observation rather than abort it.
func Recoverable(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict)
}
