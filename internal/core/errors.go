package core

import "fmt"

// ErrorKind categorizes a use case failure. The kind decides how a
// caller reacts: validation and not-found errors are surfaced without
// retry, concurrency conflicts are retried once with fresh state, and
// unexpected errors are logged and surfaced as a generic failure.
type ErrorKind int

const (
	// KindValidation is bad input. Never retried.
	KindValidation ErrorKind = iota

	// KindNotFound is a missing aggregate. Never retried.
	KindNotFound

	// KindConcurrencyConflict is an optimistic-lock collision on commit.
	// The caller should retry the handler once with fresh state.
	KindConcurrencyConflict

	// KindUnexpected is an infrastructure fault. Logged and surfaced as
	// a generic failure, never silently swallowed.
	KindUnexpected
)

// String returns the wire name of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "VALIDATION"
	case KindNotFound:
		return "NOT_FOUND"
	case KindConcurrencyConflict:
		return "CONCURRENCY_CONFLICT"
	case KindUnexpected:
		return "UNEXPECTED"
	default:
		return "UNKNOWN"
	}
}

// UseCaseError is the sole failure type crossing layer boundaries.
// The message is the whole diagnostic payload; no stack traces travel
// between layers.
type UseCaseError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// Error implements the error interface.
func (e *UseCaseError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Kind.String(), e.Message)
}

// ValidationError creates a VALIDATION error.
func ValidationError(format string, args ...any) *UseCaseError {
	return &UseCaseError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError creates a NOT_FOUND error.
func NotFoundError(format string, args ...any) *UseCaseError {
	return &UseCaseError{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// ConcurrencyError creates a CONCURRENCY_CONFLICT error.
func ConcurrencyError(format string, args ...any) *UseCaseError {
	return &UseCaseError{Kind: KindConcurrencyConflict, Message: fmt.Sprintf(format, args...)}
}

// UnexpectedError creates an UNEXPECTED error.
func UnexpectedError(format string, args ...any) *UseCaseError {
	return &UseCaseError{Kind: KindUnexpected, Message: fmt.Sprintf(format, args...)}
}
