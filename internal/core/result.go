// Package core provides the request dispatch and error propagation
// primitives shared by the bot and worker processes. All recoverable
// failures cross layer boundaries as a Result carrying a UseCaseError;
// panics are reserved for programming errors and are converted to
// Err(UNEXPECTED) at the handler boundary.
package core

import "fmt"

// Unit is the payload type for results that carry no value.
type Unit struct{}

// Result represents the outcome of a use case execution: either a
// success value or a UseCaseError, never both.
type Result[T any] struct {
	value T
	err   *UseCaseError
}

// Ok creates a successful result.
func Ok[T any](value T) Result[T] {
	return Result[T]{value: value}
}

// Err creates a failed result.
func Err[T any](err *UseCaseError) Result[T] {
	if err == nil {
		panic("core: Err called with nil error")
	}
	return Result[T]{err: err}
}

// IsOK returns true if the result is a success.
func (r Result[T]) IsOK() bool {
	return r.err == nil
}

// IsErr returns true if the result is a failure.
func (r Result[T]) IsErr() bool {
	return r.err != nil
}

// Value returns the success value. Check IsOK first; the zero value is
// returned for failed results.
func (r Result[T]) Value() T {
	return r.value
}

// Error returns the error for a failed result, nil otherwise.
func (r Result[T]) Error() *UseCaseError {
	return r.err
}

// UnwrapOr returns the success value or the provided default on failure.
func (r Result[T]) UnwrapOr(defaultValue T) T {
	if r.err != nil {
		return defaultValue
	}
	return r.value
}

// MustValue returns the success value or panics. Calling it on a failed
// result is a programming error, not a recoverable condition.
func (r Result[T]) MustValue() T {
	if r.err != nil {
		panic(fmt.Sprintf("core: MustValue on failed result: %v", r.err))
	}
	return r.value
}

// Map transforms a successful result's value and passes failures
// through untouched.
func Map[T, U any](r Result[T], fn func(T) U) Result[U] {
	if r.err != nil {
		return Err[U](r.err)
	}
	return Ok(fn(r.value))
}

// FlatMap chains result-returning operations, short-circuiting on the
// first failure.
func FlatMap[T, U any](r Result[T], fn func(T) Result[U]) Result[U] {
	if r.err != nil {
		return Err[U](r.err)
	}
	return fn(r.value)
}
