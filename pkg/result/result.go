// Package result provides the success/failure envelope returned by every
// gateway operation.
//
// A Result carries either a value or an ErrorInfo describing an expected,
// classified failure (a constraint violation, a syntax error, a closed
// transaction). Unexpected faults are never stored in a Result; they travel
// as the ordinary Go error returned next to it.
package result

// Result is either Ok(value) or Err(info).
type Result[T any] struct {
	value T
	err   *ErrorInfo
}

// Ok wraps a successful value.
func Ok[T any](v T) Result[T] {
	return Result[T]{value: v}
}

// Err wraps a classified failure.
func Err[T any](info ErrorInfo) Result[T] {
	return Result[T]{err: &info}
}

// IsOk reports whether the result holds a value.
func (r Result[T]) IsOk() bool {
	return r.err == nil
}

// Value returns the success payload. It is the zero value for failures.
func (r Result[T]) Value() T {
	return r.value
}

// Error returns the failure, or nil for a successful result.
func (r Result[T]) Error() *ErrorInfo {
	return r.err
}

// Unwrap returns both halves of the result.
func (r Result[T]) Unwrap() (T, *ErrorInfo) {
	return r.value, r.err
}

// Map transforms the success payload of r with fn. Failures pass through
// unchanged and fn is not called.
func Map[T, U any](r Result[T], fn func(T) U) Result[U] {
	if r.err != nil {
		return Result[U]{err: r.err}
	}
	return Ok(fn(r.value))
}
