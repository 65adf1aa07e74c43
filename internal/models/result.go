package models

// Result is the outcome of a call to an external provider. Callers decide
// what to do with a failure instead of the provider swallowing it.
type Result[T any] struct {
	Value T
	Err   error
}

func Success[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

func Failure[T any](err error) Result[T] {
	return Result[T]{Err: err}
}

func (r Result[T]) OK() bool {
	return r.Err == nil
}

// OrElse returns the value on success and fallback otherwise.
func (r Result[T]) OrElse(fallback T) T {
	if r.Err != nil {
		return fallback
	}
	return r.Value
}
