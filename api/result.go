// File: api/result.go
// Package api
// Author: momentics@gmail.com
// License: Apache-2.0
//
// Generic result, error propagation and cancellation.

package api

// Result wraps any payload or error.
type Result[T any] struct {
	Value T
	Err   error
}

// OK reports whether the result carries no error.
func (r Result[T]) OK() bool {
	return r.Err == nil
}

// Cancelable is any operation that may be canceled.
type Cancelable interface {
	// Cancel attempts to abort the operation. It reports whether the
	// operation was still pending, i.e. whether Cancel prevented it.
	Cancel() bool
	// Done signals completion/cancellation.
	Done() <-chan struct{}
	// Err returns cancellation reason.
	Err() error
}
