// File: api/future.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Completion handle for asynchronous operations (write, close, request).
// Supports both blocking waits and listener callbacks.

package api

import (
	"context"
	"sync"
)

// Future holds exactly one terminal outcome. The first Resolve or Reject
// wins; later calls are ignored and report false.
type Future[T any] struct {
	mu        sync.Mutex
	done      chan struct{}
	result    Result[T]
	completed bool
	listeners []func(Result[T])
}

// WriteFuture completes when a write request is written or fails.
type WriteFuture = Future[struct{}]

// CloseFuture completes when a session reaches StateClosed.
type CloseFuture = Future[struct{}]

// NewFuture creates a pending future.
func NewFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolved returns a future already completed with v.
func Resolved[T any](v T) *Future[T] {
	f := NewFuture[T]()
	f.Resolve(v)
	return f
}

// Rejected returns a future already failed with err.
func Rejected[T any](err error) *Future[T] {
	f := NewFuture[T]()
	f.Reject(err)
	return f
}

// Resolve completes the future successfully.
func (f *Future[T]) Resolve(v T) bool {
	return f.complete(Result[T]{Value: v})
}

// Reject completes the future with err. A nil err is replaced by
// ErrInvalidArgument so a rejected future never looks successful.
func (f *Future[T]) Reject(err error) bool {
	if err == nil {
		err = ErrInvalidArgument
	}
	return f.complete(Result[T]{Err: err})
}

func (f *Future[T]) complete(r Result[T]) bool {
	f.mu.Lock()
	if f.completed {
		f.mu.Unlock()
		return false
	}
	f.completed = true
	f.result = r
	listeners := f.listeners
	f.listeners = nil
	close(f.done)
	f.mu.Unlock()

	for _, fn := range listeners {
		fn(r)
	}
	return true
}

// Done returns a channel closed on completion.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// IsDone reports whether the future has completed.
func (f *Future[T]) IsDone() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Result returns the outcome and whether it is available yet.
func (f *Future[T]) Result() (Result[T], bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result, f.completed
}

// Err returns the failure cause, or nil when pending or successful.
func (f *Future[T]) Err() error {
	r, _ := f.Result()
	return r.Err
}

// Await blocks until completion or until ctx is done.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		r, _ := f.Result()
		return r.Value, r.Err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// AddListener registers fn to run on completion. When the future is
// already complete fn runs immediately on the calling goroutine.
func (f *Future[T]) AddListener(fn func(Result[T])) {
	f.mu.Lock()
	if !f.completed {
		f.listeners = append(f.listeners, fn)
		f.mu.Unlock()
		return
	}
	r := f.result
	f.mu.Unlock()
	fn(r)
}
