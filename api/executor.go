// File: api/executor.go
// Package api
// Author: momentics
// License: Apache-2.0
//
// Executor contract for parallel task dispatch.

package api

// Executor abstracts parallel task execution.
type Executor interface {
	// Submit schedules task for execution.
	Submit(task func()) error

	// NumWorkers returns current number of active worker routines.
	NumWorkers() int

	// Close stops accepting tasks and releases workers.
	Close()
}
