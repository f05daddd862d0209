// File: api/scheduler.go
// Package api
// Author: momentics
// License: Apache-2.0
//
// Scheduler contract for timed job execution.

package api

import "time"

// Scheduler abstracts timer scheduling for async loops.
type Scheduler interface {
	// Schedule runs fn once after delay.
	Schedule(delay time.Duration, fn func()) (Cancelable, error)

	// Now returns the scheduler clock.
	Now() time.Time
}
