// File: api/control.go
// Package api
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Control contract for runtime metrics and debug introspection.

package api

// Control exposes runtime metrics and debug probes.
type Control interface {
	// Stats returns metrics merged with probe output under "debug.".
	Stats() map[string]any

	// SetMetric stores a gauge value.
	SetMetric(key string, value any)

	// AddMetric adds delta to an integer counter and returns the new value.
	AddMetric(key string, delta int64) int64

	// RegisterDebugProbe adds a named runtime probe.
	RegisterDebugProbe(name string, fn func() any)
}
