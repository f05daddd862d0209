// File: control/doc.go
// Package control
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Runtime metrics and debug introspection layer.
//
// Provides concurrent-safe state handling primitives including:
//   - Metrics counters and gauges with snapshot reads
//   - State export, debug hooks, and probe registration
//   - Platform and Go runtime probes
//
// This package is cross-platform and build-tag-partitioned as needed.
package control
