// File: session/doc.go
// Package session
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Session state and lifecycle layer.
// Each Session maps to one transport-level connection and owns its
// attribute store, write request queue and filter chain.
//
// Lifecycle is monotonic: created, connected, closing, closed. Inbound
// events for one session are delivered in order, one at a time; events
// of different sessions run concurrently.

package session
