// File: api/session.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Session contract as seen by filters, handlers and applications.

package api

import (
	"net"
	"time"
)

// Session is one logical connection and its mutable state.
type Session interface {
	// ID returns the unique session identifier.
	ID() string
	LocalAddr() net.Addr
	RemoteAddr() net.Addr
	// ServiceAddr is the address of the service that owns the session.
	ServiceAddr() net.Addr
	CreationTime() time.Time

	Config() *SessionConfig
	Attributes() AttributeMap
	FilterChain() FilterChain
	Handler() Handler

	State() SessionState
	// IsConnected reports StateConnected.
	IsConnected() bool
	// IsClosing reports StateClosing or StateClosed.
	IsClosing() bool

	// Write schedules msg for delivery. It never panics: misuse and
	// closed sessions are reported through the returned future.
	Write(msg any) *WriteFuture
	// Close starts closing. When immediate is false pending writes are
	// flushed first. Repeated calls return the same close future.
	Close(immediate bool) *CloseFuture
	// CloseFuture completes once the session reaches StateClosed.
	CloseFuture() *CloseFuture

	SuspendRead()
	ResumeRead()
	SuspendWrite()
	ResumeWrite()
	IsReadSuspended() bool
	IsWriteSuspended() bool

	// Stats returns a snapshot of the session counters.
	Stats() SessionStats
	// IdleCount returns the consecutive idle events fired for status.
	IdleCount(status IdleStatus) uint64
}

// WriteRequest is an outbound message plus its completion handle.
type WriteRequest struct {
	message     any
	future      *WriteFuture
	destination net.Addr
	original    *WriteRequest
}

// NewWriteRequest wraps msg in a request with a fresh future.
func NewWriteRequest(msg any) *WriteRequest {
	return &WriteRequest{message: msg, future: NewFuture[struct{}]()}
}

// NewWriteRequestTo creates a request addressed to dest, used by
// datagram transports.
func NewWriteRequestTo(msg any, dest net.Addr) *WriteRequest {
	r := NewWriteRequest(msg)
	r.destination = dest
	return r
}

// Message returns the payload, possibly transformed by filters.
func (r *WriteRequest) Message() any { return r.message }

// Future returns the completion handle shared by derived requests.
func (r *WriteRequest) Future() *WriteFuture { return r.future }

// Destination returns the explicit destination, or nil.
func (r *WriteRequest) Destination() net.Addr { return r.destination }

// Original returns the request created by Session.Write, before any
// filter replaced the message.
func (r *WriteRequest) Original() *WriteRequest {
	if r.original == nil {
		return r
	}
	return r.original
}

// IsDerived reports whether r was produced by WithMessage.
func (r *WriteRequest) IsDerived() bool {
	return r.original != nil
}

// WithMessage derives a request carrying msg that shares future,
// destination and original with r.
func (r *WriteRequest) WithMessage(msg any) *WriteRequest {
	return &WriteRequest{
		message:     msg,
		future:      r.future,
		destination: r.destination,
		original:    r.Original(),
	}
}

// MessageSize returns the byte weight of msg used for scheduled-bytes
// accounting: []byte and string lengths, Len() for sized messages, else 0.
func MessageSize(msg any) int {
	switch m := msg.(type) {
	case []byte:
		return len(m)
	case string:
		return len(m)
	case interface{ Len() int }:
		return m.Len()
	default:
		return 0
	}
}
