// File: session/write_queue.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// FIFO of pending outbound write requests with scheduled-bytes accounting.

package session

import (
	"sync"

	"github.com/eapache/queue"

	"github.com/momentics/hioload-mina/api"
)

// WriteQueue holds requests between the head of the filter chain and the
// transport. Any goroutine may Offer; the transport is the only consumer.
// The backing ring buffer doubles when full and halves once it drops to a
// quarter of its capacity, never below 16 slots.
type WriteQueue struct {
	mu     sync.Mutex
	q      *queue.Queue
	bytes  uint64
	closed error
}

// NewWriteQueue creates an empty queue.
func NewWriteQueue() *WriteQueue {
	return &WriteQueue{q: queue.New()}
}

// Offer appends req. It fails with the close cause once Close has run.
func (w *WriteQueue) Offer(req *api.WriteRequest) error {
	if req == nil {
		return api.ErrInvalidArgument
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed != nil {
		return w.closed
	}
	w.q.Add(req)
	w.bytes += uint64(api.MessageSize(req.Message()))
	return nil
}

// Poll removes and returns the oldest request, or nil when empty.
func (w *WriteQueue) Poll() *api.WriteRequest {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pollLocked()
}

func (w *WriteQueue) pollLocked() *api.WriteRequest {
	if w.q.Length() == 0 {
		return nil
	}
	req := w.q.Remove().(*api.WriteRequest)
	size := uint64(api.MessageSize(req.Message()))
	if size > w.bytes {
		size = w.bytes
	}
	w.bytes -= size
	return req
}

// Peek returns the oldest request without removing it.
func (w *WriteQueue) Peek() *api.WriteRequest {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.q.Length() == 0 {
		return nil
	}
	return w.q.Peek().(*api.WriteRequest)
}

// Len returns the number of queued requests.
func (w *WriteQueue) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.q.Length()
}

// IsEmpty reports whether nothing is queued.
func (w *WriteQueue) IsEmpty() bool {
	return w.Len() == 0
}

// ScheduledBytes returns the byte weight of queued requests.
func (w *WriteQueue) ScheduledBytes() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.bytes
}

// ScheduledCount returns the number of queued requests.
func (w *WriteQueue) ScheduledCount() uint64 {
	return uint64(w.Len())
}

// Discard removes every queued request and rejects its future with cause.
// It returns the number of discarded requests.
func (w *WriteQueue) Discard(cause error) int {
	w.mu.Lock()
	var dropped []*api.WriteRequest
	for req := w.pollLocked(); req != nil; req = w.pollLocked() {
		dropped = append(dropped, req)
	}
	w.mu.Unlock()

	// reject outside the lock: listeners may write again
	for _, req := range dropped {
		req.Future().Reject(cause)
	}
	return len(dropped)
}

// Close discards queued requests and refuses further offers with cause.
func (w *WriteQueue) Close(cause error) int {
	if cause == nil {
		cause = api.ErrSessionClosed
	}
	w.mu.Lock()
	if w.closed == nil {
		w.closed = cause
	}
	w.mu.Unlock()
	return w.Discard(cause)
}
