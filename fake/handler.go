// File: fake/handler.go
// Package fake provides mock implementations for testing hioload-mina components.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package fake

import (
	"fmt"
	"sync"

	"github.com/momentics/hioload-mina/api"
)

// Event is one recorded callback.
type Event struct {
	Name    string
	Session string
	Status  api.IdleStatus
	Message any
	Err     error
}

func (e Event) String() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s(%v)", e.Name, e.Err)
	case e.Message != nil:
		return fmt.Sprintf("%s(%v)", e.Name, e.Message)
	case e.Name == "sessionIdle":
		return fmt.Sprintf("%s(%s)", e.Name, e.Status)
	default:
		return e.Name
	}
}

// Recorder is an ordered, concurrency-safe event log.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Record appends e.
func (r *Recorder) Record(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of the log.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Names returns the recorded event names in order.
func (r *Recorder) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Name
	}
	return out
}

// Count returns how many events named name were recorded.
func (r *Recorder) Count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Name == name {
			n++
		}
	}
	return n
}

// Messages returns the payloads of messageReceived events.
func (r *Recorder) Messages() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []any
	for _, e := range r.events {
		if e.Name == "messageReceived" {
			out = append(out, e.Message)
		}
	}
	return out
}

// Reset clears the log.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

// Handler implements api.Handler and records every call. The optional
// funcs run after recording and their errors are returned.
type Handler struct {
	Recorder

	OnCreated   func(s api.Session) error
	OnOpened    func(s api.Session) error
	OnClosed    func(s api.Session) error
	OnIdle      func(s api.Session, status api.IdleStatus) error
	OnException func(s api.Session, cause error) error
	OnReceived  func(s api.Session, msg any) error
	OnSent      func(s api.Session, msg any) error
}

var _ api.Handler = (*Handler)(nil)

// NewHandler creates a recording handler.
func NewHandler() *Handler {
	return &Handler{}
}

func (h *Handler) SessionCreated(s api.Session) error {
	h.Record(Event{Name: "sessionCreated", Session: s.ID()})
	if h.OnCreated != nil {
		return h.OnCreated(s)
	}
	return nil
}

func (h *Handler) SessionOpened(s api.Session) error {
	h.Record(Event{Name: "sessionOpened", Session: s.ID()})
	if h.OnOpened != nil {
		return h.OnOpened(s)
	}
	return nil
}

func (h *Handler) SessionClosed(s api.Session) error {
	h.Record(Event{Name: "sessionClosed", Session: s.ID()})
	if h.OnClosed != nil {
		return h.OnClosed(s)
	}
	return nil
}

func (h *Handler) SessionIdle(s api.Session, status api.IdleStatus) error {
	h.Record(Event{Name: "sessionIdle", Session: s.ID(), Status: status})
	if h.OnIdle != nil {
		return h.OnIdle(s, status)
	}
	return nil
}

func (h *Handler) ExceptionCaught(s api.Session, cause error) error {
	h.Record(Event{Name: "exceptionCaught", Session: s.ID(), Err: cause})
	if h.OnException != nil {
		return h.OnException(s, cause)
	}
	return nil
}

func (h *Handler) MessageReceived(s api.Session, msg any) error {
	h.Record(Event{Name: "messageReceived", Session: s.ID(), Message: msg})
	if h.OnReceived != nil {
		return h.OnReceived(s, msg)
	}
	return nil
}

func (h *Handler) MessageSent(s api.Session, msg any) error {
	h.Record(Event{Name: "messageSent", Session: s.ID(), Message: msg})
	if h.OnSent != nil {
		return h.OnSent(s, msg)
	}
	return nil
}
