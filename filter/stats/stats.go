// File: filter/stats/stats.go
// Package stats counts session traffic into an api.Control.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package stats

import (
	"github.com/momentics/hioload-mina/api"
)

// Metric keys written by the filter.
const (
	SessionsOpened   = "sessions.opened"
	SessionsClosed   = "sessions.closed"
	SessionsActive   = "sessions.active"
	MessagesReceived = "messages.received"
	MessagesSent     = "messages.sent"
	BytesReceived    = "bytes.received"
	BytesSent        = "bytes.sent"
	Exceptions       = "exceptions"
)

// IdleKey returns the counter key for idle events of status.
func IdleKey(status api.IdleStatus) string {
	return "idle." + status.String()
}

// Filter updates counters and forwards every event.
type Filter struct {
	api.FilterAdapter
	ctrl   api.Control
	prefix string
}

var _ api.Filter = (*Filter)(nil)

// New creates a filter that counts into ctrl. prefix, when not empty, is
// prepended to every key with a dot.
func New(ctrl api.Control, prefix string) *Filter {
	if prefix != "" {
		prefix += "."
	}
	return &Filter{ctrl: ctrl, prefix: prefix}
}

func (f *Filter) add(key string, delta int64) {
	f.ctrl.AddMetric(f.prefix+key, delta)
}

func (f *Filter) SessionOpened(next api.NextFilter, s api.Session) error {
	f.add(SessionsOpened, 1)
	f.add(SessionsActive, 1)
	next.SessionOpened(s)
	return nil
}

func (f *Filter) SessionClosed(next api.NextFilter, s api.Session) error {
	f.add(SessionsClosed, 1)
	f.add(SessionsActive, -1)
	next.SessionClosed(s)
	return nil
}

func (f *Filter) SessionIdle(next api.NextFilter, s api.Session, status api.IdleStatus) error {
	f.add(IdleKey(status), 1)
	next.SessionIdle(s, status)
	return nil
}

func (f *Filter) ExceptionCaught(next api.NextFilter, s api.Session, cause error) error {
	f.add(Exceptions, 1)
	next.ExceptionCaught(s, cause)
	return nil
}

func (f *Filter) MessageReceived(next api.NextFilter, s api.Session, msg any) error {
	f.add(MessagesReceived, 1)
	if n := api.MessageSize(msg); n > 0 {
		f.add(BytesReceived, int64(n))
	}
	next.MessageReceived(s, msg)
	return nil
}

func (f *Filter) MessageSent(next api.NextFilter, s api.Session, req *api.WriteRequest) error {
	f.add(MessagesSent, 1)
	if n := api.MessageSize(req.Message()); n > 0 {
		f.add(BytesSent, int64(n))
	}
	next.MessageSent(s, req)
	return nil
}
