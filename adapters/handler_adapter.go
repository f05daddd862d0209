// File: adapters/handler_adapter.go
// Package adapters
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Handler glue: a no-op base handler and a function-table handler.

package adapters

import (
	"github.com/momentics/hioload-mina/api"
)

// HandlerAdapter ignores every event, exceptions included. Embed it and
// override what you need.
type HandlerAdapter struct{}

var _ api.Handler = HandlerAdapter{}

func (HandlerAdapter) SessionCreated(api.Session) error              { return nil }
func (HandlerAdapter) SessionOpened(api.Session) error               { return nil }
func (HandlerAdapter) SessionClosed(api.Session) error               { return nil }
func (HandlerAdapter) SessionIdle(api.Session, api.IdleStatus) error { return nil }
func (HandlerAdapter) ExceptionCaught(api.Session, error) error      { return nil }
func (HandlerAdapter) MessageReceived(api.Session, any) error        { return nil }
func (HandlerAdapter) MessageSent(api.Session, any) error            { return nil }

// MessageFunc handles inbound messages.
type MessageFunc func(s api.Session, msg any) error

// HandlerFuncs builds a handler from optional functions. Nil entries
// ignore their event.
type HandlerFuncs struct {
	Created   func(s api.Session) error
	Opened    func(s api.Session) error
	Closed    func(s api.Session) error
	Idle      func(s api.Session, status api.IdleStatus) error
	Exception func(s api.Session, cause error) error
	Received  MessageFunc
	Sent      func(s api.Session, msg any) error
}

var _ api.Handler = (*HandlerFuncs)(nil)

// OnMessage returns a handler that only handles inbound messages.
func OnMessage(fn MessageFunc) *HandlerFuncs {
	return &HandlerFuncs{Received: fn}
}

func (h *HandlerFuncs) SessionCreated(s api.Session) error {
	if h.Created == nil {
		return nil
	}
	return h.Created(s)
}

func (h *HandlerFuncs) SessionOpened(s api.Session) error {
	if h.Opened == nil {
		return nil
	}
	return h.Opened(s)
}

func (h *HandlerFuncs) SessionClosed(s api.Session) error {
	if h.Closed == nil {
		return nil
	}
	return h.Closed(s)
}

func (h *HandlerFuncs) SessionIdle(s api.Session, status api.IdleStatus) error {
	if h.Idle == nil {
		return nil
	}
	return h.Idle(s, status)
}

func (h *HandlerFuncs) ExceptionCaught(s api.Session, cause error) error {
	if h.Exception == nil {
		return nil
	}
	return h.Exception(s, cause)
}

func (h *HandlerFuncs) MessageReceived(s api.Session, msg any) error {
	if h.Received == nil {
		return nil
	}
	return h.Received(s, msg)
}

func (h *HandlerFuncs) MessageSent(s api.Session, msg any) error {
	if h.Sent == nil {
		return nil
	}
	return h.Sent(s, msg)
}
