// File: api/handler.go
// Package api defines the terminal Handler interface.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// Handler consumes inbound events at the tail of a filter chain. An
// error returned from any method is redelivered as ExceptionCaught; an
// error from ExceptionCaught itself closes the session immediately.
type Handler interface {
	SessionCreated(s Session) error
	SessionOpened(s Session) error
	SessionClosed(s Session) error
	SessionIdle(s Session, status IdleStatus) error
	ExceptionCaught(s Session, cause error) error
	MessageReceived(s Session, msg any) error
	MessageSent(s Session, msg any) error
}
