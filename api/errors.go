// File: api/errors.go
// Package api
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Common error types and error handling utilities for hioload-mina.

package api

import (
	"errors"
	"fmt"
)

// Common errors used across the library.
var (
	ErrSessionClosed     = errors.New("session is closed")
	ErrWriteDiscarded    = errors.New("write request discarded by immediate close")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrDuplicateFilter   = errors.New("filter name already exists in chain")
	ErrFilterNotFound    = errors.New("filter not found in chain")
	ErrRequestTimeout    = errors.New("request timed out")
	ErrRequestCanceled   = errors.New("request cancelled")
	ErrExecutorClosed    = errors.New("executor is closed")
	ErrSchedulerStopped  = errors.New("scheduler is stopped")
	ErrServiceDisposed   = errors.New("service is disposed")
	ErrResourceExhausted = errors.New("resource exhausted")
	ErrNotSupported      = errors.New("operation not supported")
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeInvalidArgument
	ErrCodeSessionClosed
	ErrCodeTimeout
	ErrCodeCanceled
	ErrCodeNotSupported
	ErrCodeAlreadyExists
	ErrCodeNotFound
	ErrCodeTransport
	ErrCodeProtocol
	ErrCodeInternal
)

// String returns the symbolic name of the code.
func (c ErrorCode) String() string {
	switch c {
	case ErrCodeOK:
		return "ok"
	case ErrCodeInvalidArgument:
		return "invalid_argument"
	case ErrCodeSessionClosed:
		return "session_closed"
	case ErrCodeTimeout:
		return "timeout"
	case ErrCodeCanceled:
		return "canceled"
	case ErrCodeNotSupported:
		return "not_supported"
	case ErrCodeAlreadyExists:
		return "already_exists"
	case ErrCodeNotFound:
		return "not_found"
	case ErrCodeTransport:
		return "transport"
	case ErrCodeProtocol:
		return "protocol"
	default:
		return "internal"
	}
}

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if len(e.Context) == 0 {
		return msg
	}
	return fmt.Sprintf("%s (context: %+v)", msg, e.Context)
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// WrapError creates a structured error around cause.
func WrapError(code ErrorCode, cause error, message string) *Error {
	e := NewError(code, message)
	e.Cause = cause
	return e
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// CodeOf extracts the ErrorCode carried by err, or ErrCodeInternal when
// none is found. A nil error maps to ErrCodeOK.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrCodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	switch {
	case errors.Is(err, ErrSessionClosed), errors.Is(err, ErrWriteDiscarded):
		return ErrCodeSessionClosed
	case errors.Is(err, ErrRequestTimeout):
		return ErrCodeTimeout
	case errors.Is(err, ErrRequestCanceled):
		return ErrCodeCanceled
	case errors.Is(err, ErrInvalidArgument):
		return ErrCodeInvalidArgument
	case errors.Is(err, ErrDuplicateFilter):
		return ErrCodeAlreadyExists
	case errors.Is(err, ErrFilterNotFound):
		return ErrCodeNotFound
	case errors.Is(err, ErrNotSupported):
		return ErrCodeNotSupported
	}
	return ErrCodeInternal
}
