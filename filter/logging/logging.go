// File: filter/logging/logging.go
// Package logging logs every session event passing through a chain.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Each event has its own logrus level. Setting a level of None silences
// that event. The filter never changes propagation.

package logging

import (
	"fmt"
	"math/bits"

	"github.com/sirupsen/logrus"

	"github.com/momentics/hioload-mina/api"
)

// None disables logging of an event.
const None logrus.Level = logrus.TraceLevel + 1

// Config tunes a Filter.
type Config struct {
	Logger *logrus.Logger
	Name   string
	Levels map[api.EventType]logrus.Level
}

// DefaultConfig logs every event at Info, exceptions at Warn.
func DefaultConfig() Config {
	levels := make(map[api.EventType]logrus.Level, len(api.EventTypes))
	for _, ev := range api.EventTypes {
		levels[ev] = logrus.InfoLevel
	}
	levels[api.EventExceptionCaught] = logrus.WarnLevel
	return Config{Logger: logrus.StandardLogger(), Name: "logging", Levels: levels}
}

type Option func(*Config)

func WithLogger(l *logrus.Logger) Option { return func(c *Config) { c.Logger = l } }

// WithName sets the "filter" field of every entry.
func WithName(name string) Option { return func(c *Config) { c.Name = name } }

// WithLevel sets the level for ev. Pass None to disable it.
func WithLevel(ev api.EventType, lvl logrus.Level) Option {
	return func(c *Config) { c.Levels[ev] = lvl }
}

// Filter logs events and forwards them unchanged.
type Filter struct {
	log    *logrus.Entry
	levels [16]logrus.Level
}

var _ api.Filter = (*Filter)(nil)

// New creates a logging filter.
func New(opts ...Option) *Filter {
	cfg := DefaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	f := &Filter{log: cfg.Logger.WithField("filter", cfg.Name)}
	for i := range f.levels {
		f.levels[i] = None
	}
	for ev, lvl := range cfg.Levels {
		f.levels[bit(ev)] = lvl
	}
	return f
}

// Level returns the level ev is logged at.
func (f *Filter) Level(ev api.EventType) logrus.Level {
	return f.levels[bit(ev)]
}

func bit(ev api.EventType) int {
	return bits.TrailingZeros16(uint16(ev)) & 15
}

func (f *Filter) emit(ev api.EventType, s api.Session, fields logrus.Fields, msg string) {
	lvl := f.levels[bit(ev)]
	if lvl == None || !f.log.Logger.IsLevelEnabled(lvl) {
		return
	}
	e := f.log.WithFields(logrus.Fields{"session": s.ID(), "event": ev.String()})
	if addr := s.RemoteAddr(); addr != nil {
		e = e.WithField("remote", addr.String())
	}
	if len(fields) > 0 {
		e = e.WithFields(fields)
	}
	e.Log(lvl, msg)
}

func describe(msg any) logrus.Fields {
	return logrus.Fields{"type": fmt.Sprintf("%T", msg), "size": api.MessageSize(msg)}
}

func (f *Filter) SessionCreated(next api.NextFilter, s api.Session) error {
	f.emit(api.EventSessionCreated, s, nil, "created")
	next.SessionCreated(s)
	return nil
}

func (f *Filter) SessionOpened(next api.NextFilter, s api.Session) error {
	f.emit(api.EventSessionOpened, s, nil, "opened")
	next.SessionOpened(s)
	return nil
}

func (f *Filter) SessionClosed(next api.NextFilter, s api.Session) error {
	f.emit(api.EventSessionClosed, s, nil, "closed")
	next.SessionClosed(s)
	return nil
}

func (f *Filter) SessionIdle(next api.NextFilter, s api.Session, status api.IdleStatus) error {
	f.emit(api.EventSessionIdle, s, logrus.Fields{"status": status.String(), "count": s.IdleCount(status)}, "idle")
	next.SessionIdle(s, status)
	return nil
}

func (f *Filter) ExceptionCaught(next api.NextFilter, s api.Session, cause error) error {
	f.emit(api.EventExceptionCaught, s, logrus.Fields{logrus.ErrorKey: cause}, "exception")
	next.ExceptionCaught(s, cause)
	return nil
}

func (f *Filter) MessageReceived(next api.NextFilter, s api.Session, msg any) error {
	f.emit(api.EventMessageReceived, s, describe(msg), "received")
	next.MessageReceived(s, msg)
	return nil
}

func (f *Filter) MessageSent(next api.NextFilter, s api.Session, req *api.WriteRequest) error {
	f.emit(api.EventMessageSent, s, describe(req.Message()), "sent")
	next.MessageSent(s, req)
	return nil
}

func (f *Filter) FilterWrite(next api.NextFilter, s api.Session, req *api.WriteRequest) error {
	f.emit(api.EventFilterWrite, s, describe(req.Message()), "write")
	next.FilterWrite(s, req)
	return nil
}

func (f *Filter) FilterClose(next api.NextFilter, s api.Session) error {
	f.emit(api.EventFilterClose, s, nil, "close")
	next.FilterClose(s)
	return nil
}
