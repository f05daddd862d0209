// File: filter/executor/executor.go
// Package executor moves filter chain events onto a worker pool.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Events of one session keep their order: each session owns an ordered
// queue whose drain loop runs on the pool. Events of different sessions
// run in parallel.

package executor

import (
	"github.com/samber/oops"
	"github.com/sirupsen/logrus"

	"github.com/momentics/hioload-mina/adapters"
	"github.com/momentics/hioload-mina/api"
	"github.com/momentics/hioload-mina/internal/concurrency"
)

// DefaultEvents are offloaded unless configured otherwise. Session
// creation stays on the caller so per-session setup finishes before any
// other event.
var DefaultEvents = api.NewEventSet(
	api.EventSessionOpened,
	api.EventSessionClosed,
	api.EventSessionIdle,
	api.EventExceptionCaught,
	api.EventMessageReceived,
	api.EventMessageSent,
)

// Config tunes a Filter.
type Config struct {
	// Executor runs the events. When nil the filter creates one with
	// Workers goroutines and closes it in Close.
	Executor api.Executor
	Workers  int
	// Pin locks each worker of an owned executor to one CPU.
	Pin    bool
	Events api.EventSet
	Logger *logrus.Logger
}

// DefaultConfig returns the default filter configuration.
func DefaultConfig() Config {
	return Config{Events: DefaultEvents, Logger: logrus.StandardLogger()}
}

type Option func(*Config)

// WithExecutor runs events on e.
func WithExecutor(e api.Executor) Option { return func(c *Config) { c.Executor = e } }

// WithWorkers sizes the executor the filter creates itself.
func WithWorkers(n int) Option { return func(c *Config) { c.Workers = n } }

// WithPinnedWorkers pins the workers of the executor the filter creates.
func WithPinnedWorkers() Option { return func(c *Config) { c.Pin = true } }

// WithEvents replaces the set of offloaded events.
func WithEvents(events ...api.EventType) Option {
	return func(c *Config) { c.Events = api.NewEventSet(events...) }
}

func WithLogger(l *logrus.Logger) Option { return func(c *Config) { c.Logger = l } }

// Filter hands selected events to an executor.
type Filter struct {
	exec   api.Executor
	owned  api.Executor
	events api.EventSet
	log    *logrus.Entry
	key    *api.Key[*concurrency.OrderedQueue]
}

var _ api.Filter = (*Filter)(nil)

// New creates an executor filter.
func New(opts ...Option) *Filter {
	cfg := DefaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	f := &Filter{
		exec:   cfg.Executor,
		events: cfg.Events,
		log:    cfg.Logger.WithField("filter", "executor"),
		key:    api.NewKey[*concurrency.OrderedQueue]("executor.queue"),
	}
	if f.exec == nil {
		var ex *adapters.ExecutorAdapter
		if cfg.Pin {
			ex = adapters.NewPinnedExecutorAdapter(cfg.Workers, 0, cfg.Logger)
		} else {
			ex = adapters.NewExecutorAdapter(cfg.Workers, 0, cfg.Logger)
		}
		f.exec, f.owned = ex, ex
	}
	return f
}

// Close shuts down an executor created by New. It waits for queued
// events to run.
func (f *Filter) Close() {
	if f.owned != nil {
		f.owned.Close()
	}
}

// Events returns the offloaded event set.
func (f *Filter) Events() api.EventSet { return f.events }

func (f *Filter) queue(s api.Session) *concurrency.OrderedQueue {
	if q, ok := f.key.Get(s.Attributes()); ok {
		return q
	}
	q, _ := f.key.SetIfAbsent(s.Attributes(), concurrency.NewOrderedQueueOn(f.exec.Submit, func(r any) {
		f.log.WithFields(logrus.Fields{"session": s.ID(), "panic": r}).Error("event panicked")
	}))
	return q
}

// dispatch runs task on the pool when ev is offloaded, inline otherwise.
func (f *Filter) dispatch(ev api.EventType, s api.Session, task func()) error {
	if !f.events.Has(ev) {
		task()
		return nil
	}
	if err := f.queue(s).Post(task); err != nil {
		return oops.In("executor").With("session", s.ID(), "event", ev.String()).Wrapf(err, "dispatch")
	}
	return nil
}

func (f *Filter) SessionCreated(next api.NextFilter, s api.Session) error {
	return f.dispatch(api.EventSessionCreated, s, func() { next.SessionCreated(s) })
}

func (f *Filter) SessionOpened(next api.NextFilter, s api.Session) error {
	return f.dispatch(api.EventSessionOpened, s, func() { next.SessionOpened(s) })
}

// SessionClosed falls back to inline delivery like ExceptionCaught: later
// filters and the handler must always see it.
func (f *Filter) SessionClosed(next api.NextFilter, s api.Session) error {
	if err := f.dispatch(api.EventSessionClosed, s, func() { next.SessionClosed(s) }); err != nil {
		f.log.WithError(err).Warn("delivering sessionClosed inline")
		next.SessionClosed(s)
	}
	return nil
}

func (f *Filter) SessionIdle(next api.NextFilter, s api.Session, status api.IdleStatus) error {
	return f.dispatch(api.EventSessionIdle, s, func() { next.SessionIdle(s, status) })
}

// ExceptionCaught falls back to inline delivery when the pool refuses the
// task, so the cause is never lost.
func (f *Filter) ExceptionCaught(next api.NextFilter, s api.Session, cause error) error {
	if err := f.dispatch(api.EventExceptionCaught, s, func() { next.ExceptionCaught(s, cause) }); err != nil {
		f.log.WithError(err).Warn("delivering exception inline")
		next.ExceptionCaught(s, cause)
	}
	return nil
}

func (f *Filter) MessageReceived(next api.NextFilter, s api.Session, msg any) error {
	return f.dispatch(api.EventMessageReceived, s, func() { next.MessageReceived(s, msg) })
}

func (f *Filter) MessageSent(next api.NextFilter, s api.Session, req *api.WriteRequest) error {
	return f.dispatch(api.EventMessageSent, s, func() { next.MessageSent(s, req) })
}

func (f *Filter) FilterWrite(next api.NextFilter, s api.Session, req *api.WriteRequest) error {
	return f.dispatch(api.EventFilterWrite, s, func() { next.FilterWrite(s, req) })
}

func (f *Filter) FilterClose(next api.NextFilter, s api.Session) error {
	return f.dispatch(api.EventFilterClose, s, func() { next.FilterClose(s) })
}
