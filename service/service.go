// File: service/service.go
// Package service ties sessions to their shared infrastructure.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// A Service owns the handler, the filter chain template, the idle checker,
// the managed-session registry and the statistics of every session a
// transport creates through it. Binding and accepting connections is left
// to the transports.

package service

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/oops"
	"github.com/sirupsen/logrus"

	"github.com/momentics/hioload-mina/adapters"
	"github.com/momentics/hioload-mina/api"
	"github.com/momentics/hioload-mina/control"
	"github.com/momentics/hioload-mina/filter/stats"
	"github.com/momentics/hioload-mina/filterchain"
	"github.com/momentics/hioload-mina/idle"
	"github.com/momentics/hioload-mina/session"
)

// Metric keys maintained by the service itself.
const (
	MetricCreated   = "service.sessions.created"
	MetricDestroyed = "service.sessions.destroyed"
	MetricManaged   = "service.sessions.managed"
)

// Listener observes service and session lifecycle.
type Listener interface {
	ServiceActivated(sv *Service)
	ServiceDisposed(sv *Service)
	SessionCreated(s *session.Session)
	SessionDestroyed(s *session.Session)
}

// ListenerFuncs implements Listener with optional functions.
type ListenerFuncs struct {
	Activated func(sv *Service)
	Disposed  func(sv *Service)
	Created   func(s *session.Session)
	Destroyed func(s *session.Session)
}

func (l *ListenerFuncs) ServiceActivated(sv *Service) {
	if l.Activated != nil {
		l.Activated(sv)
	}
}

func (l *ListenerFuncs) ServiceDisposed(sv *Service) {
	if l.Disposed != nil {
		l.Disposed(sv)
	}
}

func (l *ListenerFuncs) SessionCreated(s *session.Session) {
	if l.Created != nil {
		l.Created(s)
	}
}

func (l *ListenerFuncs) SessionDestroyed(s *session.Session) {
	if l.Destroyed != nil {
		l.Destroyed(s)
	}
}

// Service creates and manages sessions.
type Service struct {
	cfg      Config
	handler  api.Handler
	builder  *filterchain.Builder
	idle     *idle.Checker
	sessions *session.Registry
	ctrl     *adapters.ControlAdapter
	log      *logrus.Entry

	mu        sync.Mutex
	listeners []Listener

	started  atomic.Bool
	disposed atomic.Bool
}

// New creates a service delivering session events to handler.
func New(handler api.Handler, opts ...Option) (*Service, error) {
	if handler == nil {
		return nil, oops.In("service").Wrapf(api.ErrInvalidArgument, "nil handler")
	}
	cfg := DefaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.SessionConfig == nil {
		cfg.SessionConfig = api.DefaultSessionConfig()
	}
	if cfg.IdleInterval < 0 {
		return nil, oops.In("service").Wrapf(api.ErrInvalidArgument, "idle interval %s", cfg.IdleInterval)
	}

	sv := &Service{
		cfg:      cfg,
		handler:  handler,
		builder:  filterchain.NewBuilder(),
		idle:     idle.NewChecker(idle.WithResolution(cfg.IdleResolution), idle.WithLogger(cfg.Logger)),
		sessions: session.NewRegistry(cfg.Shards),
		ctrl:     adapters.NewControlAdapter(),
		log:      cfg.Logger.WithField("service", cfg.Name),
	}
	if cfg.Statistics {
		if err := sv.builder.AddFirst("stats", stats.New(sv.ctrl, "")); err != nil {
			return nil, err
		}
	}
	sv.ctrl.RegisterDebugProbe(control.ProbeIdleTracked, func() any { return sv.idle.Len() })
	sv.ctrl.RegisterDebugProbe(control.ProbeSessionsManaged, func() any { return sv.sessions.Len() })
	if st, ok := cfg.Executor.(interface{ Stats() map[string]int64 }); ok {
		sv.ctrl.RegisterDebugProbe(control.ProbeExecutor, func() any { return st.Stats() })
	}
	return sv, nil
}

// Handler returns the handler shared by all sessions.
func (sv *Service) Handler() api.Handler { return sv.handler }

// FilterChain returns the template applied to new sessions. Changes do
// not affect sessions that already exist.
func (sv *Service) FilterChain() *filterchain.Builder { return sv.builder }

// SessionConfig returns the template cloned into new sessions.
func (sv *Service) SessionConfig() *api.SessionConfig { return sv.cfg.SessionConfig }

// IdleChecker returns the checker tracking this service's sessions.
func (sv *Service) IdleChecker() *idle.Checker { return sv.idle }

// Control returns the service metrics and probes.
func (sv *Service) Control() api.Control { return sv.ctrl }

// Address returns the configured service address, or nil.
func (sv *Service) Address() net.Addr { return sv.cfg.Address }

// Logger returns the service logger.
func (sv *Service) Logger() *logrus.Logger { return sv.cfg.Logger }

// AddListener registers l. Listeners are called in registration order.
func (sv *Service) AddListener(l Listener) {
	sv.mu.Lock()
	sv.listeners = append(sv.listeners, l)
	sv.mu.Unlock()
}

// RemoveListener unregisters l.
func (sv *Service) RemoveListener(l Listener) {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	for i, x := range sv.listeners {
		if x == l {
			sv.listeners = append(sv.listeners[:i:i], sv.listeners[i+1:]...)
			return
		}
	}
}

func (sv *Service) notify(event string, fn func(l Listener)) {
	sv.mu.Lock()
	ls := append([]Listener(nil), sv.listeners...)
	sv.mu.Unlock()
	for _, l := range ls {
		err := oops.In("service").With("event", event).Recoverf(func() { fn(l) }, "listener panicked")
		if err != nil {
			sv.log.WithError(err).Error("listener")
		}
	}
}

// NewSession creates a managed session for a transport connection. The
// session has the service filters installed and is still in
// StateCreated; the transport calls Open once it is ready for traffic.
func (sv *Service) NewSession(proc session.Processor, local, remote net.Addr) (*session.Session, error) {
	if sv.disposed.Load() {
		return nil, api.ErrServiceDisposed
	}
	s, err := session.New(session.Params{
		Processor:   proc,
		Handler:     sv.handler,
		Config:      sv.cfg.SessionConfig.Clone(),
		LocalAddr:   local,
		RemoteAddr:  remote,
		ServiceAddr: sv.cfg.Address,
		Idle:        sv.idle,
		Executor:    sv.cfg.Executor,
		OnDestroy:   sv.destroyed,
		Logger:      sv.cfg.Logger,
		Clock:       sv.cfg.Clock,
	})
	if err != nil {
		return nil, err
	}
	if err := sv.builder.BuildChain(s.Chain()); err != nil {
		return nil, oops.In("service").With("session", s.ID()).Wrapf(err, "build chain")
	}
	if err := sv.sessions.Add(s); err != nil {
		return nil, err
	}
	// Dispose may have run between the first check and Add.
	if sv.disposed.Load() {
		sv.sessions.Remove(s.ID())
		return nil, api.ErrServiceDisposed
	}
	sv.ctrl.AddMetric(MetricCreated, 1)
	sv.notify("sessionCreated", func(l Listener) { l.SessionCreated(s) })
	return s, nil
}

func (sv *Service) destroyed(s *session.Session) {
	if !sv.sessions.Remove(s.ID()) {
		return
	}
	sv.ctrl.AddMetric(MetricDestroyed, 1)
	sv.notify("sessionDestroyed", func(l Listener) { l.SessionDestroyed(s) })
}

// Session returns the managed session with id.
func (sv *Service) Session(id string) (*session.Session, bool) {
	return sv.sessions.Get(id)
}

// ManagedSessions returns a snapshot of the live sessions.
func (sv *Service) ManagedSessions() []*session.Session {
	out := make([]*session.Session, 0, sv.sessions.Len())
	sv.sessions.Range(func(s *session.Session) bool {
		out = append(out, s)
		return true
	})
	return out
}

// SessionCount returns the number of live sessions.
func (sv *Service) SessionCount() int { return sv.sessions.Len() }

// Broadcast writes msg to every connected session.
func (sv *Service) Broadcast(msg any) []*api.WriteFuture {
	var futures []*api.WriteFuture
	sv.sessions.Range(func(s *session.Session) bool {
		if s.IsConnected() {
			futures = append(futures, s.Write(msg))
		}
		return true
	})
	return futures
}

// ProcessIdleSessions runs one idle sweep at now and returns the number
// of idle events fired.
func (sv *Service) ProcessIdleSessions(now time.Time) int {
	return sv.idle.ProcessIdleSessions(now)
}

// Start activates the service and, when configured, the idle sweep.
func (sv *Service) Start() error {
	if sv.disposed.Load() {
		return api.ErrServiceDisposed
	}
	if !sv.started.CompareAndSwap(false, true) {
		return oops.In("service").Wrapf(api.ErrInvalidArgument, "already started")
	}
	if sv.cfg.IdleInterval > 0 {
		if err := sv.idle.Start(sv.cfg.IdleInterval); err != nil {
			sv.started.Store(false)
			return err
		}
	}
	sv.log.Info("service activated")
	sv.notify("serviceActivated", func(l Listener) { l.ServiceActivated(sv) })
	return nil
}

// IsActive reports whether Start succeeded and Dispose was not called.
func (sv *Service) IsActive() bool { return sv.started.Load() && !sv.disposed.Load() }

// IsDisposed reports whether Dispose was called.
func (sv *Service) IsDisposed() bool { return sv.disposed.Load() }

// Dispose closes every managed session immediately, stops the idle sweep
// and waits until the sessions are closed or ctx ends. Later calls return
// nil at once.
func (sv *Service) Dispose(ctx context.Context) error {
	if !sv.disposed.CompareAndSwap(false, true) {
		return nil
	}
	sv.idle.Stop()
	var futures []*api.CloseFuture
	for _, s := range sv.ManagedSessions() {
		futures = append(futures, s.Close(true))
	}
	var err error
	for _, f := range futures {
		if _, werr := f.Await(ctx); werr != nil {
			err = oops.In("service").With("pending", sv.sessions.Len()).Wrapf(werr, "dispose")
			break
		}
	}
	sv.log.WithField("sessions", len(futures)).Info("service disposed")
	sv.notify("serviceDisposed", func(l Listener) { l.ServiceDisposed(sv) })
	return err
}

// Stats returns service metrics, probe output and the managed count.
func (sv *Service) Stats() map[string]any {
	out := sv.ctrl.Stats()
	out[MetricManaged] = sv.sessions.Len()
	return out
}
