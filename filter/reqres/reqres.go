// File: filter/reqres/reqres.go
// Package reqres correlates outbound requests with inbound responses.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Every pending request ends in exactly one outcome: matched response,
// timeout, write failure or cancellation. Each path first removes the
// pending entry under the table lock and acts only if it won the removal.

package reqres

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/oops"
	"github.com/sirupsen/logrus"

	"github.com/momentics/hioload-mina/api"
	"github.com/momentics/hioload-mina/internal/concurrency"
)

// ErrDuplicateRequest rejects a request whose id is already pending.
var ErrDuplicateRequest = errors.New("request id already pending")

// Request is an outbound message with a correlation id. A nil ID is
// replaced by a generated uint64.
type Request struct {
	ID      any
	Message any
}

func (r *Request) String() string {
	return fmt.Sprintf("request(%v)", r.ID)
}

// Response is a matched reply.
type Response struct {
	RequestID any
	Message   any
}

// Inspector extracts the correlation id carried by an inbound message.
type Inspector interface {
	ResponseID(msg any) (id any, ok bool)
}

// InspectorFunc adapts a function to Inspector.
type InspectorFunc func(msg any) (any, bool)

func (f InspectorFunc) ResponseID(msg any) (any, bool) { return f(msg) }

// Config tunes a Filter.
type Config struct {
	// Scheduler runs timeouts. When nil the filter starts its own and
	// stops it in Close.
	Scheduler api.Scheduler
	// DefaultTimeout applies when Request is called with timeout 0.
	// Zero means requests without a timeout never expire.
	DefaultTimeout time.Duration
	Logger         *logrus.Logger
}

// DefaultConfig returns a configuration with no default timeout.
func DefaultConfig() Config {
	return Config{Logger: logrus.StandardLogger()}
}

// Option mutates a Config.
type Option func(*Config)

func WithScheduler(s api.Scheduler) Option      { return func(c *Config) { c.Scheduler = s } }
func WithDefaultTimeout(d time.Duration) Option { return func(c *Config) { c.DefaultTimeout = d } }
func WithLogger(l *logrus.Logger) Option        { return func(c *Config) { c.Logger = l } }

// Filter is the correlating filter. One instance may serve many sessions;
// pending requests are kept per session in a session attribute.
type Filter struct {
	api.FilterAdapter

	inspector Inspector
	sched     api.Scheduler
	owned     *concurrency.Scheduler
	timeout   time.Duration
	log       *logrus.Entry
	key       *api.Key[*table]
	seq       atomic.Uint64
}

var _ api.ChainAwareFilter = (*Filter)(nil)

// New creates a correlating filter.
func New(in Inspector, opts ...Option) (*Filter, error) {
	if in == nil {
		return nil, oops.In("reqres").Wrapf(api.ErrInvalidArgument, "nil inspector")
	}
	cfg := DefaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	f := &Filter{
		inspector: in,
		sched:     cfg.Scheduler,
		timeout:   cfg.DefaultTimeout,
		log:       cfg.Logger.WithField("filter", "reqres"),
		key:       api.NewKey[*table]("reqres.pending"),
	}
	if f.sched == nil {
		f.owned = concurrency.NewScheduler(func(r any) {
			f.log.WithField("panic", r).Error("timeout callback panicked")
		})
		f.sched = f.owned
	}
	return f, nil
}

// Close stops the scheduler the filter started itself, if any.
func (f *Filter) Close() {
	if f.owned != nil {
		f.owned.Stop()
	}
}

// Request writes req to s and returns a future for the matching response.
// A timeout of 0 falls back to the configured default.
func (f *Filter) Request(s api.Session, req *Request, timeout time.Duration) *api.Future[*Response] {
	if s == nil || req == nil || req.Message == nil {
		return api.Rejected[*Response](oops.In("reqres").Wrapf(api.ErrInvalidArgument, "nil session or request"))
	}
	if s.IsClosing() {
		return api.Rejected[*Response](api.ErrSessionClosed)
	}
	if req.ID == nil {
		req.ID = f.seq.Add(1)
	}
	if timeout <= 0 {
		timeout = f.timeout
	}

	t := f.table(s)
	p := &pending{id: req.ID, future: api.NewFuture[*Response]()}
	if err := t.add(p); err != nil {
		return api.Rejected[*Response](err)
	}
	// sessionClosed may have drained the table before the add
	if s.State() == api.StateClosed && t.take(p) {
		p.future.Reject(api.ErrRequestCanceled)
		return p.future
	}

	if timeout > 0 {
		timer, err := f.sched.Schedule(timeout, func() {
			if t.take(p) {
				f.log.WithFields(logrus.Fields{"session": s.ID(), "request": p.id}).Debug("request timed out")
				p.future.Reject(api.WrapError(api.ErrCodeTimeout, api.ErrRequestTimeout,
					fmt.Sprintf("no response within %s", timeout)).WithContext("request", p.id))
			}
		})
		if err != nil {
			t.take(p)
			p.future.Reject(err)
			return p.future
		}
		p.setTimer(timer)
	}

	s.Write(req).AddListener(func(r api.Result[struct{}]) {
		if r.Err != nil && t.take(p) {
			p.cancelTimer()
			p.future.Reject(r.Err)
		}
	})
	return p.future
}

// Pending returns how many requests of s await a response.
func (f *Filter) Pending(s api.Session) int {
	t, ok := f.key.Get(s.Attributes())
	if !ok {
		return 0
	}
	return t.len()
}

func (f *Filter) table(s api.Session) *table {
	t, _ := f.key.SetIfAbsent(s.Attributes(), newTable())
	return t
}

// MessageReceived consumes matched responses and forwards everything else.
func (f *Filter) MessageReceived(next api.NextFilter, s api.Session, msg any) error {
	id, ok := f.inspector.ResponseID(msg)
	if ok {
		if t, has := f.key.Get(s.Attributes()); has {
			if p := t.takeID(id); p != nil {
				p.cancelTimer()
				p.future.Resolve(&Response{RequestID: id, Message: msg})
				return nil
			}
		}
		f.log.WithFields(logrus.Fields{"session": s.ID(), "request": id}).Debug("unmatched response")
	}
	next.MessageReceived(s, msg)
	return nil
}

// SessionClosed cancels every pending request of s.
func (f *Filter) SessionClosed(next api.NextFilter, s api.Session) error {
	f.cancelAll(s)
	next.SessionClosed(s)
	return nil
}

func (f *Filter) OnPostAdd(api.FilterChain, string) error { return nil }

// OnPreRemove cancels the pending requests of the chain's session.
func (f *Filter) OnPreRemove(chain api.FilterChain, _ string) error {
	if s := chain.Session(); s != nil {
		f.cancelAll(s)
	}
	return nil
}

func (f *Filter) cancelAll(s api.Session) {
	t, ok := f.key.Get(s.Attributes())
	if !ok {
		return
	}
	for _, p := range t.drain() {
		p.cancelTimer()
		p.future.Reject(api.ErrRequestCanceled)
	}
}

type pending struct {
	id     any
	future *api.Future[*Response]

	mu    sync.Mutex
	timer api.Cancelable
}

func (p *pending) setTimer(c api.Cancelable) {
	p.mu.Lock()
	p.timer = c
	p.mu.Unlock()
}

func (p *pending) cancelTimer() {
	p.mu.Lock()
	c := p.timer
	p.mu.Unlock()
	if c != nil {
		c.Cancel()
	}
}

// table is the pending map of one session.
type table struct {
	mu sync.Mutex
	m  map[any]*pending
}

func newTable() *table {
	return &table{m: make(map[any]*pending)}
}

func (t *table) add(p *pending) (err error) {
	defer func() {
		// unhashable ids panic on map access
		if r := recover(); r != nil {
			err = oops.In("reqres").With("request", fmt.Sprint(p.id)).
				Wrapf(api.ErrInvalidArgument, "unusable request id: %v", r)
		}
	}()
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, dup := t.m[p.id]; dup {
		return oops.In("reqres").With("request", fmt.Sprint(p.id)).Wrapf(ErrDuplicateRequest, "id %v", p.id)
	}
	t.m[p.id] = p
	return nil
}

// take removes p if it is still the entry for its id.
func (t *table) take(p *pending) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.m[p.id] != p {
		return false
	}
	delete(t.m, p.id)
	return true
}

func (t *table) takeID(id any) (p *pending) {
	defer func() {
		if recover() != nil {
			p = nil
		}
	}()
	t.mu.Lock()
	defer t.mu.Unlock()
	p = t.m[id]
	if p != nil {
		delete(t.m, id)
	}
	return p
}

func (t *table) drain() []*pending {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*pending, 0, len(t.m))
	for id, p := range t.m {
		out = append(out, p)
		delete(t.m, id)
	}
	return out
}

func (t *table) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.m)
}
