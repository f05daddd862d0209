// File: fake/session.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package fake

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-mina/api"
)

// Session is a bare api.Session for filter and chain tests. It has no
// write path of its own: Write routes through the attached chain and
// Close only records the call.
type Session struct {
	SessionID string
	H         api.Handler

	mu      sync.Mutex
	chain   api.FilterChain
	attrs   *attrMap
	cfg     *api.SessionConfig
	created time.Time
	state   atomic.Int32
	rs, ws  atomic.Bool

	closes    atomic.Int32
	immediate atomic.Bool
	closeFut  *api.CloseFuture
}

var _ api.Session = (*Session)(nil)

// NewSession creates a connected fake session.
func NewSession(id string, h api.Handler) *Session {
	s := &Session{
		SessionID: id,
		H:         h,
		attrs:     &attrMap{m: map[any]any{}},
		cfg:       api.DefaultSessionConfig(),
		created:   time.Now(),
		closeFut:  api.NewFuture[struct{}](),
	}
	s.state.Store(int32(api.StateConnected))
	return s
}

// SetChain attaches the chain returned by FilterChain.
func (s *Session) SetChain(c api.FilterChain) {
	s.mu.Lock()
	s.chain = c
	s.mu.Unlock()
}

// SetState forces the reported state.
func (s *Session) SetState(st api.SessionState) { s.state.Store(int32(st)) }

// Closes returns the number of Close calls.
func (s *Session) Closes() int { return int(s.closes.Load()) }

// ClosedImmediately reports whether any Close call passed immediate=true.
func (s *Session) ClosedImmediately() bool { return s.immediate.Load() }

func (s *Session) ID() string              { return s.SessionID }
func (s *Session) LocalAddr() net.Addr     { return Addr("local") }
func (s *Session) RemoteAddr() net.Addr    { return Addr("remote") }
func (s *Session) ServiceAddr() net.Addr   { return Addr("local") }
func (s *Session) CreationTime() time.Time { return s.created }
func (s *Session) Config() *api.SessionConfig {
	return s.cfg
}
func (s *Session) Attributes() api.AttributeMap { return s.attrs }
func (s *Session) Handler() api.Handler         { return s.H }

func (s *Session) FilterChain() api.FilterChain {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chain
}

func (s *Session) State() api.SessionState { return api.SessionState(s.state.Load()) }
func (s *Session) IsConnected() bool       { return s.State() == api.StateConnected }
func (s *Session) IsClosing() bool         { return s.State() >= api.StateClosing }

func (s *Session) Write(msg any) *api.WriteFuture {
	if msg == nil {
		return api.Rejected[struct{}](api.ErrInvalidArgument)
	}
	if s.IsClosing() {
		return api.Rejected[struct{}](api.ErrSessionClosed)
	}
	req := api.NewWriteRequest(msg)
	if c := s.FilterChain(); c != nil {
		c.FireFilterWrite(req)
	}
	return req.Future()
}

func (s *Session) Close(immediate bool) *api.CloseFuture {
	s.closes.Add(1)
	if immediate {
		s.immediate.Store(true)
	}
	s.SetState(api.StateClosing)
	return s.closeFut
}

func (s *Session) CloseFuture() *api.CloseFuture { return s.closeFut }

func (s *Session) SuspendRead()           { s.rs.Store(true) }
func (s *Session) ResumeRead()            { s.rs.Store(false) }
func (s *Session) SuspendWrite()          { s.ws.Store(true) }
func (s *Session) ResumeWrite()           { s.ws.Store(false) }
func (s *Session) IsReadSuspended() bool  { return s.rs.Load() }
func (s *Session) IsWriteSuspended() bool { return s.ws.Load() }

func (s *Session) Stats() api.SessionStats         { return api.SessionStats{} }
func (s *Session) IdleCount(api.IdleStatus) uint64 { return 0 }

// Addr is a named net.Addr.
type Addr string

func (a Addr) Network() string { return "fake" }
func (a Addr) String() string  { return string(a) }

type attrMap struct {
	mu sync.Mutex
	m  map[any]any
}

func (a *attrMap) Get(k any) (any, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	v, ok := a.m[k]
	return v, ok
}

func (a *attrMap) Set(k, v any) (any, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	prev, had := a.m[k]
	a.m[k] = v
	return prev, had
}

func (a *attrMap) SetIfAbsent(k, v any) (any, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if cur, ok := a.m[k]; ok {
		return cur, true
	}
	a.m[k] = v
	return v, false
}

func (a *attrMap) Remove(k any) (any, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	prev, had := a.m[k]
	delete(a.m, k)
	return prev, had
}

func (a *attrMap) Contains(k any) bool {
	_, ok := a.Get(k)
	return ok
}

func (a *attrMap) Keys() []any {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]any, 0, len(a.m))
	for k := range a.m {
		out = append(out, k)
	}
	return out
}

func (a *attrMap) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.m)
}
