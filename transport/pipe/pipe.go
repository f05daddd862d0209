// File: transport/pipe/pipe.go
// Package pipe connects two sessions in memory.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// A write on one end is handed to the other end as messageReceived on the
// writing goroutine. Messages that reach a read-suspended end are held
// until reads resume. Closing either end closes both.

package pipe

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"
	"github.com/samber/oops"

	"github.com/momentics/hioload-mina/api"
	"github.com/momentics/hioload-mina/service"
	"github.com/momentics/hioload-mina/session"
)

// Addr names one pipe end.
type Addr string

func (a Addr) Network() string { return "pipe" }
func (a Addr) String() string  { return string(a) }

var seq atomic.Uint64

// pair is the shared state of both ends.
type pair struct {
	closeOnce sync.Once
	ends      [2]*end
}

func (p *pair) close() {
	p.closeOnce.Do(func() {
		for _, e := range p.ends {
			e.discardHeld()
			e.s.Closed()
		}
	})
}

// end is the session.Processor of one side.
type end struct {
	p    *pair
	peer *end
	s    *session.Session

	mu       sync.Mutex
	flushing bool
	again    bool
	held     *queue.Queue // inbound messages waiting for ResumeRead
}

var _ session.Processor = (*end)(nil)

func (e *end) Flush(api.Session) {
	e.mu.Lock()
	if e.flushing {
		e.again = true
		e.mu.Unlock()
		return
	}
	e.flushing = true
	e.mu.Unlock()

	for {
		for req := range e.s.DrainWrites() {
			if e.peer.s.State() == api.StateClosed {
				e.s.WriteFailed(req, api.ErrSessionClosed)
				continue
			}
			e.peer.deliver(req.Message())
			e.s.MessageWritten(req)
		}
		e.mu.Lock()
		if !e.again {
			e.flushing = false
			e.mu.Unlock()
			return
		}
		e.again = false
		e.mu.Unlock()
	}
}

// deliver hands msg to this end's session, or holds it while the session
// is not yet open or reads are suspended.
func (e *end) deliver(msg any) {
	e.mu.Lock()
	if e.blocked() || e.held.Length() > 0 {
		e.held.Add(msg)
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()
	e.s.Receive(msg)
}

func (e *end) releaseHeld() {
	for {
		e.mu.Lock()
		if e.blocked() || e.held.Length() == 0 {
			e.mu.Unlock()
			return
		}
		msg := e.held.Remove()
		e.mu.Unlock()
		e.s.Receive(msg)
	}
}

func (e *end) discardHeld() {
	e.mu.Lock()
	e.held = queue.New()
	e.mu.Unlock()
}

func (e *end) blocked() bool {
	return e.s.State() == api.StateCreated || e.s.IsReadSuspended()
}

func (e *end) Remove(api.Session) { e.p.close() }

// UpdateTrafficControl delivers held messages once reads resume. Write
// resumption needs nothing here: the session flushes by itself.
func (e *end) UpdateTrafficControl(api.Session) {
	if !e.s.IsReadSuspended() {
		e.releaseHeld()
	}
}

// Connect creates one session on a and one on b, wired to each other, and
// opens both. The first returned session belongs to a.
func Connect(a, b *service.Service) (*session.Session, *session.Session, error) {
	if a == nil || b == nil {
		return nil, nil, oops.In("pipe").Wrapf(api.ErrInvalidArgument, "nil service")
	}
	n := seq.Add(1)
	addrA, addrB := Addr(fmt.Sprintf("pipe:%d:a", n)), Addr(fmt.Sprintf("pipe:%d:b", n))

	p := &pair{}
	ea := &end{p: p, held: queue.New()}
	eb := &end{p: p, held: queue.New()}
	ea.peer, eb.peer = eb, ea
	p.ends = [2]*end{ea, eb}

	sa, err := a.NewSession(ea, addrA, addrB)
	if err != nil {
		return nil, nil, err
	}
	sb, err := b.NewSession(eb, addrB, addrA)
	if err != nil {
		sa.Closed()
		return nil, nil, err
	}
	ea.s, eb.s = sa, sb

	if err := sa.Open(); err != nil {
		p.close()
		return nil, nil, err
	}
	if err := sb.Open(); err != nil {
		p.close()
		return nil, nil, err
	}
	// sa may have written from its sessionOpened handler
	eb.releaseHeld()
	return sa, sb, nil
}
