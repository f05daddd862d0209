// File: filterchain/chain.go
// Package filterchain implements the per-session filter pipeline.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The entry list is copy-on-write: mutations are serialized by a mutex
// and publish a new immutable slice through an atomic pointer, the same
// way the event loop swaps its handler list. A traversal loads the slice
// once and completes against it even if the chain changes meanwhile.

package filterchain

import (
	"sync"
	"sync/atomic"

	"github.com/samber/oops"
	"github.com/sirupsen/logrus"

	"github.com/momentics/hioload-mina/api"
)

// Sink terminates outbound traversal at the head of the chain, where the
// session hands write and close requests to its transport.
type Sink interface {
	FilterWrite(s api.Session, req *api.WriteRequest) error
	FilterClose(s api.Session) error
}

// Finalizer is an optional Sink extension. Finalize runs after
// sessionClosed has passed the handler, or after a filter failed it, on
// whatever goroutine delivered the event. It may run more than once.
type Finalizer interface {
	Finalize(s api.Session)
}

// Chain is the api.FilterChain of one session.
type Chain struct {
	session api.Session
	sink    Sink
	log     *logrus.Entry

	mu      sync.Mutex // serializes mutations
	entries atomic.Pointer[[]*entry]
}

var _ api.FilterChain = (*Chain)(nil)

// New creates an empty chain for s whose outbound events end in sink.
func New(s api.Session, sink Sink, log *logrus.Entry) *Chain {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	c := &Chain{session: s, sink: sink, log: log}
	empty := []*entry{}
	c.entries.Store(&empty)
	return c
}

// Session returns the owning session.
func (c *Chain) Session() api.Session {
	return c.session
}

func (c *Chain) snapshot() []*entry {
	return *c.entries.Load()
}

// AddFirst inserts f at the head side.
func (c *Chain) AddFirst(name string, f api.Filter) error {
	return c.insert(name, f, first)
}

// AddLast inserts f at the tail side.
func (c *Chain) AddLast(name string, f api.Filter) error {
	return c.insert(name, f, last)
}

// AddBefore inserts f immediately before base.
func (c *Chain) AddBefore(base, name string, f api.Filter) error {
	return c.insert(name, f, before(base))
}

// AddAfter inserts f immediately after base.
func (c *Chain) AddAfter(base, name string, f api.Filter) error {
	return c.insert(name, f, after(base))
}

func (c *Chain) insert(name string, f api.Filter, pos position) error {
	if err := validate(name, f); err != nil {
		return err
	}
	c.mu.Lock()
	es := c.snapshot()
	if indexOf(es, name) >= 0 {
		c.mu.Unlock()
		return duplicate(name)
	}
	i, err := pos(es)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	next := insertAt(es, i, &entry{name: name, filter: f})
	c.entries.Store(&next)
	c.mu.Unlock()

	if ca, ok := f.(api.ChainAwareFilter); ok {
		if err := ca.OnPostAdd(c, name); err != nil {
			c.detach(name, f)
			return oops.In("filterchain").With("filter", name).Wrapf(err, "OnPostAdd")
		}
	}
	return nil
}

// Remove deletes the named filter and returns it.
func (c *Chain) Remove(name string) (api.Filter, error) {
	f := c.Get(name)
	if f == nil {
		return nil, notFound(name)
	}
	if ca, ok := f.(api.ChainAwareFilter); ok {
		if err := ca.OnPreRemove(c, name); err != nil {
			c.log.WithError(err).WithField("filter", name).Warn("OnPreRemove failed")
		}
	}
	if !c.detach(name, f) {
		return nil, notFound(name)
	}
	return f, nil
}

// detach removes name if it still holds f.
func (c *Chain) detach(name string, f api.Filter) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	es := c.snapshot()
	i := indexOf(es, name)
	if i < 0 || es[i].filter != f {
		return false
	}
	next := removeAt(es, i)
	c.entries.Store(&next)
	return true
}

// Replace swaps the filter registered under name and returns the old one.
func (c *Chain) Replace(name string, f api.Filter) (api.Filter, error) {
	if err := validate(name, f); err != nil {
		return nil, err
	}
	c.mu.Lock()
	es := c.snapshot()
	i := indexOf(es, name)
	if i < 0 {
		c.mu.Unlock()
		return nil, notFound(name)
	}
	old := es[i].filter
	next := replaceAt(es, i, &entry{name: name, filter: f})
	c.entries.Store(&next)
	c.mu.Unlock()
	return old, nil
}

// Clear removes every filter, tail first.
func (c *Chain) Clear() error {
	es := c.snapshot()
	var firstErr error
	for i := len(es) - 1; i >= 0; i-- {
		if _, err := c.Remove(es[i].name); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Get returns the named filter or nil.
func (c *Chain) Get(name string) api.Filter {
	es := c.snapshot()
	if i := indexOf(es, name); i >= 0 {
		return es[i].filter
	}
	return nil
}

// Contains reports whether name is registered.
func (c *Chain) Contains(name string) bool {
	return indexOf(c.snapshot(), name) >= 0
}

// Names lists filter names head to tail.
func (c *Chain) Names() []string {
	return names(c.snapshot())
}

// Len returns the number of filters.
func (c *Chain) Len() int {
	return len(c.snapshot())
}

func (c *Chain) FireSessionCreated() {
	c.sessionCreated(c.snapshot(), 0, c.session)
}

func (c *Chain) FireSessionOpened() {
	c.sessionOpened(c.snapshot(), 0, c.session)
}

func (c *Chain) FireSessionClosed() {
	c.sessionClosed(c.snapshot(), 0, c.session)
}

func (c *Chain) FireSessionIdle(status api.IdleStatus) {
	c.sessionIdle(c.snapshot(), 0, c.session, status)
}

func (c *Chain) FireExceptionCaught(cause error) {
	c.exceptionCaught(c.snapshot(), 0, c.session, cause)
}

func (c *Chain) FireMessageReceived(msg any) {
	c.messageReceived(c.snapshot(), 0, c.session, msg)
}

func (c *Chain) FireMessageSent(req *api.WriteRequest) {
	c.messageSent(c.snapshot(), 0, c.session, req)
}

// FireFilterWrite starts at the tail-most filter and travels to the sink.
func (c *Chain) FireFilterWrite(req *api.WriteRequest) {
	es := c.snapshot()
	c.filterWrite(es, len(es)-1, c.session, req)
}

// FireFilterClose starts at the tail-most filter and travels to the sink.
func (c *Chain) FireFilterClose() {
	es := c.snapshot()
	c.filterClose(es, len(es)-1, c.session)
}
