// File: filterchain/traversal.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Event traversal over one entry snapshot. Index len(es) is the tail
// (the session Handler), index -1 is the head (the Sink).

package filterchain

import (
	"github.com/samber/oops"
	"github.com/sirupsen/logrus"

	"github.com/momentics/hioload-mina/api"
)

const (
	headName = "<head>"
	tailName = "<handler>"
)

// nextFilter continues traversal from position idx: inbound events go to
// idx+1, outbound events to idx-1.
type nextFilter struct {
	c   *Chain
	es  []*entry
	idx int
}

var _ api.NextFilter = nextFilter{}

func (n nextFilter) SessionCreated(s api.Session) { n.c.sessionCreated(n.es, n.idx+1, s) }
func (n nextFilter) SessionOpened(s api.Session)  { n.c.sessionOpened(n.es, n.idx+1, s) }
func (n nextFilter) SessionClosed(s api.Session)  { n.c.sessionClosed(n.es, n.idx+1, s) }

func (n nextFilter) SessionIdle(s api.Session, status api.IdleStatus) {
	n.c.sessionIdle(n.es, n.idx+1, s, status)
}

func (n nextFilter) ExceptionCaught(s api.Session, cause error) {
	n.c.exceptionCaught(n.es, n.idx+1, s, cause)
}

func (n nextFilter) MessageReceived(s api.Session, msg any) {
	n.c.messageReceived(n.es, n.idx+1, s, msg)
}

func (n nextFilter) MessageSent(s api.Session, req *api.WriteRequest) {
	n.c.messageSent(n.es, n.idx+1, s, req)
}

func (n nextFilter) FilterWrite(s api.Session, req *api.WriteRequest) {
	n.c.filterWrite(n.es, n.idx-1, s, req)
}

func (n nextFilter) FilterClose(s api.Session) { n.c.filterClose(n.es, n.idx-1, s) }

// invoke runs fn, converting a panic into an error.
func invoke(name string, fn func() error) (err error) {
	perr := oops.In("filterchain").With("filter", name).Recoverf(func() {
		err = fn()
	}, "panic in %s", name)
	if perr != nil {
		return perr
	}
	return err
}

// inbound delivers one event at idx: to a filter, or to the handler past
// the last entry. Failures restart as exceptionCaught at the same idx.
func (c *Chain) inbound(es []*entry, idx int, s api.Session,
	viaFilter func(f api.Filter, next api.NextFilter) error,
	viaHandler func(h api.Handler) error,
) {
	if idx >= len(es) {
		h := s.Handler()
		if h == nil {
			return
		}
		if err := invoke(tailName, func() error { return viaHandler(h) }); err != nil {
			c.exceptionCaught(es, len(es), s, err)
		}
		return
	}
	e := es[idx]
	next := nextFilter{c: c, es: es, idx: idx}
	if err := invoke(e.name, func() error { return viaFilter(e.filter, next) }); err != nil {
		c.exceptionCaught(es, idx, s, err)
	}
}

func (c *Chain) sessionCreated(es []*entry, idx int, s api.Session) {
	c.inbound(es, idx, s,
		func(f api.Filter, next api.NextFilter) error { return f.SessionCreated(next, s) },
		func(h api.Handler) error { return h.SessionCreated(s) })
}

func (c *Chain) sessionOpened(es []*entry, idx int, s api.Session) {
	c.inbound(es, idx, s,
		func(f api.Filter, next api.NextFilter) error { return f.SessionOpened(next, s) },
		func(h api.Handler) error { return h.SessionOpened(s) })
}

// sessionClosed finalizes the session once the event passes the handler,
// or when a filter fails it. A filter that drops the event without error
// keeps the session from being finalized.
func (c *Chain) sessionClosed(es []*entry, idx int, s api.Session) {
	fin, _ := c.sink.(Finalizer)
	if idx >= len(es) {
		if fin != nil {
			defer fin.Finalize(s)
		}
		c.inbound(es, idx, s, nil, func(h api.Handler) error { return h.SessionClosed(s) })
		return
	}
	e := es[idx]
	next := nextFilter{c: c, es: es, idx: idx}
	if err := invoke(e.name, func() error { return e.filter.SessionClosed(next, s) }); err != nil {
		c.exceptionCaught(es, idx, s, err)
		if fin != nil {
			fin.Finalize(s)
		}
	}
}

func (c *Chain) sessionIdle(es []*entry, idx int, s api.Session, status api.IdleStatus) {
	c.inbound(es, idx, s,
		func(f api.Filter, next api.NextFilter) error { return f.SessionIdle(next, s, status) },
		func(h api.Handler) error { return h.SessionIdle(s, status) })
}

func (c *Chain) messageReceived(es []*entry, idx int, s api.Session, msg any) {
	c.inbound(es, idx, s,
		func(f api.Filter, next api.NextFilter) error { return f.MessageReceived(next, s, msg) },
		func(h api.Handler) error { return h.MessageReceived(s, msg) })
}

func (c *Chain) messageSent(es []*entry, idx int, s api.Session, req *api.WriteRequest) {
	c.inbound(es, idx, s,
		func(f api.Filter, next api.NextFilter) error { return f.MessageSent(next, s, req) },
		func(h api.Handler) error { return h.MessageSent(s, req.Original().Message()) })
}

// exceptionCaught delivers cause starting at idx. A failure while
// handling it is fatal for the session.
func (c *Chain) exceptionCaught(es []*entry, idx int, s api.Session, cause error) {
	if idx < 0 {
		idx = 0
	}
	var (
		name string
		err  error
	)
	if idx >= len(es) {
		h := s.Handler()
		if h == nil {
			c.log.WithError(cause).Warn("unhandled exception: no handler")
			return
		}
		name = tailName
		err = invoke(name, func() error { return h.ExceptionCaught(s, cause) })
	} else {
		e := es[idx]
		name = e.name
		next := nextFilter{c: c, es: es, idx: idx}
		err = invoke(name, func() error { return e.filter.ExceptionCaught(next, s, cause) })
	}
	if err != nil {
		c.log.WithFields(logrus.Fields{
			"filter": name,
			"cause":  cause,
		}).WithError(err).Error("exceptionCaught failed, closing session")
		s.Close(true)
	}
}

// filterWrite delivers req at idx, ending in the sink at idx -1. A
// failure rejects the write future and raises exceptionCaught at idx.
func (c *Chain) filterWrite(es []*entry, idx int, s api.Session, req *api.WriteRequest) {
	if idx < 0 {
		if c.sink == nil {
			return
		}
		if err := invoke(headName, func() error { return c.sink.FilterWrite(s, req) }); err != nil {
			req.Future().Reject(err)
			c.exceptionCaught(es, 0, s, err)
		}
		return
	}
	e := es[idx]
	next := nextFilter{c: c, es: es, idx: idx}
	if err := invoke(e.name, func() error { return e.filter.FilterWrite(next, s, req) }); err != nil {
		req.Future().Reject(err)
		c.exceptionCaught(es, idx, s, err)
	}
}

// filterClose delivers a close request toward the sink. A failing filter
// raises exceptionCaught and the request still reaches the sink; sinks
// are expected to be idempotent.
func (c *Chain) filterClose(es []*entry, idx int, s api.Session) {
	if idx < 0 {
		if c.sink == nil {
			return
		}
		if err := invoke(headName, func() error { return c.sink.FilterClose(s) }); err != nil {
			c.exceptionCaught(es, 0, s, err)
		}
		return
	}
	e := es[idx]
	next := nextFilter{c: c, es: es, idx: idx}
	if err := invoke(e.name, func() error { return e.filter.FilterClose(next, s) }); err != nil {
		c.exceptionCaught(es, idx, s, err)
		c.filterClose(es, -1, s)
	}
}
