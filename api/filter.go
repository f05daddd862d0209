// File: api/filter.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Filter and filter chain contracts. Inbound events travel head to tail
// and end at the Handler; outbound events travel tail to head and end at
// the transport. A filter that does not call next stops propagation.

package api

// Filter intercepts session events. Returning an error (or panicking)
// redelivers the failure as ExceptionCaught starting at this filter.
type Filter interface {
	SessionCreated(next NextFilter, s Session) error
	SessionOpened(next NextFilter, s Session) error
	SessionClosed(next NextFilter, s Session) error
	SessionIdle(next NextFilter, s Session, status IdleStatus) error
	ExceptionCaught(next NextFilter, s Session, cause error) error
	MessageReceived(next NextFilter, s Session, msg any) error
	MessageSent(next NextFilter, s Session, req *WriteRequest) error

	FilterWrite(next NextFilter, s Session, req *WriteRequest) error
	FilterClose(next NextFilter, s Session) error
}

// NextFilter is the continuation bound to the rest of the chain from the
// calling filter onward, in the direction of each event.
type NextFilter interface {
	SessionCreated(s Session)
	SessionOpened(s Session)
	SessionClosed(s Session)
	SessionIdle(s Session, status IdleStatus)
	ExceptionCaught(s Session, cause error)
	MessageReceived(s Session, msg any)
	MessageSent(s Session, req *WriteRequest)

	FilterWrite(s Session, req *WriteRequest)
	FilterClose(s Session)
}

// ChainAwareFilter is implemented by filters that need to prepare or
// release per-chain state when they are inserted or removed.
type ChainAwareFilter interface {
	Filter
	// OnPostAdd runs after insertion; an error rolls the insertion back.
	OnPostAdd(chain FilterChain, name string) error
	// OnPreRemove runs before removal; errors are logged, removal proceeds.
	OnPreRemove(chain FilterChain, name string) error
}

// FilterChain is the ordered, mutable list of filters of one session.
type FilterChain interface {
	Session() Session

	AddFirst(name string, f Filter) error
	AddLast(name string, f Filter) error
	AddBefore(base, name string, f Filter) error
	AddAfter(base, name string, f Filter) error
	Remove(name string) (Filter, error)
	Replace(name string, f Filter) (Filter, error)
	Clear() error

	Get(name string) Filter
	Contains(name string) bool
	// Names lists filter names in head-to-tail order.
	Names() []string

	FireSessionCreated()
	FireSessionOpened()
	FireSessionClosed()
	FireSessionIdle(status IdleStatus)
	FireExceptionCaught(cause error)
	FireMessageReceived(msg any)
	FireMessageSent(req *WriteRequest)
	FireFilterWrite(req *WriteRequest)
	FireFilterClose()
}

// FilterAdapter forwards every event unchanged. Embed it and override
// only the events a filter cares about.
type FilterAdapter struct{}

var _ Filter = FilterAdapter{}

func (FilterAdapter) SessionCreated(next NextFilter, s Session) error {
	next.SessionCreated(s)
	return nil
}

func (FilterAdapter) SessionOpened(next NextFilter, s Session) error {
	next.SessionOpened(s)
	return nil
}

func (FilterAdapter) SessionClosed(next NextFilter, s Session) error {
	next.SessionClosed(s)
	return nil
}

func (FilterAdapter) SessionIdle(next NextFilter, s Session, status IdleStatus) error {
	next.SessionIdle(s, status)
	return nil
}

func (FilterAdapter) ExceptionCaught(next NextFilter, s Session, cause error) error {
	next.ExceptionCaught(s, cause)
	return nil
}

func (FilterAdapter) MessageReceived(next NextFilter, s Session, msg any) error {
	next.MessageReceived(s, msg)
	return nil
}

func (FilterAdapter) MessageSent(next NextFilter, s Session, req *WriteRequest) error {
	next.MessageSent(s, req)
	return nil
}

func (FilterAdapter) FilterWrite(next NextFilter, s Session, req *WriteRequest) error {
	next.FilterWrite(s, req)
	return nil
}

func (FilterAdapter) FilterClose(next NextFilter, s Session) error {
	next.FilterClose(s)
	return nil
}
