// File: api/event.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Event kinds flowing through a filter chain.

package api

// EventType names one filter chain event.
type EventType uint16

const (
	EventSessionCreated EventType = 1 << iota
	EventSessionOpened
	EventSessionClosed
	EventSessionIdle
	EventExceptionCaught
	EventMessageReceived
	EventMessageSent
	EventFilterWrite
	EventFilterClose
)

// EventTypes lists every event in declaration order.
var EventTypes = []EventType{
	EventSessionCreated, EventSessionOpened, EventSessionClosed,
	EventSessionIdle, EventExceptionCaught, EventMessageReceived,
	EventMessageSent, EventFilterWrite, EventFilterClose,
}

func (e EventType) String() string {
	switch e {
	case EventSessionCreated:
		return "sessionCreated"
	case EventSessionOpened:
		return "sessionOpened"
	case EventSessionClosed:
		return "sessionClosed"
	case EventSessionIdle:
		return "sessionIdle"
	case EventExceptionCaught:
		return "exceptionCaught"
	case EventMessageReceived:
		return "messageReceived"
	case EventMessageSent:
		return "messageSent"
	case EventFilterWrite:
		return "filterWrite"
	case EventFilterClose:
		return "filterClose"
	default:
		return "unknown"
	}
}

// Outbound reports whether e travels tail to head.
func (e EventType) Outbound() bool {
	return e == EventFilterWrite || e == EventFilterClose
}

// EventSet is a bit set of event types.
type EventSet uint16

// NewEventSet builds a set from events.
func NewEventSet(events ...EventType) EventSet {
	var s EventSet
	for _, e := range events {
		s |= EventSet(e)
	}
	return s
}

// Has reports whether e is in the set.
func (s EventSet) Has(e EventType) bool {
	return s&EventSet(e) != 0
}

// With returns the set plus e.
func (s EventSet) With(e EventType) EventSet {
	return s | EventSet(e)
}

// Without returns the set minus e.
func (s EventSet) Without(e EventType) EventSet {
	return s &^ EventSet(e)
}
