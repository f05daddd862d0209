// File: api/types.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Shared API-level type declarations, DTOs, and constants.

package api

import "time"

// SessionState enumerates the lifecycle of a session. Transitions are
// monotonic: Created -> Connected -> Closing -> Closed.
type SessionState int32

const (
	StateCreated SessionState = iota
	StateConnected
	StateClosing
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// IdleStatus identifies the kind of inactivity an idle event reports.
type IdleStatus int

const (
	ReaderIdle IdleStatus = iota
	WriterIdle
	BothIdle

	// IdleStatusCount sizes arrays indexed by IdleStatus.
	IdleStatusCount = 3
)

// IdleStatuses lists every status in index order.
var IdleStatuses = [IdleStatusCount]IdleStatus{ReaderIdle, WriterIdle, BothIdle}

func (s IdleStatus) String() string {
	switch s {
	case ReaderIdle:
		return "reader_idle"
	case WriterIdle:
		return "writer_idle"
	case BothIdle:
		return "both_idle"
	default:
		return "unknown"
	}
}

// Valid reports whether s can index a [IdleStatusCount] array.
func (s IdleStatus) Valid() bool {
	return s >= ReaderIdle && s <= BothIdle
}

// SessionStats is a point-in-time snapshot of per-session counters.
type SessionStats struct {
	ReadBytes       uint64
	WrittenBytes    uint64
	ReadMessages    uint64
	WrittenMessages uint64
	LastReadTime    time.Time
	LastWriteTime   time.Time

	IdleCount    [IdleStatusCount]uint64
	LastIdleTime [IdleStatusCount]time.Time

	ScheduledWriteBytes    uint64
	ScheduledWriteMessages uint64
}

// LastIOTime returns the most recent read or write time.
func (st SessionStats) LastIOTime() time.Time {
	if st.LastReadTime.After(st.LastWriteTime) {
		return st.LastReadTime
	}
	return st.LastWriteTime
}
