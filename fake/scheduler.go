// File: fake/scheduler.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package fake

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/momentics/hioload-mina/api"
)

// Scheduler is a manual api.Scheduler: time moves only through Advance.
type Scheduler struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*timer
}

var _ api.Scheduler = (*Scheduler)(nil)

// NewScheduler creates a manual scheduler starting at start.
func NewScheduler(start time.Time) *Scheduler {
	return &Scheduler{now: start}
}

// Schedule registers fn to run once Advance passes now+delay.
func (s *Scheduler) Schedule(delay time.Duration, fn func()) (api.Cancelable, error) {
	if fn == nil {
		return nil, api.ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	t := &timer{at: s.now.Add(delay), seq: s.seq, fn: fn, done: make(chan struct{})}
	s.timers = append(s.timers, t)
	return t, nil
}

// Now returns the manual clock.
func (s *Scheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Advance moves the clock by d and runs every timer that became due, in
// deadline order, on the calling goroutine. It returns how many ran.
func (s *Scheduler) Advance(d time.Duration) int {
	s.mu.Lock()
	s.now = s.now.Add(d)
	now := s.now
	var due, rest []*timer
	for _, t := range s.timers {
		if !t.at.After(now) {
			due = append(due, t)
		} else {
			rest = append(rest, t)
		}
	}
	s.timers = rest
	s.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		if due[i].at.Equal(due[j].at) {
			return due[i].seq < due[j].seq
		}
		return due[i].at.Before(due[j].at)
	})
	ran := 0
	for _, t := range due {
		if t.fire() {
			ran++
		}
	}
	return ran
}

// Pending returns the number of timers not yet due.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.isDone() {
			n++
		}
	}
	return n
}

// ErrCanceled is reported by a cancelled fake timer.
var ErrCanceled = errors.New("fake timer cancelled")

type timer struct {
	at   time.Time
	seq  int
	fn   func()
	mu   sync.Mutex
	done chan struct{}
	err  error
	fin  bool
}

func (t *timer) fire() bool {
	t.mu.Lock()
	if t.fin {
		t.mu.Unlock()
		return false
	}
	t.fin = true
	close(t.done)
	t.mu.Unlock()
	t.fn()
	return true
}

func (t *timer) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fin {
		return false
	}
	t.fin = true
	t.err = ErrCanceled
	close(t.done)
	return true
}

func (t *timer) isDone() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fin
}

func (t *timer) Done() <-chan struct{} { return t.done }

func (t *timer) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}
