// File: idle/checker.go
// Package idle detects inactive sessions.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Each idle status has its own deadline index. Entries are bucketed by
// deadline slot (deadline / resolution) and a min-heap orders the slot
// numbers, so a sweep touches only buckets whose slot has been reached.
// Traffic updates never move an entry; a popped entry whose deadline
// moved forward is simply re-slotted.

package idle

import (
	"container/heap"
	"sync"
	"time"

	"github.com/samber/oops"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/cpu"

	"github.com/momentics/hioload-mina/api"
)

// DefaultResolution is the slot width used when none is configured.
const DefaultResolution = time.Second

// Target is a session as seen by the checker.
type Target interface {
	// IdleTime returns the timeout for status; zero disables it.
	IdleTime(status api.IdleStatus) time.Duration
	// NotifyIdle is called once per elapsed timeout.
	NotifyIdle(status api.IdleStatus, now time.Time)
}

// Config tunes a Checker.
type Config struct {
	Resolution time.Duration
	Logger     *logrus.Logger
}

// DefaultConfig returns the default checker configuration.
func DefaultConfig() Config {
	return Config{Resolution: DefaultResolution, Logger: logrus.StandardLogger()}
}

// Option mutates a Config.
type Option func(*Config)

// WithResolution sets the deadline slot width.
func WithResolution(d time.Duration) Option {
	return func(c *Config) { c.Resolution = d }
}

// WithLogger sets the logger used by the sweep loop.
func WithLogger(l *logrus.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// Checker tracks idle deadlines for any number of targets.
type Checker struct {
	res     int64
	log     *logrus.Entry
	indexes [api.IdleStatusCount]*index

	mu      sync.Mutex
	members map[Target]struct{}
	stop    chan struct{}
	done    chan struct{}
}

// NewChecker creates a checker. It does nothing until ProcessIdleSessions
// is called, either by the owner or by the loop started with Start.
func NewChecker(opts ...Option) *Checker {
	cfg := DefaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.Resolution <= 0 {
		cfg.Resolution = DefaultResolution
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	c := &Checker{
		res:     int64(cfg.Resolution),
		log:     cfg.Logger.WithField("component", "idle"),
		members: make(map[Target]struct{}),
	}
	for _, st := range api.IdleStatuses {
		c.indexes[st] = newIndex(st, c.res)
	}
	return c
}

// Add starts tracking t with every status measured from now.
func (c *Checker) Add(t Target, now time.Time) {
	c.mu.Lock()
	c.members[t] = struct{}{}
	c.mu.Unlock()
	for _, st := range api.IdleStatuses {
		c.indexes[st].put(t, t.IdleTime(st), now)
	}
}

// Remove forgets t.
func (c *Checker) Remove(t Target) {
	c.mu.Lock()
	delete(c.members, t)
	c.mu.Unlock()
	for _, ix := range c.indexes {
		ix.remove(t)
	}
}

// SessionRead records read activity at now.
func (c *Checker) SessionRead(t Target, now time.Time) {
	c.indexes[api.ReaderIdle].touch(t, now)
	c.indexes[api.BothIdle].touch(t, now)
}

// SessionWritten records write activity at now.
func (c *Checker) SessionWritten(t Target, now time.Time) {
	c.indexes[api.WriterIdle].touch(t, now)
	c.indexes[api.BothIdle].touch(t, now)
}

// Refresh re-reads the idle times of t after a configuration change. A
// status that becomes enabled is measured from now.
func (c *Checker) Refresh(t Target, now time.Time) {
	c.mu.Lock()
	_, ok := c.members[t]
	c.mu.Unlock()
	if !ok {
		return
	}
	for _, st := range api.IdleStatuses {
		c.indexes[st].put(t, t.IdleTime(st), now)
	}
}

// Len returns the number of tracked targets.
func (c *Checker) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.members)
}

// ProcessIdleSessions fires every idle event due at now and returns how
// many fired. Events are delivered after the index locks are released.
func (c *Checker) ProcessIdleSessions(now time.Time) int {
	fired := 0
	for _, ix := range c.indexes {
		due := ix.sweep(now)
		for _, t := range due {
			c.notify(t, ix.status, now)
		}
		fired += len(due)
	}
	return fired
}

func (c *Checker) notify(t Target, st api.IdleStatus, now time.Time) {
	err := oops.In("idle").With("status", st.String()).Recoverf(func() {
		t.NotifyIdle(st, now)
	}, "idle notification panicked")
	if err != nil {
		c.log.WithError(err).Error("idle notify")
	}
}

// Start runs ProcessIdleSessions every interval on its own goroutine.
func (c *Checker) Start(interval time.Duration) error {
	if interval <= 0 {
		return oops.In("idle").Wrapf(api.ErrInvalidArgument, "interval %s", interval)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop != nil {
		return oops.In("idle").Wrapf(api.ErrInvalidArgument, "checker already started")
	}
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	go c.loop(interval, c.stop, c.done)
	return nil
}

// Stop halts the loop started by Start and waits for it. It is safe to
// call more than once.
func (c *Checker) Stop() {
	c.mu.Lock()
	stop, done := c.stop, c.done
	c.stop, c.done = nil, nil
	c.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (c *Checker) loop(interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			if n := c.ProcessIdleSessions(now); n > 0 {
				c.log.WithField("fired", n).Debug("idle sweep")
			}
		}
	}
}

// entry is the idle state of one target for one status.
type entry struct {
	target   Target
	timeout  time.Duration
	lastIO   time.Time
	lastIdle time.Time
	slot     int64
}

func (e *entry) deadline() time.Time {
	base := e.lastIO
	if e.lastIdle.After(base) {
		base = e.lastIdle
	}
	return base.Add(e.timeout)
}

// index is the deadline index of one idle status. The padding keeps the
// locks of different statuses on separate cache lines.
type index struct {
	_       cpu.CacheLinePad
	mu      sync.Mutex
	status  api.IdleStatus
	res     int64
	entries map[Target]*entry
	buckets map[int64]map[*entry]struct{}
	slots   slotHeap
	_       cpu.CacheLinePad
}

func newIndex(st api.IdleStatus, res int64) *index {
	return &index{
		status:  st,
		res:     res,
		entries: make(map[Target]*entry),
		buckets: make(map[int64]map[*entry]struct{}),
	}
}

func (ix *index) slotOf(t time.Time) int64 {
	n := t.UnixNano()
	s := n / ix.res
	if n < 0 && n%ix.res != 0 {
		s--
	}
	return s
}

// put inserts or updates t with timeout d. A zero timeout removes it.
func (ix *index) put(t Target, d time.Duration, now time.Time) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	e, ok := ix.entries[t]
	if d <= 0 {
		if ok {
			ix.unlink(e)
			delete(ix.entries, t)
		}
		return
	}
	if !ok {
		e = &entry{target: t, lastIO: now}
		ix.entries[t] = e
	} else {
		if e.timeout == d {
			return
		}
		ix.unlink(e)
	}
	e.timeout = d
	ix.link(e)
}

func (ix *index) touch(t Target, now time.Time) {
	ix.mu.Lock()
	if e, ok := ix.entries[t]; ok && now.After(e.lastIO) {
		e.lastIO = now
	}
	ix.mu.Unlock()
}

func (ix *index) remove(t Target) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if e, ok := ix.entries[t]; ok {
		ix.unlink(e)
		delete(ix.entries, t)
	}
}

func (ix *index) link(e *entry) {
	e.slot = ix.slotOf(e.deadline())
	b, ok := ix.buckets[e.slot]
	if !ok {
		b = make(map[*entry]struct{})
		ix.buckets[e.slot] = b
		heap.Push(&ix.slots, e.slot)
	}
	b[e] = struct{}{}
}

func (ix *index) unlink(e *entry) {
	b, ok := ix.buckets[e.slot]
	if !ok {
		return
	}
	delete(b, e)
	if len(b) == 0 {
		// the heap keeps the stale slot; sweep skips missing buckets
		delete(ix.buckets, e.slot)
	}
}

// sweep pops every slot up to now's slot and returns the targets whose
// deadline passed. Fired entries restart their timeout from now; the
// rest are re-slotted by their current deadline.
func (ix *index) sweep(now time.Time) []Target {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	limit := ix.slotOf(now)
	var popped []*entry
	for ix.slots.Len() > 0 && ix.slots[0] <= limit {
		slot := heap.Pop(&ix.slots).(int64)
		b, ok := ix.buckets[slot]
		if !ok {
			continue
		}
		delete(ix.buckets, slot)
		for e := range b {
			popped = append(popped, e)
		}
	}
	var due []Target
	for _, e := range popped {
		if !now.Before(e.deadline()) {
			e.lastIdle = now
			due = append(due, e.target)
		}
		ix.link(e)
	}
	return due
}

// slotHeap is a min-heap of slot numbers.
type slotHeap []int64

func (h slotHeap) Len() int           { return len(h) }
func (h slotHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h slotHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *slotHeap) Push(x any)        { *h = append(*h, x.(int64)) }

func (h *slotHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
