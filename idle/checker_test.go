package idle

import (
	"sync"
	"testing"
	"time"

	"github.com/momentics/hioload-mina/api"
)

type target struct {
	mu      sync.Mutex
	timeout [api.IdleStatusCount]time.Duration
	fired   [api.IdleStatusCount]int
}

func (t *target) IdleTime(st api.IdleStatus) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timeout[st]
}

func (t *target) NotifyIdle(st api.IdleStatus, _ time.Time) {
	t.mu.Lock()
	t.fired[st]++
	t.mu.Unlock()
}

func (t *target) count(st api.IdleStatus) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fired[st]
}

var epoch = time.Unix(1_700_000_000, 0)

func at(ms int) time.Time { return epoch.Add(time.Duration(ms) * time.Millisecond) }

func TestReaderIdleFiresAfterTimeout(t *testing.T) {
	c := NewChecker()
	tg := &target{}
	tg.timeout[api.ReaderIdle] = time.Second
	c.Add(tg, at(0))

	if n := c.ProcessIdleSessions(at(500)); n != 0 {
		t.Fatalf("at 500ms fired %d, want 0", n)
	}
	if n := c.ProcessIdleSessions(at(1500)); n != 1 {
		t.Fatalf("at 1500ms fired %d, want 1", n)
	}
	if tg.count(api.ReaderIdle) != 1 {
		t.Fatalf("reader idle count = %d", tg.count(api.ReaderIdle))
	}
	// the next event is measured from the last one
	if n := c.ProcessIdleSessions(at(2000)); n != 0 {
		t.Fatalf("at 2000ms fired %d, want 0", n)
	}
	if n := c.ProcessIdleSessions(at(2600)); n != 1 {
		t.Fatalf("at 2600ms fired %d, want 1", n)
	}
}

func TestTrafficPostponesIdle(t *testing.T) {
	c := NewChecker(WithResolution(100 * time.Millisecond))
	tg := &target{}
	tg.timeout[api.ReaderIdle] = time.Second
	tg.timeout[api.WriterIdle] = time.Second
	tg.timeout[api.BothIdle] = time.Second
	c.Add(tg, at(0))

	c.SessionRead(tg, at(800))
	c.ProcessIdleSessions(at(1200))
	if tg.count(api.ReaderIdle) != 0 || tg.count(api.BothIdle) != 0 {
		t.Fatal("read activity did not postpone reader/both idle")
	}
	if tg.count(api.WriterIdle) != 1 {
		t.Fatalf("writer idle = %d, want 1", tg.count(api.WriterIdle))
	}
	c.ProcessIdleSessions(at(1900))
	if tg.count(api.ReaderIdle) != 1 || tg.count(api.BothIdle) != 1 {
		t.Fatalf("reader=%d both=%d after postponed deadline",
			tg.count(api.ReaderIdle), tg.count(api.BothIdle))
	}
}

func TestZeroTimeoutNotTracked(t *testing.T) {
	c := NewChecker()
	tg := &target{}
	c.Add(tg, at(0))
	if n := c.ProcessIdleSessions(at(100_000)); n != 0 {
		t.Fatalf("disabled statuses fired %d events", n)
	}
	if c.Len() != 1 {
		t.Fatalf("Len = %d", c.Len())
	}
}

func TestRefreshAndRemove(t *testing.T) {
	c := NewChecker()
	tg := &target{}
	c.Add(tg, at(0))

	tg.mu.Lock()
	tg.timeout[api.BothIdle] = 2 * time.Second
	tg.mu.Unlock()
	c.Refresh(tg, at(1000))
	if n := c.ProcessIdleSessions(at(2500)); n != 0 {
		t.Fatalf("fired %d before the refreshed deadline", n)
	}
	if n := c.ProcessIdleSessions(at(3000)); n != 1 {
		t.Fatalf("fired %d at the refreshed deadline", n)
	}

	// shrinking the timeout moves the deadline earlier
	tg.mu.Lock()
	tg.timeout[api.BothIdle] = 500 * time.Millisecond
	tg.mu.Unlock()
	c.Refresh(tg, at(3000))
	if n := c.ProcessIdleSessions(at(3600)); n != 1 {
		t.Fatalf("fired %d after shrinking the timeout", n)
	}

	c.Remove(tg)
	if n := c.ProcessIdleSessions(at(60_000)); n != 0 {
		t.Fatalf("removed target fired %d events", n)
	}
	if c.Len() != 0 {
		t.Fatalf("Len after Remove = %d", c.Len())
	}
}

func TestManyTargetsOnlyDueFire(t *testing.T) {
	c := NewChecker(WithResolution(10 * time.Millisecond))
	targets := make([]*target, 100)
	for i := range targets {
		tg := &target{}
		tg.timeout[api.ReaderIdle] = time.Duration(i+1) * 10 * time.Millisecond
		targets[i] = tg
		c.Add(tg, at(0))
	}
	if n := c.ProcessIdleSessions(at(500)); n != 50 {
		t.Fatalf("fired %d, want 50", n)
	}
	for i, tg := range targets {
		want := 0
		if i < 50 {
			want = 1
		}
		if got := tg.count(api.ReaderIdle); got != want {
			t.Fatalf("target %d fired %d, want %d", i, got, want)
		}
	}
}

type reentrant struct {
	target
	c *Checker
}

func (r *reentrant) NotifyIdle(st api.IdleStatus, now time.Time) {
	r.target.NotifyIdle(st, now)
	r.c.Remove(r)
}

func TestNotifyMayCallBack(t *testing.T) {
	c := NewChecker()
	r := &reentrant{c: c}
	r.timeout[api.WriterIdle] = time.Second
	c.Add(r, at(0))
	if n := c.ProcessIdleSessions(at(2000)); n != 1 {
		t.Fatalf("fired %d", n)
	}
	if c.Len() != 0 {
		t.Fatal("target removed from its own notification is still tracked")
	}
}

func TestStartStop(t *testing.T) {
	c := NewChecker(WithResolution(time.Millisecond))
	tg := &target{}
	tg.timeout[api.BothIdle] = 5 * time.Millisecond
	c.Add(tg, time.Now())
	if err := c.Start(2 * time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if err := c.Start(time.Millisecond); err == nil {
		t.Error("second Start must fail")
	}
	deadline := time.Now().Add(2 * time.Second)
	for tg.count(api.BothIdle) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	c.Stop()
	c.Stop()
	if tg.count(api.BothIdle) == 0 {
		t.Fatal("loop never fired")
	}
}
