// File: internal/concurrency/scheduler.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Timer scheduler backed by a deadline min-heap and a single goroutine.

package concurrency

import (
	"container/heap"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-mina/api"
)

// ErrTimerCanceled is reported by Cancelable.Err after a successful Cancel.
var ErrTimerCanceled = errors.New("timer cancelled")

const (
	taskPending int32 = iota
	taskFired
	taskCanceled
)

// Scheduler runs callbacks after a delay. Callbacks run one at a time on
// the scheduler goroutine and must not block.
type Scheduler struct {
	mu      sync.Mutex
	timerQ  taskHeap
	seq     uint64
	notify  chan struct{}
	stop    chan struct{}
	stopped atomic.Bool
	wg      sync.WaitGroup
	onPanic func(any)
}

var _ api.Scheduler = (*Scheduler)(nil)

// NewScheduler starts a scheduler goroutine. onPanic may be nil.
func NewScheduler(onPanic func(any)) *Scheduler {
	s := &Scheduler{
		notify:  make(chan struct{}, 1),
		stop:    make(chan struct{}),
		onPanic: onPanic,
	}
	s.wg.Add(1)
	go s.run()
	return s
}

// Schedule runs fn once after delay. Non-positive delays fire on the next
// scheduler iteration.
func (s *Scheduler) Schedule(delay time.Duration, fn func()) (api.Cancelable, error) {
	if fn == nil {
		return nil, api.ErrInvalidArgument
	}
	if s.stopped.Load() {
		return nil, api.ErrSchedulerStopped
	}
	t := &timerTask{
		at:    time.Now().Add(delay),
		fn:    fn,
		done:  make(chan struct{}),
		sched: s,
	}
	s.mu.Lock()
	s.seq++
	t.seq = s.seq
	heap.Push(&s.timerQ, t)
	head := s.timerQ[0] == t
	s.mu.Unlock()
	if head {
		s.wake()
	}
	return t, nil
}

// Now returns wall-clock time.
func (s *Scheduler) Now() time.Time {
	return time.Now()
}

// Pending returns the number of timers not yet fired or cancelled.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timerQ.Len()
}

// Stop cancels every pending timer and waits for the goroutine to exit.
func (s *Scheduler) Stop() {
	if !s.stopped.CompareAndSwap(false, true) {
		s.wg.Wait()
		return
	}
	close(s.stop)
	s.wg.Wait()

	s.mu.Lock()
	pending := s.timerQ
	s.timerQ = nil
	s.mu.Unlock()
	for _, t := range pending {
		t.Cancel()
	}
}

func (s *Scheduler) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Scheduler) run() {
	defer s.wg.Done()
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	for {
		s.mu.Lock()
		if s.timerQ.Len() == 0 {
			s.mu.Unlock()
			select {
			case <-s.notify:
			case <-s.stop:
				return
			}
			continue
		}
		task := s.timerQ[0]
		wait := time.Until(task.at)
		if wait > 0 {
			s.mu.Unlock()
			timer.Reset(wait)
			select {
			case <-timer.C:
			case <-s.notify:
				timer.Stop()
			case <-s.stop:
				timer.Stop()
				return
			}
			continue
		}
		heap.Pop(&s.timerQ)
		s.mu.Unlock()
		if task.state.CompareAndSwap(taskPending, taskFired) {
			s.fire(task)
		}
	}
}

func (s *Scheduler) fire(t *timerTask) {
	defer func() {
		if r := recover(); r != nil && s.onPanic != nil {
			s.onPanic(r)
		}
		close(t.done)
	}()
	t.fn()
}

func (s *Scheduler) remove(t *timerTask) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.index >= 0 && t.index < len(s.timerQ) && s.timerQ[t.index] == t {
		heap.Remove(&s.timerQ, t.index)
	}
}

// timerTask is the Cancelable returned by Schedule.
type timerTask struct {
	at    time.Time
	seq   uint64
	fn    func()
	index int
	state atomic.Int32
	done  chan struct{}
	sched *Scheduler
}

func (t *timerTask) Cancel() bool {
	if !t.state.CompareAndSwap(taskPending, taskCanceled) {
		return false
	}
	t.sched.remove(t)
	close(t.done)
	return true
}

func (t *timerTask) Done() <-chan struct{} { return t.done }

func (t *timerTask) Err() error {
	if t.state.Load() == taskCanceled {
		return ErrTimerCanceled
	}
	return nil
}

// taskHeap orders timers by deadline, then by scheduling order.
type taskHeap []*timerTask

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].at.Equal(h[j].at) {
		return h[i].seq < h[j].seq
	}
	return h[i].at.Before(h[j].at)
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x any) {
	t := x.(*timerTask)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
