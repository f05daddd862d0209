// File: internal/concurrency/ordered.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// OrderedQueue runs tasks one at a time in submission order without a
// dedicated goroutine. The first poster becomes the drainer; tasks posted
// while a drain is active (including re-entrant posts from inside a task)
// are appended and run by that same drain.

package concurrency

import (
	"sync"

	"github.com/eapache/queue"
)

// OrderedQueue serializes tasks. When submit is nil tasks drain on the
// posting goroutine, otherwise the drain loop is handed to submit.
type OrderedQueue struct {
	mu      sync.Mutex
	tasks   *queue.Queue
	running bool
	submit  func(func()) error
	onPanic func(any)
}

// NewOrderedQueue creates a queue that drains inline.
func NewOrderedQueue(onPanic func(any)) *OrderedQueue {
	return &OrderedQueue{tasks: queue.New(), onPanic: onPanic}
}

// NewOrderedQueueOn creates a queue that drains on submit, typically an
// Executor's Submit. Ordering holds across workers because only one
// drain loop exists per queue at any time.
func NewOrderedQueueOn(submit func(func()) error, onPanic func(any)) *OrderedQueue {
	return &OrderedQueue{tasks: queue.New(), submit: submit, onPanic: onPanic}
}

// Post appends task. If no drain is active one is started.
func (o *OrderedQueue) Post(task func()) error {
	o.mu.Lock()
	o.tasks.Add(task)
	if o.running {
		o.mu.Unlock()
		return nil
	}
	o.running = true
	o.mu.Unlock()

	if o.submit == nil {
		o.drain()
		return nil
	}
	if err := o.submit(o.drain); err != nil {
		// nothing can drain: drop everything posted since running was set
		o.mu.Lock()
		o.tasks = queue.New()
		o.running = false
		o.mu.Unlock()
		return err
	}
	return nil
}

// Len returns the number of tasks waiting to run.
func (o *OrderedQueue) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.tasks.Length()
}

// Busy reports whether a drain loop is active.
func (o *OrderedQueue) Busy() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

func (o *OrderedQueue) drain() {
	for {
		o.mu.Lock()
		if o.tasks.Length() == 0 {
			o.running = false
			o.mu.Unlock()
			return
		}
		task := o.tasks.Remove().(func())
		o.mu.Unlock()
		o.run(task)
	}
}

func (o *OrderedQueue) run(task func()) {
	defer func() {
		if r := recover(); r != nil && o.onPanic != nil {
			o.onPanic(r)
		}
	}()
	task()
}
