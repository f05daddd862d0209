// File: internal/concurrency/executor.go
// Package concurrency implements a fixed-size task executor.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Executor dispatches tasks across worker goroutines through a shared
// bounded queue. Submitting to a full queue blocks until a worker frees a
// slot or the executor closes.

package concurrency

import (
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/cpu"

	"github.com/momentics/hioload-mina/api"
)

// TaskFunc is a unit of work to execute.
type TaskFunc func()

// Executor manages a pool of worker goroutines.
type Executor struct {
	tasks   chan TaskFunc
	closeCh chan struct{}
	closed  atomic.Bool
	wg      sync.WaitGroup
	workers int
	onPanic func(any)
	init    func(worker int)

	// statistics, kept on separate cache lines from the hot queue fields
	_              cpu.CacheLinePad
	totalTasks     atomic.Int64
	_              cpu.CacheLinePad
	completedTasks atomic.Int64
	_              cpu.CacheLinePad
}

var _ api.Executor = (*Executor)(nil)

// ExecutorOption customizes NewExecutor.
type ExecutorOption func(*Executor)

// WithWorkerInit runs fn at the start of every worker with the worker
// index. The worker is locked to its OS thread first, so fn may set
// thread-level properties such as CPU affinity.
func WithWorkerInit(fn func(worker int)) ExecutorOption {
	return func(e *Executor) { e.init = fn }
}

// NewExecutor creates an Executor with numWorkers goroutines and a queue
// of queueSize slots. Non-positive values default to runtime.NumCPU()
// workers and 64 slots per worker. onPanic may be nil.
func NewExecutor(numWorkers, queueSize int, onPanic func(any), opts ...ExecutorOption) *Executor {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if queueSize <= 0 {
		queueSize = numWorkers * 64
	}
	e := &Executor{
		tasks:   make(chan TaskFunc, queueSize),
		closeCh: make(chan struct{}),
		workers: numWorkers,
		onPanic: onPanic,
	}
	for _, o := range opts {
		o(e)
	}
	e.wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go e.worker(i)
	}
	return e
}

// Submit enqueues a task for execution, returning api.ErrExecutorClosed
// if the executor is closed.
func (e *Executor) Submit(task func()) error {
	if task == nil {
		return api.ErrInvalidArgument
	}
	if e.closed.Load() {
		return api.ErrExecutorClosed
	}
	select {
	case e.tasks <- task:
		e.totalTasks.Add(1)
		return nil
	case <-e.closeCh:
		return api.ErrExecutorClosed
	}
}

// NumWorkers returns the number of worker goroutines.
func (e *Executor) NumWorkers() int {
	return e.workers
}

// Close stops accepting tasks, lets workers finish what is queued and
// waits for them to exit.
func (e *Executor) Close() {
	if e.closed.CompareAndSwap(false, true) {
		close(e.closeCh)
	}
	e.wg.Wait()
}

// Stats returns basic executor metrics.
func (e *Executor) Stats() map[string]int64 {
	total := e.totalTasks.Load()
	completed := e.completedTasks.Load()
	return map[string]int64{
		"total_tasks":     total,
		"completed_tasks": completed,
		"pending_tasks":   total - completed,
		"num_workers":     int64(e.workers),
	}
}

func (e *Executor) worker(id int) {
	defer e.wg.Done()
	if e.init != nil {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		e.init(id)
	}
	for {
		select {
		case task := <-e.tasks:
			e.execute(task)
		case <-e.closeCh:
			// drain whatever was accepted before close
			for {
				select {
				case task := <-e.tasks:
					e.execute(task)
				default:
					return
				}
			}
		}
	}
}

// execute runs the task and updates statistics, recovering from panics.
func (e *Executor) execute(task TaskFunc) {
	defer func() {
		if r := recover(); r != nil && e.onPanic != nil {
			e.onPanic(r)
		}
		e.completedTasks.Add(1)
	}()
	task()
}
