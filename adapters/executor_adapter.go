// File: adapters/executor_adapter.go
// Package adapters provides glue between internal concurrency and api.Executor.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// ExecutorAdapter implements the api.Executor interface by delegating to the internal
// concurrency.Executor, logging task panics through logrus.

package adapters

import (
	"github.com/sirupsen/logrus"

	"github.com/momentics/hioload-mina/affinity"
	"github.com/momentics/hioload-mina/api"
	"github.com/momentics/hioload-mina/internal/concurrency"
)

// ExecutorAdapter wraps an internal concurrency.Executor to satisfy the api.Executor contract.
type ExecutorAdapter struct {
	exec *concurrency.Executor
}

var _ api.Executor = (*ExecutorAdapter)(nil)

// NewExecutorAdapter constructs an api.Executor with the given number of worker goroutines
// and queue slots. A nil log uses the standard logger.
func NewExecutorAdapter(workers, queueSize int, log *logrus.Logger) *ExecutorAdapter {
	if log == nil {
		log = logrus.StandardLogger()
	}
	entry := log.WithField("component", "executor")
	e := concurrency.NewExecutor(workers, queueSize, func(r any) {
		entry.WithField("panic", r).Error("task panicked")
	})
	return &ExecutorAdapter{exec: e}
}

// NewPinnedExecutorAdapter is NewExecutorAdapter with every worker locked
// to one CPU, assigned round-robin. Pinning failures are logged and the
// worker runs unpinned.
func NewPinnedExecutorAdapter(workers, queueSize int, log *logrus.Logger) *ExecutorAdapter {
	if log == nil {
		log = logrus.StandardLogger()
	}
	entry := log.WithField("component", "executor")
	e := concurrency.NewExecutor(workers, queueSize, func(r any) {
		entry.WithField("panic", r).Error("task panicked")
	}, concurrency.WithWorkerInit(func(w int) {
		cpu := affinity.ForWorker(w)
		if err := affinity.SetAffinity(cpu); err != nil {
			entry.WithError(err).WithFields(logrus.Fields{"worker": w, "cpu": cpu}).Warn("pin worker")
		}
	}))
	return &ExecutorAdapter{exec: e}
}

// Submit dispatches a task function to be executed asynchronously.
// Returns an error if the executor has been closed.
func (ea *ExecutorAdapter) Submit(task func()) error {
	return ea.exec.Submit(task)
}

// NumWorkers returns the number of worker goroutines.
func (ea *ExecutorAdapter) NumWorkers() int {
	return ea.exec.NumWorkers()
}

// Stats reports task counters keyed by name.
func (ea *ExecutorAdapter) Stats() map[string]int64 {
	return ea.exec.Stats()
}

// Close stops accepting tasks, runs what was queued and waits for the workers.
func (ea *ExecutorAdapter) Close() {
	ea.exec.Close()
}
