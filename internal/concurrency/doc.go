// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Concurrency primitives for hioload-mina: a fixed worker Executor, a
// heap-backed timer Scheduler, and OrderedQueue, which serializes tasks
// per owner (one session) while letting different owners run in parallel.
package concurrency
