// File: api/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Per-session configuration with named, independently settable options.

package api

import (
	"sync"
	"time"
)

// SessionConfig holds tunables consulted by sessions, transports and the
// idle checker. All accessors are safe for concurrent use.
type SessionConfig struct {
	mu                sync.RWMutex
	idleTime          [IdleStatusCount]time.Duration
	readBufferSize    int
	minReadBufferSize int
	maxReadBufferSize int
	writeTimeout      time.Duration
	watchers          []func(status IdleStatus, d time.Duration)
}

// DefaultSessionConfig returns sensible defaults: no idle timeouts and
// 2 KiB read buffers growing up to 64 KiB.
func DefaultSessionConfig() *SessionConfig {
	return &SessionConfig{
		readBufferSize:    2048,
		minReadBufferSize: 64,
		maxReadBufferSize: 64 * 1024,
		writeTimeout:      60 * time.Second,
	}
}

// IdleTime returns the idle timeout for status; zero disables it.
func (c *SessionConfig) IdleTime(status IdleStatus) time.Duration {
	if !status.Valid() {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.idleTime[status]
}

// SetIdleTime changes the idle timeout for status and notifies watchers.
// Negative durations are treated as zero.
func (c *SessionConfig) SetIdleTime(status IdleStatus, d time.Duration) {
	if !status.Valid() {
		return
	}
	if d < 0 {
		d = 0
	}
	c.mu.Lock()
	if c.idleTime[status] == d {
		c.mu.Unlock()
		return
	}
	c.idleTime[status] = d
	watchers := c.watchers
	c.mu.Unlock()
	for _, fn := range watchers {
		fn(status, d)
	}
}

// Watch registers fn to be called after every idle time change.
func (c *SessionConfig) Watch(fn func(status IdleStatus, d time.Duration)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watchers = append(c.watchers, fn)
}

// ReadBufferSize is the initial transport read buffer size hint.
func (c *SessionConfig) ReadBufferSize() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.readBufferSize
}

// SetReadBufferSize sets the read buffer size hint, clamped to the
// configured min/max bounds.
func (c *SessionConfig) SetReadBufferSize(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readBufferSize = clamp(n, c.minReadBufferSize, c.maxReadBufferSize)
}

// MinReadBufferSize is the lower bound for adaptive read buffers.
func (c *SessionConfig) MinReadBufferSize() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.minReadBufferSize
}

// SetMinReadBufferSize sets the lower bound. Values below 1 are ignored.
func (c *SessionConfig) SetMinReadBufferSize(n int) {
	if n < 1 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.minReadBufferSize = n
	if c.maxReadBufferSize < n {
		c.maxReadBufferSize = n
	}
	c.readBufferSize = clamp(c.readBufferSize, c.minReadBufferSize, c.maxReadBufferSize)
}

// MaxReadBufferSize is the upper bound for adaptive read buffers.
func (c *SessionConfig) MaxReadBufferSize() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.maxReadBufferSize
}

// SetMaxReadBufferSize sets the upper bound. Values below 1 are ignored.
func (c *SessionConfig) SetMaxReadBufferSize(n int) {
	if n < 1 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxReadBufferSize = n
	if c.minReadBufferSize > n {
		c.minReadBufferSize = n
	}
	c.readBufferSize = clamp(c.readBufferSize, c.minReadBufferSize, c.maxReadBufferSize)
}

// WriteTimeout bounds a single transport write; zero means none.
func (c *SessionConfig) WriteTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.writeTimeout
}

// SetWriteTimeout sets the transport write timeout.
func (c *SessionConfig) SetWriteTimeout(d time.Duration) {
	if d < 0 {
		d = 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeTimeout = d
}

// Clone copies every option; watchers are not copied.
func (c *SessionConfig) Clone() *SessionConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return &SessionConfig{
		idleTime:          c.idleTime,
		readBufferSize:    c.readBufferSize,
		minReadBufferSize: c.minReadBufferSize,
		maxReadBufferSize: c.maxReadBufferSize,
		writeTimeout:      c.writeTimeout,
	}
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
