// File: fake/processor.go
// Package fake
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Fake implementations for testing and development.
// Provides predictable, controllable behavior for the core interfaces.

package fake

import (
	"sync"

	"github.com/momentics/hioload-mina/api"
)

// Processor is a fake transport processor. It records every call and
// optionally runs a hook on Flush so tests can drain write queues.
type Processor struct {
	mu       sync.Mutex
	flushes  int
	removes  int
	controls int
	removed  []string

	// FlushFunc, when set, runs on every Flush.
	FlushFunc func(s api.Session)
	// RemoveFunc, when set, runs on every Remove.
	RemoveFunc func(s api.Session)
}

// NewProcessor creates a fake processor with no hooks.
func NewProcessor() *Processor {
	return &Processor{}
}

// Flush records the call and runs FlushFunc.
func (p *Processor) Flush(s api.Session) {
	p.mu.Lock()
	p.flushes++
	fn := p.FlushFunc
	p.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

// Remove records the call and runs RemoveFunc.
func (p *Processor) Remove(s api.Session) {
	p.mu.Lock()
	p.removes++
	p.removed = append(p.removed, s.ID())
	fn := p.RemoveFunc
	p.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

// UpdateTrafficControl records the call.
func (p *Processor) UpdateTrafficControl(s api.Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.controls++
}

// SetFlushFunc replaces the Flush hook.
func (p *Processor) SetFlushFunc(fn func(s api.Session)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.FlushFunc = fn
}

// SetRemoveFunc replaces the Remove hook.
func (p *Processor) SetRemoveFunc(fn func(s api.Session)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.RemoveFunc = fn
}

// Flushes returns the number of Flush calls.
func (p *Processor) Flushes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flushes
}

// Removes returns the number of Remove calls.
func (p *Processor) Removes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.removes
}

// TrafficControls returns the number of UpdateTrafficControl calls.
func (p *Processor) TrafficControls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.controls
}

// Removed returns the ids of removed sessions in call order.
func (p *Processor) Removed() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.removed))
	copy(out, p.removed)
	return out
}
