// File: control/debug.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Named debug probes. Services register probes for their sessions, idle
// index and executor; DumpState evaluates them for Stats.

package control

import (
	"sort"
	"sync"

	"github.com/samber/oops"
)

// Probe names registered by the service layer.
const (
	ProbeSessionsManaged = "service.sessions_managed"
	ProbeIdleTracked     = "service.idle_tracked"
	ProbeExecutor        = "service.executor"
)

// DebugProbes holds registered probe functions.
type DebugProbes struct {
	mu     sync.RWMutex
	probes map[string]func() any
}

// NewDebugProbes creates a probe registry.
func NewDebugProbes() *DebugProbes {
	return &DebugProbes{
		probes: make(map[string]func() any),
	}
}

// RegisterProbe inserts or replaces a named probe.
func (dp *DebugProbes) RegisterProbe(name string, fn func() any) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.probes[name] = fn
}

// UnregisterProbe removes a probe.
func (dp *DebugProbes) UnregisterProbe(name string) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	delete(dp.probes, name)
}

// Names returns the registered probe names, sorted.
func (dp *DebugProbes) Names() []string {
	dp.mu.RLock()
	names := make([]string, 0, len(dp.probes))
	for k := range dp.probes {
		names = append(names, k)
	}
	dp.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Probe evaluates one probe.
func (dp *DebugProbes) Probe(name string) (any, bool) {
	dp.mu.RLock()
	fn, ok := dp.probes[name]
	dp.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return run(name, fn), true
}

// DumpState evaluates every probe outside the lock. A panicking probe
// reports its error as the value.
func (dp *DebugProbes) DumpState() map[string]any {
	dp.mu.RLock()
	fns := make(map[string]func() any, len(dp.probes))
	for k, fn := range dp.probes {
		fns[k] = fn
	}
	dp.mu.RUnlock()
	out := make(map[string]any, len(fns))
	for k, fn := range fns {
		out[k] = run(k, fn)
	}
	return out
}

func run(name string, fn func() any) (v any) {
	if err := oops.In("control").With("probe", name).Recoverf(func() {
		v = fn()
	}, "probe %s panicked", name); err != nil {
		return err
	}
	return v
}
