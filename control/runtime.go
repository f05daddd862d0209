// File: control/runtime.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Go runtime probes shared by every platform.

package control

import "runtime"

func registerRuntimeProbes(dp *DebugProbes) {
	dp.RegisterProbe("runtime.goroutines", func() any {
		return runtime.NumGoroutine()
	})
	dp.RegisterProbe("runtime.os", func() any {
		return runtime.GOOS
	})
	dp.RegisterProbe("runtime.heap_alloc", func() any {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		return ms.HeapAlloc
	})
}
