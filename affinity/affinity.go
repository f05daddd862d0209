// File: affinity/affinity.go
// Package affinity pins OS threads to logical CPUs.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Platform implementations live in build-tagged files. Callers must lock
// the goroutine to its thread with runtime.LockOSThread before pinning.

package affinity

import (
	"runtime"

	"github.com/samber/oops"

	"github.com/momentics/hioload-mina/api"
)

// SetAffinity pins the calling OS thread to cpuID.
func SetAffinity(cpuID int) error {
	if cpuID < 0 {
		return oops.In("affinity").With("cpu", cpuID).Wrapf(api.ErrInvalidArgument, "negative cpu")
	}
	return setAffinityPlatform(cpuID)
}

// ForWorker maps a worker index onto the available CPUs round-robin.
func ForWorker(worker int) int {
	n := runtime.NumCPU()
	if worker < 0 {
		worker = -worker
	}
	return worker % n
}
