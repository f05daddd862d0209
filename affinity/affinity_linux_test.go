//go:build linux

package affinity_test

import (
	"runtime"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-mina/affinity"
)

func TestPinCurrentThread(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	var orig unix.CPUSet
	if err := unix.SchedGetaffinity(0, &orig); err != nil {
		t.Skipf("sched_getaffinity: %v", err)
	}
	defer unix.SchedSetaffinity(0, &orig)

	cpu := -1
	for i := 0; i < 1024; i++ {
		if orig.IsSet(i) {
			cpu = i
			break
		}
	}
	if cpu < 0 {
		t.Skip("no cpu in affinity mask")
	}
	if err := affinity.SetAffinity(cpu); err != nil {
		t.Fatalf("pin to cpu %d: %v", cpu, err)
	}
	var now unix.CPUSet
	if err := unix.SchedGetaffinity(0, &now); err != nil {
		t.Fatal(err)
	}
	if now.Count() != 1 || !now.IsSet(cpu) {
		t.Fatalf("mask after pin has %d cpus", now.Count())
	}
}
