package control

import (
	"reflect"
	"testing"
)

func TestDebugProbes(t *testing.T) {
	dp := NewDebugProbes()
	dp.RegisterProbe(ProbeIdleTracked, func() any { return 3 })
	dp.RegisterProbe("broken", func() any { panic("bad") })

	if got := dp.Names(); !reflect.DeepEqual(got, []string{"broken", ProbeIdleTracked}) {
		t.Fatalf("names = %v", got)
	}
	if v, ok := dp.Probe(ProbeIdleTracked); !ok || v != 3 {
		t.Fatalf("probe = (%v, %v)", v, ok)
	}
	if _, ok := dp.Probe("missing"); ok {
		t.Fatal("missing probe reported present")
	}

	state := dp.DumpState()
	if state[ProbeIdleTracked] != 3 {
		t.Fatalf("state = %v", state)
	}
	if _, ok := state["broken"].(error); !ok {
		t.Fatalf("panicking probe value = %v", state["broken"])
	}

	dp.UnregisterProbe("broken")
	if _, ok := dp.Probe("broken"); ok {
		t.Fatal("probe still registered")
	}
}
