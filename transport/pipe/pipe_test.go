package pipe_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/momentics/hioload-mina/api"
	"github.com/momentics/hioload-mina/fake"
	"github.com/momentics/hioload-mina/service"
	"github.com/momentics/hioload-mina/transport/pipe"
)

func newService(t *testing.T, h api.Handler) *service.Service {
	t.Helper()
	sv, err := service.New(h, service.WithIdleInterval(0))
	if err != nil {
		t.Fatal(err)
	}
	return sv
}

func TestWriteDeliversToPeer(t *testing.T) {
	ha, hb := fake.NewHandler(), fake.NewHandler()
	sa, sb, err := pipe.Connect(newService(t, ha), newService(t, hb))
	if err != nil {
		t.Fatal(err)
	}
	if sa.RemoteAddr().String() != sb.LocalAddr().String() {
		t.Errorf("addresses %s / %s", sa.RemoteAddr(), sb.LocalAddr())
	}

	fut := sa.Write("hello")
	if err := fut.Err(); err != nil || !fut.IsDone() {
		t.Fatalf("write: done=%v err=%v", fut.IsDone(), err)
	}
	if got := hb.Messages(); len(got) != 1 || got[0] != "hello" {
		t.Fatalf("peer received %v", got)
	}
	if ha.Count("messageSent") != 1 {
		t.Fatal("messageSent missing on writer")
	}
	if sa.Stats().WrittenMessages != 1 || sb.Stats().ReadMessages != 1 {
		t.Fatal("counters not updated")
	}
}

func TestEchoDoesNotRecurse(t *testing.T) {
	ha, hb := fake.NewHandler(), fake.NewHandler()
	hb.OnReceived = func(s api.Session, msg any) error {
		s.Write(msg)
		return nil
	}
	n := 0
	ha.OnReceived = func(s api.Session, msg any) error {
		if n++; n < 100 {
			s.Write(msg)
		}
		return nil
	}
	sa, _, err := pipe.Connect(newService(t, ha), newService(t, hb))
	if err != nil {
		t.Fatal(err)
	}
	sa.Write("ball")
	if len(ha.Messages()) != 100 || len(hb.Messages()) != 100 {
		t.Fatalf("a=%d b=%d", len(ha.Messages()), len(hb.Messages()))
	}
}

func TestWriteFromOpenedHandler(t *testing.T) {
	ha, hb := fake.NewHandler(), fake.NewHandler()
	ha.OnOpened = func(s api.Session) error {
		s.Write("early")
		return nil
	}
	if _, _, err := pipe.Connect(newService(t, ha), newService(t, hb)); err != nil {
		t.Fatal(err)
	}
	want := []string{"sessionCreated", "sessionOpened", "messageReceived"}
	if got := hb.Names(); !reflect.DeepEqual(got, want) {
		t.Fatalf("peer events = %v", got)
	}
}

func TestReadSuspensionHoldsMessages(t *testing.T) {
	ha, hb := fake.NewHandler(), fake.NewHandler()
	sa, sb, _ := pipe.Connect(newService(t, ha), newService(t, hb))

	sb.SuspendRead()
	sa.Write(1)
	sa.Write(2)
	if len(hb.Messages()) != 0 {
		t.Fatal("delivered while suspended")
	}
	sb.ResumeRead()
	if got := hb.Messages(); !reflect.DeepEqual(got, []any{1, 2}) {
		t.Fatalf("after resume: %v", got)
	}
}

func TestWriteSuspension(t *testing.T) {
	ha, hb := fake.NewHandler(), fake.NewHandler()
	sa, _, _ := pipe.Connect(newService(t, ha), newService(t, hb))

	sa.SuspendWrite()
	fut := sa.Write("x")
	if fut.IsDone() || len(hb.Messages()) != 0 || sa.WriteQueue().Len() != 1 {
		t.Fatal("write went out while suspended")
	}
	sa.ResumeWrite()
	if !fut.IsDone() || len(hb.Messages()) != 1 {
		t.Fatal("write not flushed on resume")
	}
}

func TestCloseClosesBoth(t *testing.T) {
	ha, hb := fake.NewHandler(), fake.NewHandler()
	svA, svB := newService(t, ha), newService(t, hb)
	sa, sb, _ := pipe.Connect(svA, svB)

	sb.SuspendRead()
	sa.Write("lost")
	sa.Close(false)
	if !sa.CloseFuture().IsDone() || !sb.CloseFuture().IsDone() {
		t.Fatal("both ends should be closed")
	}
	if ha.Count("sessionClosed") != 1 || hb.Count("sessionClosed") != 1 {
		t.Fatal("sessionClosed not delivered on both ends")
	}
	if len(hb.Messages()) != 0 {
		t.Fatal("held message delivered after close")
	}
	if svA.SessionCount() != 0 || svB.SessionCount() != 0 {
		t.Fatal("sessions still managed")
	}
	if err := sa.Write("late").Err(); !errors.Is(err, api.ErrSessionClosed) {
		t.Fatalf("write after close: %v", err)
	}
}

func TestConnectNil(t *testing.T) {
	if _, _, err := pipe.Connect(nil, nil); !errors.Is(err, api.ErrInvalidArgument) {
		t.Fatalf("err = %v", err)
	}
}
