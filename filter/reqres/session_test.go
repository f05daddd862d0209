package reqres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/momentics/hioload-mina/adapters"
	"github.com/momentics/hioload-mina/api"
	"github.com/momentics/hioload-mina/fake"
	"github.com/momentics/hioload-mina/filter/executor"
	"github.com/momentics/hioload-mina/filter/reqres"
	"github.com/momentics/hioload-mina/service"
	"github.com/momentics/hioload-mina/session"
	"github.com/momentics/hioload-mina/transport/pipe"
)

func inspectReply(msg any) (any, bool) {
	r, ok := msg.(reply)
	return r.id, ok
}

// drainingProcessor completes every write as soon as it is flushed.
func drainingProcessor() *fake.Processor {
	p := fake.NewProcessor()
	p.SetFlushFunc(func(as api.Session) {
		s := as.(*session.Session)
		for req := range s.DrainWrites() {
			s.MessageWritten(req)
		}
	})
	p.SetRemoveFunc(func(as api.Session) { as.(*session.Session).Closed() })
	return p
}

func await[T any](t *testing.T, f *api.Future[T]) (T, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return f.Await(ctx)
}

func TestCloseCancelsBehindExecutor(t *testing.T) {
	pool := adapters.NewExecutorAdapter(2, 0, nil)
	defer pool.Close()
	rr, err := reqres.New(reqres.InspectorFunc(inspectReply))
	if err != nil {
		t.Fatal(err)
	}
	defer rr.Close()

	marker := api.NewKey[string]("marker")
	h := fake.NewHandler()
	seen := make(chan bool, 1)
	h.OnClosed = func(s api.Session) error {
		_, ok := marker.Get(s.Attributes())
		seen <- ok
		return nil
	}
	s, err := session.New(session.Params{ID: "s1", Processor: drainingProcessor(), Handler: h})
	if err != nil {
		t.Fatal(err)
	}
	s.Chain().AddLast("executor", executor.New(executor.WithExecutor(pool)))
	s.Chain().AddLast("reqres", rr)
	if err := s.Open(); err != nil {
		t.Fatal(err)
	}
	marker.Set(s.Attributes(), "set")

	fut := rr.Request(s, &reqres.Request{ID: 1, Message: "ping"}, 0)
	if rr.Pending(s) != 1 {
		t.Fatalf("pending = %d", rr.Pending(s))
	}
	s.Closed()

	if _, err := await(t, fut); !errors.Is(err, api.ErrRequestCanceled) {
		t.Fatalf("request err = %v", err)
	}
	if _, err := await(t, s.CloseFuture()); err != nil {
		t.Fatal(err)
	}
	if !<-seen {
		t.Fatal("handler saw released attributes in sessionClosed")
	}
	if _, ok := marker.Get(s.Attributes()); ok {
		t.Fatal("attributes not released after close")
	}
}

func TestRequestAfterCloseIsRejected(t *testing.T) {
	rr, _ := reqres.New(reqres.InspectorFunc(inspectReply))
	defer rr.Close()
	s, _ := session.New(session.Params{Processor: drainingProcessor(), Handler: fake.NewHandler()})
	s.Chain().AddLast("reqres", rr)
	s.Open()
	s.Closed()
	if _, err := await(t, rr.Request(s, &reqres.Request{Message: "late"}, 0)); err == nil {
		t.Fatal("request on closed session succeeded")
	}
}

func TestRequestOverPipe(t *testing.T) {
	rr, err := reqres.New(reqres.InspectorFunc(inspectReply))
	if err != nil {
		t.Fatal(err)
	}
	defer rr.Close()

	client := fake.NewHandler()
	server := fake.NewHandler()
	server.OnReceived = func(s api.Session, msg any) error {
		req := msg.(*reqres.Request)
		s.Write(reply{id: req.ID.(int), body: "pong"})
		return nil
	}
	pool := adapters.NewExecutorAdapter(2, 0, nil)
	defer pool.Close()

	csv, _ := service.New(client, service.WithIdleInterval(0))
	csv.FilterChain().AddLast("executor", executor.New(executor.WithExecutor(pool)))
	csv.FilterChain().AddLast("reqres", rr)
	ssv, _ := service.New(server, service.WithIdleInterval(0))

	cs, _, err := pipe.Connect(csv, ssv)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := await(t, rr.Request(cs, &reqres.Request{ID: 7, Message: "ping"}, time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if r := resp.Message.(reply); r.id != 7 || r.body != "pong" {
		t.Fatalf("response = %+v", r)
	}
	if len(client.Messages()) != 0 {
		t.Fatal("matched response reached the handler")
	}

	cs.Close(true)
	if _, err := await(t, cs.CloseFuture()); err != nil {
		t.Fatal(err)
	}
	if csv.SessionCount() != 0 || ssv.SessionCount() != 0 {
		t.Fatal("sessions still managed after close")
	}
}
