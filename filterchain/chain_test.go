package filterchain_test

import (
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/momentics/hioload-mina/api"
	"github.com/momentics/hioload-mina/fake"
	"github.com/momentics/hioload-mina/filterchain"
)

type sink struct {
	mu       sync.Mutex
	log      *fake.Recorder
	writes   []any
	closes    int
	finalized int
	writeErr  error
}

func (k *sink) FilterWrite(s api.Session, req *api.WriteRequest) error {
	k.log.Record(fake.Event{Name: "head.filterWrite", Message: req.Message()})
	if k.writeErr != nil {
		return k.writeErr
	}
	k.mu.Lock()
	k.writes = append(k.writes, req.Message())
	k.mu.Unlock()
	req.Future().Resolve(struct{}{})
	return nil
}

func (k *sink) FilterClose(s api.Session) error {
	k.log.Record(fake.Event{Name: "head.filterClose"})
	k.mu.Lock()
	k.closes++
	k.mu.Unlock()
	return nil
}

func (k *sink) Finalize(api.Session) {
	k.mu.Lock()
	k.finalized++
	k.mu.Unlock()
}

type fixture struct {
	log     *fake.Recorder
	handler *fake.Handler
	session *fake.Session
	sink    *sink
	chain   *filterchain.Chain
}

func newFixture(t *testing.T, names ...string) *fixture {
	t.Helper()
	fx := &fixture{log: &fake.Recorder{}, handler: fake.NewHandler()}
	fx.session = fake.NewSession("s1", fx.handler)
	fx.sink = &sink{log: fx.log}
	fx.chain = filterchain.New(fx.session, fx.sink, nil)
	fx.session.SetChain(fx.chain)
	for _, n := range names {
		if err := fx.chain.AddLast(n, fake.NewFilter(n, fx.log)); err != nil {
			t.Fatalf("AddLast(%s): %v", n, err)
		}
	}
	return fx
}

func TestTraversalOrder(t *testing.T) {
	fx := newFixture(t, "A", "B", "C")

	fx.chain.FireMessageReceived("m")
	want := []string{"A.messageReceived", "B.messageReceived", "C.messageReceived"}
	if got := fx.log.Names(); !reflect.DeepEqual(got, want) {
		t.Fatalf("inbound order = %v, want %v", got, want)
	}
	if got := fx.handler.Messages(); len(got) != 1 || got[0] != "m" {
		t.Fatalf("handler got %v", got)
	}

	fx.log.Reset()
	fut := fx.session.Write("out")
	want = []string{"C.filterWrite", "B.filterWrite", "A.filterWrite", "head.filterWrite"}
	if got := fx.log.Names(); !reflect.DeepEqual(got, want) {
		t.Fatalf("outbound order = %v, want %v", got, want)
	}
	if err := fut.Err(); err != nil || !fut.IsDone() {
		t.Fatalf("write future: done=%v err=%v", fut.IsDone(), err)
	}

	fx.log.Reset()
	fx.chain.FireFilterClose()
	want = []string{"C.filterClose", "B.filterClose", "A.filterClose", "head.filterClose"}
	if got := fx.log.Names(); !reflect.DeepEqual(got, want) {
		t.Fatalf("close order = %v, want %v", got, want)
	}
}

func TestEmptyChainReachesEnds(t *testing.T) {
	fx := newFixture(t)
	fx.chain.FireSessionOpened()
	fx.chain.FireSessionIdle(api.WriterIdle)
	if got := fx.handler.Names(); !reflect.DeepEqual(got, []string{"sessionOpened", "sessionIdle"}) {
		t.Fatalf("handler events = %v", got)
	}
	fx.session.Write([]byte("x"))
	if len(fx.sink.writes) != 1 {
		t.Fatalf("sink writes = %d, want 1", len(fx.sink.writes))
	}
}

func TestMutationAPI(t *testing.T) {
	fx := newFixture(t, "B")
	mk := func(n string) api.Filter { return fake.NewFilter(n, fx.log) }

	if err := fx.chain.AddFirst("A", mk("A")); err != nil {
		t.Fatal(err)
	}
	if err := fx.chain.AddAfter("B", "D", mk("D")); err != nil {
		t.Fatal(err)
	}
	if err := fx.chain.AddBefore("D", "C", mk("C")); err != nil {
		t.Fatal(err)
	}
	if got := fx.chain.Names(); !reflect.DeepEqual(got, []string{"A", "B", "C", "D"}) {
		t.Fatalf("names = %v", got)
	}

	if err := fx.chain.AddLast("A", mk("A")); !errors.Is(err, api.ErrDuplicateFilter) {
		t.Errorf("duplicate: got %v", err)
	}
	if err := fx.chain.AddBefore("missing", "X", mk("X")); !errors.Is(err, api.ErrFilterNotFound) {
		t.Errorf("missing base: got %v", err)
	}
	if err := fx.chain.AddLast("", mk("")); !errors.Is(err, api.ErrInvalidArgument) {
		t.Errorf("empty name: got %v", err)
	}
	if _, err := fx.chain.Remove("missing"); !errors.Is(err, api.ErrFilterNotFound) {
		t.Errorf("remove missing: got %v", err)
	}

	repl := mk("C2")
	old, err := fx.chain.Replace("C", repl)
	if err != nil || old == nil {
		t.Fatalf("replace: %v", err)
	}
	if fx.chain.Get("C") != repl {
		t.Error("replace did not install the new filter")
	}
	if _, err := fx.chain.Remove("B"); err != nil {
		t.Fatal(err)
	}
	if fx.chain.Contains("B") {
		t.Error("removed filter still present")
	}
	if err := fx.chain.Clear(); err != nil {
		t.Fatal(err)
	}
	if fx.chain.Len() != 0 {
		t.Errorf("Len after Clear = %d", fx.chain.Len())
	}
}

type remover struct {
	api.FilterAdapter
	chain  api.FilterChain
	target string
}

func (r *remover) MessageReceived(next api.NextFilter, s api.Session, msg any) error {
	r.chain.Remove(r.target)
	next.MessageReceived(s, msg)
	return nil
}

func TestSnapshotSurvivesMutation(t *testing.T) {
	fx := newFixture(t)
	fx.chain.AddLast("R", &remover{chain: fx.chain, target: "C"})
	fx.chain.AddLast("B", fake.NewFilter("B", fx.log))
	fx.chain.AddLast("C", fake.NewFilter("C", fx.log))

	fx.chain.FireMessageReceived(1)
	if got := fx.log.Names(); !reflect.DeepEqual(got, []string{"B.messageReceived", "C.messageReceived"}) {
		t.Fatalf("in-flight traversal = %v", got)
	}
	fx.log.Reset()
	fx.chain.FireMessageReceived(2)
	if got := fx.log.Names(); !reflect.DeepEqual(got, []string{"B.messageReceived"}) {
		t.Fatalf("next traversal = %v", got)
	}
}

func TestErrorRedeliveredFromFailingFilter(t *testing.T) {
	fx := newFixture(t, "A", "B", "C")
	boom := errors.New("boom")
	fx.chain.Get("B").(*fake.Filter).Fail["messageReceived"] = boom

	fx.chain.FireMessageReceived("m")
	want := []string{
		"A.messageReceived", "B.messageReceived",
		"B.exceptionCaught", "C.exceptionCaught",
	}
	if got := fx.log.Names(); !reflect.DeepEqual(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	if len(fx.handler.Messages()) != 0 {
		t.Error("handler saw the message after a filter failed")
	}
	ev := fx.handler.Events()
	if len(ev) != 1 || !errors.Is(ev[0].Err, boom) {
		t.Fatalf("handler events = %v", ev)
	}
}

type panicker struct{ api.FilterAdapter }

func (panicker) MessageReceived(api.NextFilter, api.Session, any) error {
	panic("kaboom")
}

func TestPanicBecomesException(t *testing.T) {
	fx := newFixture(t)
	fx.chain.AddLast("P", panicker{})
	fx.chain.FireMessageReceived("m")
	ev := fx.handler.Events()
	if len(ev) != 1 || ev[0].Name != "exceptionCaught" || ev[0].Err == nil {
		t.Fatalf("handler events = %v", ev)
	}
	if fx.session.Closes() != 0 {
		t.Error("a recovered panic must not close the session")
	}
}

func TestWriteFailureRejectsFuture(t *testing.T) {
	fx := newFixture(t, "A", "B")
	fail := errors.New("encode")
	fx.chain.Get("A").(*fake.Filter).Fail["filterWrite"] = fail

	fut := fx.session.Write("x")
	if !errors.Is(fut.Err(), fail) {
		t.Fatalf("future err = %v, want %v", fut.Err(), fail)
	}
	if len(fx.sink.writes) != 0 {
		t.Error("failed write reached the sink")
	}
	// exceptionCaught restarts at A and runs inbound from there
	if got := fx.log.Names(); !reflect.DeepEqual(got, []string{
		"B.filterWrite", "A.filterWrite", "A.exceptionCaught", "B.exceptionCaught",
	}) {
		t.Fatalf("events = %v", got)
	}

	fx.sink.writeErr = errors.New("io")
	delete(fx.chain.Get("A").(*fake.Filter).Fail, "filterWrite")
	if err := fx.session.Write("y").Err(); !errors.Is(err, fx.sink.writeErr) {
		t.Fatalf("sink failure: future err = %v", err)
	}
}

func TestFailingFilterCloseStillReachesSink(t *testing.T) {
	fx := newFixture(t, "A", "B")
	fx.chain.Get("B").(*fake.Filter).Fail["filterClose"] = errors.New("close")
	fx.chain.FireFilterClose()
	if fx.sink.closes != 1 {
		t.Fatalf("sink closes = %d, want 1", fx.sink.closes)
	}
	if fx.handler.Count("exceptionCaught") != 1 {
		t.Error("filterClose failure was not reported")
	}
}

// deferring holds sessionClosed until release is called.
type deferring struct {
	api.FilterAdapter
	release func()
}

func (d *deferring) SessionClosed(next api.NextFilter, s api.Session) error {
	d.release = func() { next.SessionClosed(s) }
	return nil
}

func TestFinalizeAfterSessionClosedReachesHandler(t *testing.T) {
	fx := newFixture(t, "A")
	d := &deferring{}
	if err := fx.chain.AddLast("later", d); err != nil {
		t.Fatal(err)
	}
	fx.chain.FireSessionClosed()
	if fx.sink.finalized != 0 || fx.handler.Count("sessionClosed") != 0 {
		t.Fatal("finalized before the handler saw sessionClosed")
	}
	d.release()
	if fx.sink.finalized != 1 || fx.handler.Count("sessionClosed") != 1 {
		t.Fatalf("finalized=%d handler=%v", fx.sink.finalized, fx.handler.Names())
	}
}

func TestFailingSessionClosedStillFinalizes(t *testing.T) {
	fx := newFixture(t, "A", "B")
	fx.chain.Get("A").(*fake.Filter).Fail["sessionClosed"] = errors.New("closed")
	fx.chain.FireSessionClosed()
	if fx.sink.finalized != 1 {
		t.Fatalf("finalized = %d, want 1", fx.sink.finalized)
	}
	if fx.handler.Count("exceptionCaught") != 1 {
		t.Error("sessionClosed failure was not reported")
	}
}

func TestExceptionHandlerFailureClosesSession(t *testing.T) {
	fx := newFixture(t, "A")
	fx.handler.OnException = func(api.Session, error) error { return errors.New("again") }
	fx.chain.FireExceptionCaught(errors.New("first"))
	if fx.session.Closes() != 1 || !fx.session.ClosedImmediately() {
		t.Fatalf("closes=%d immediate=%v", fx.session.Closes(), fx.session.ClosedImmediately())
	}
}

type awareFilter struct {
	api.FilterAdapter
	addErr  error
	removed int
}

func (a *awareFilter) OnPostAdd(api.FilterChain, string) error { return a.addErr }

func (a *awareFilter) OnPreRemove(api.FilterChain, string) error {
	a.removed++
	return nil
}

func TestChainAwareHooks(t *testing.T) {
	fx := newFixture(t)
	bad := &awareFilter{addErr: errors.New("no")}
	if err := fx.chain.AddLast("bad", bad); err == nil {
		t.Fatal("OnPostAdd failure not returned")
	}
	if fx.chain.Contains("bad") {
		t.Fatal("insert not rolled back")
	}

	good := &awareFilter{}
	if err := fx.chain.AddLast("good", good); err != nil {
		t.Fatal(err)
	}
	fx.chain.Remove("good")
	if good.removed != 1 {
		t.Errorf("OnPreRemove calls = %d", good.removed)
	}
}

func TestBuilder(t *testing.T) {
	log := &fake.Recorder{}
	b := filterchain.NewBuilder()
	b.AddLast("B", fake.NewFilter("B", log))
	b.AddFirst("A", fake.NewFilter("A", log))
	b.AddLast("C", fake.NewFilter("C", log))
	if err := b.AddLast("A", fake.NewFilter("A", log)); !errors.Is(err, api.ErrDuplicateFilter) {
		t.Errorf("duplicate: %v", err)
	}

	fx := newFixture(t)
	if err := b.BuildChain(fx.chain); err != nil {
		t.Fatal(err)
	}
	if got := fx.chain.Names(); !reflect.DeepEqual(got, []string{"A", "B", "C"}) {
		t.Fatalf("built names = %v", got)
	}
	if fx.chain.Get("B") != b.Get("B") {
		t.Error("built chain must share filter instances")
	}

	b.Remove("B")
	if got := fx.chain.Names(); len(got) != 3 {
		t.Error("builder mutation leaked into a built chain")
	}
}
