package session_test

import (
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/momentics/hioload-mina/api"
	"github.com/momentics/hioload-mina/fake"
	"github.com/momentics/hioload-mina/idle"
	"github.com/momentics/hioload-mina/session"
)

func newSession(t *testing.T, h api.Handler, mutate ...func(*session.Params)) (*session.Session, *fake.Processor) {
	t.Helper()
	proc := fake.NewProcessor()
	p := session.Params{ID: "s1", Processor: proc, Handler: h}
	for _, m := range mutate {
		m(&p)
	}
	s, err := session.New(p)
	if err != nil {
		t.Fatal(err)
	}
	return s, proc
}

func TestNewRequiresProcessor(t *testing.T) {
	if _, err := session.New(session.Params{}); !errors.Is(err, api.ErrInvalidArgument) {
		t.Fatalf("err = %v", err)
	}
	s, _ := newSession(t, nil, func(p *session.Params) { p.ID = "" })
	if s.ID() == "" {
		t.Fatal("no generated id")
	}
}

func TestLifecycleEvents(t *testing.T) {
	h := fake.NewHandler()
	s, proc := newSession(t, h)
	if s.State() != api.StateCreated {
		t.Fatalf("state = %s", s.State())
	}
	if err := s.Open(); err != nil {
		t.Fatal(err)
	}
	if err := s.Open(); err == nil {
		t.Fatal("second Open must fail")
	}
	s.Receive("hello")
	s.Close(false)
	if s.State() != api.StateClosing {
		t.Fatalf("state after close = %s", s.State())
	}
	if proc.Removes() != 1 {
		t.Fatalf("empty queue close did not reach the transport")
	}
	s.Closed()
	s.Closed()

	want := []string{"sessionCreated", "sessionOpened", "messageReceived", "sessionClosed"}
	if got := h.Names(); !reflect.DeepEqual(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	if !s.CloseFuture().IsDone() {
		t.Fatal("close future not resolved")
	}
	if s.Attributes().Len() != 0 {
		t.Fatal("attributes not released")
	}
}

func TestStateIsMonotonic(t *testing.T) {
	s, _ := newSession(t, nil)
	s.Open()
	s.Closed()
	for i := 0; i < 3; i++ {
		s.Close(i%2 == 0)
		if s.State() != api.StateClosed {
			t.Fatalf("state left CLOSED: %s", s.State())
		}
		if err := s.Write("x").Err(); !errors.Is(err, api.ErrSessionClosed) {
			t.Fatalf("write after close: %v", err)
		}
	}
}

func TestWriteMisuseIsReported(t *testing.T) {
	s, proc := newSession(t, nil)
	s.Open()
	if err := s.Write(nil).Err(); !errors.Is(err, api.ErrInvalidArgument) {
		t.Fatalf("nil write: %v", err)
	}
	fut := s.Write("ok")
	if fut.IsDone() {
		t.Fatal("queued write resolved before the transport wrote it")
	}
	if proc.Flushes() != 1 {
		t.Fatalf("flushes = %d", proc.Flushes())
	}
	req := s.PollWrite()
	s.MessageWritten(req)
	if err := fut.Err(); err != nil || !fut.IsDone() {
		t.Fatalf("future after write: done=%v err=%v", fut.IsDone(), err)
	}
	st := s.Stats()
	if st.WrittenBytes != 2 || st.WrittenMessages != 1 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestImmediateCloseDiscardsQueuedWrites(t *testing.T) {
	h := fake.NewHandler()
	s, proc := newSession(t, h)
	s.Open()
	futs := []*api.WriteFuture{s.Write("a"), s.Write("b"), s.Write("c")}
	if s.WriteQueue().Len() != 3 {
		t.Fatalf("queued = %d", s.WriteQueue().Len())
	}

	s.Close(true)
	if s.WriteQueue().Len() != 0 {
		t.Fatal("queue not emptied")
	}
	for i, f := range futs {
		if !errors.Is(f.Err(), api.ErrWriteDiscarded) {
			t.Fatalf("future %d err = %v", i, f.Err())
		}
	}
	if s.State() != api.StateClosing || proc.Removes() != 1 {
		t.Fatalf("state=%s removes=%d", s.State(), proc.Removes())
	}
	s.Closed()
	if s.State() != api.StateClosed {
		t.Fatal("transport confirmation did not close the session")
	}
}

func TestGracefulCloseFlushesFirst(t *testing.T) {
	var written []any
	s, proc := newSession(t, nil)
	proc.SetRemoveFunc(func(api.Session) { s.Closed() })
	s.Open()
	futs := []*api.WriteFuture{s.Write("a"), s.Write("b")}

	s.Close(false)
	if proc.Removes() != 0 {
		t.Fatal("close started before the queue drained")
	}
	for req := range s.DrainWrites() {
		written = append(written, req.Message())
		s.MessageWritten(req)
	}
	if !reflect.DeepEqual(written, []any{"a", "b"}) {
		t.Fatalf("written = %v", written)
	}
	for _, f := range futs {
		if f.Err() != nil {
			t.Fatalf("flushed write failed: %v", f.Err())
		}
	}
	if proc.Removes() != 1 || s.State() != api.StateClosed {
		t.Fatalf("removes=%d state=%s", proc.Removes(), s.State())
	}
}

func TestImmediateCloseUpgradesFlush(t *testing.T) {
	s, proc := newSession(t, nil)
	s.Open()
	f := s.Write("a")
	s.Close(false)
	s.Close(true)
	if !errors.Is(f.Err(), api.ErrWriteDiscarded) || proc.Removes() != 1 {
		t.Fatalf("err=%v removes=%d", f.Err(), proc.Removes())
	}
	if s.Close(false) != s.CloseFuture() {
		t.Fatal("repeated close returned a different future")
	}
}

func TestClosedFailsRemainingWrites(t *testing.T) {
	s, _ := newSession(t, nil)
	s.Open()
	f := s.Write("a")
	s.Closed()
	if !errors.Is(f.Err(), api.ErrSessionClosed) {
		t.Fatalf("err = %v", f.Err())
	}
}

func TestWriteFailedReportsException(t *testing.T) {
	h := fake.NewHandler()
	s, _ := newSession(t, h)
	s.Open()
	f := s.Write("a")
	io := errors.New("broken pipe")
	s.WriteFailed(s.PollWrite(), io)
	if !errors.Is(f.Err(), io) {
		t.Fatalf("future err = %v", f.Err())
	}
	if h.Count("exceptionCaught") != 1 {
		t.Fatal("write failure not reported to the handler")
	}
}

func TestSuspendWrite(t *testing.T) {
	s, proc := newSession(t, nil)
	s.Open()
	s.SuspendWrite()
	s.SuspendWrite()
	if proc.TrafficControls() != 1 {
		t.Fatalf("traffic controls = %d", proc.TrafficControls())
	}
	s.Write("a")
	if proc.Flushes() != 0 || s.PollWrite() != nil {
		t.Fatal("suspended session handed out a write")
	}
	s.ResumeWrite()
	if proc.Flushes() != 1 || s.PollWrite() == nil {
		t.Fatal("resume did not flush the queued write")
	}
	s.SuspendRead()
	if !s.IsReadSuspended() || proc.TrafficControls() != 3 {
		t.Fatalf("read suspension: %v %d", s.IsReadSuspended(), proc.TrafficControls())
	}
}

func TestReentrantEventsStayOrdered(t *testing.T) {
	h := fake.NewHandler()
	var s *session.Session
	h.OnReceived = func(_ api.Session, msg any) error {
		if msg == 1 {
			s.Receive(2)
			if got := h.Messages(); len(got) != 1 {
				t.Errorf("re-entrant event ran inside its parent: %v", got)
			}
		}
		return nil
	}
	s, _ = newSession(t, h)
	s.Open()
	s.Receive(1)
	if got := h.Messages(); !reflect.DeepEqual(got, []any{1, 2}) {
		t.Fatalf("messages = %v", got)
	}
}

func TestIdleCountsAndReset(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }
	checker := idle.NewChecker()
	h := fake.NewHandler()
	s, _ := newSession(t, h, func(p *session.Params) {
		p.Idle = checker
		p.Clock = clock
	})
	s.Config().SetIdleTime(api.ReaderIdle, time.Second)
	s.Open()

	if n := checker.ProcessIdleSessions(now.Add(500 * time.Millisecond)); n != 0 {
		t.Fatalf("fired %d at 500ms", n)
	}
	if n := checker.ProcessIdleSessions(now.Add(1500 * time.Millisecond)); n != 1 {
		t.Fatalf("fired %d at 1500ms", n)
	}
	if s.IdleCount(api.ReaderIdle) != 1 || h.Count("sessionIdle") != 1 {
		t.Fatalf("idle count = %d", s.IdleCount(api.ReaderIdle))
	}
	s.Receive("x")
	if s.IdleCount(api.ReaderIdle) != 0 {
		t.Fatal("read did not reset the reader idle count")
	}

	s.Closed()
	if checker.Len() != 0 {
		t.Fatal("closed session still tracked")
	}
}

func TestIdleTimeChangeRefreshesChecker(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	checker := idle.NewChecker()
	s, _ := newSession(t, nil, func(p *session.Params) {
		p.Idle = checker
		p.Clock = func() time.Time { return now }
	})
	s.Open()
	s.Config().SetIdleTime(api.WriterIdle, time.Second)
	if n := checker.ProcessIdleSessions(now.Add(2 * time.Second)); n != 1 {
		t.Fatalf("fired %d after enabling writer idle", n)
	}
}

type syncExecutor struct {
	mu    sync.Mutex
	tasks int
}

func (e *syncExecutor) Submit(fn func()) error {
	e.mu.Lock()
	e.tasks++
	e.mu.Unlock()
	fn()
	return nil
}
func (e *syncExecutor) NumWorkers() int { return 1 }
func (e *syncExecutor) Close()          {}

func TestEventsRunOnExecutor(t *testing.T) {
	ex := &syncExecutor{}
	h := fake.NewHandler()
	s, _ := newSession(t, h, func(p *session.Params) { p.Executor = ex })
	s.Open()
	s.Receive("m")
	if ex.tasks != 2 || len(h.Messages()) != 1 {
		t.Fatalf("tasks=%d messages=%v", ex.tasks, h.Messages())
	}
}

func TestRegistry(t *testing.T) {
	r := session.NewRegistry(3)
	a, _ := newSession(t, nil, func(p *session.Params) { p.ID = "a" })
	b, _ := newSession(t, nil, func(p *session.Params) { p.ID = "b" })
	if err := r.Add(a); err != nil {
		t.Fatal(err)
	}
	r.Add(b)
	if err := r.Add(a); !errors.Is(err, api.ErrInvalidArgument) {
		t.Fatalf("duplicate add: %v", err)
	}
	if got, ok := r.Get("b"); !ok || got != b {
		t.Fatal("Get b")
	}
	seen := 0
	r.Range(func(*session.Session) bool { seen++; return true })
	if seen != 2 || r.Len() != 2 {
		t.Fatalf("seen=%d len=%d", seen, r.Len())
	}
	if !r.Remove("a") || r.Remove("a") {
		t.Fatal("Remove results")
	}
	if r.Len() != 1 {
		t.Fatalf("len = %d", r.Len())
	}
}
