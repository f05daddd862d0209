package stats_test

import (
	"errors"
	"testing"

	"github.com/momentics/hioload-mina/adapters"
	"github.com/momentics/hioload-mina/api"
	"github.com/momentics/hioload-mina/fake"
	"github.com/momentics/hioload-mina/filter/stats"
	"github.com/momentics/hioload-mina/filterchain"
)

type nopSink struct{}

func (nopSink) FilterWrite(api.Session, *api.WriteRequest) error { return nil }
func (nopSink) FilterClose(api.Session) error                    { return nil }

func TestCounters(t *testing.T) {
	ctrl := adapters.NewControlAdapter()
	h := fake.NewHandler()
	s := fake.NewSession("s", h)
	c := filterchain.New(s, nopSink{}, nil)
	s.SetChain(c)
	if err := c.AddLast("stats", stats.New(ctrl, "")); err != nil {
		t.Fatal(err)
	}

	c.FireSessionOpened()
	c.FireMessageReceived([]byte("12345"))
	c.FireMessageReceived(struct{}{})
	c.FireMessageSent(api.NewWriteRequest("abc"))
	c.FireSessionIdle(api.WriterIdle)
	c.FireExceptionCaught(errors.New("x"))

	m := ctrl.Metrics()
	want := map[string]int64{
		stats.SessionsOpened:          1,
		stats.SessionsActive:          1,
		stats.MessagesReceived:        2,
		stats.BytesReceived:           5,
		stats.MessagesSent:            1,
		stats.BytesSent:               3,
		stats.IdleKey(api.WriterIdle): 1,
		stats.Exceptions:              1,
		stats.IdleKey(api.ReaderIdle): 0,
	}
	for k, v := range want {
		if got := m.Counter(k); got != v {
			t.Errorf("%s = %d, want %d", k, got, v)
		}
	}

	c.FireSessionClosed()
	if m.Counter(stats.SessionsActive) != 0 || m.Counter(stats.SessionsClosed) != 1 {
		t.Errorf("after close: active=%d closed=%d", m.Counter(stats.SessionsActive), m.Counter(stats.SessionsClosed))
	}
	if h.Count("sessionClosed") != 1 || len(h.Messages()) != 2 {
		t.Error("events not forwarded")
	}
}

func TestPrefix(t *testing.T) {
	ctrl := adapters.NewControlAdapter()
	s := fake.NewSession("s", fake.NewHandler())
	c := filterchain.New(s, nopSink{}, nil)
	_ = c.AddLast("stats", stats.New(ctrl, "svc"))
	c.FireSessionOpened()
	if ctrl.Metrics().Counter("svc."+stats.SessionsOpened) != 1 {
		t.Fatal("prefixed key missing")
	}
}
