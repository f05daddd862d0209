// File: session/session.go
// Package session
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Concrete session: lifecycle state machine, write path, counters and the
// entry points a transport drives.

package session

import (
	"iter"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"
	"github.com/sirupsen/logrus"

	"github.com/momentics/hioload-mina/api"
	"github.com/momentics/hioload-mina/filterchain"
	"github.com/momentics/hioload-mina/idle"
	"github.com/momentics/hioload-mina/internal/concurrency"
)

// Processor is the transport side of a session. Calls must not block.
type Processor interface {
	// Flush is called when the write queue may have become writable.
	Flush(s api.Session)
	// Remove asks the transport to close the connection; the transport
	// answers with Session.Closed.
	Remove(s api.Session)
	// UpdateTrafficControl reports a read or write suspension change.
	UpdateTrafficControl(s api.Session)
}

// Params configures New.
type Params struct {
	// ID defaults to a random UUID.
	ID        string
	Processor Processor
	Handler   api.Handler
	// Config defaults to api.DefaultSessionConfig.
	Config      *api.SessionConfig
	LocalAddr   net.Addr
	RemoteAddr  net.Addr
	ServiceAddr net.Addr
	// Idle, when set, tracks the session from Open until Closed.
	Idle *idle.Checker
	// Executor, when set, runs inbound events off the calling goroutine
	// while keeping them in order.
	Executor api.Executor
	// OnDestroy runs once after sessionClosed has been delivered.
	OnDestroy func(s *Session)
	Logger    *logrus.Logger
	Clock     func() time.Time
}

// Session implements api.Session.
type Session struct {
	id        string
	proc      Processor
	handler   api.Handler
	cfg       *api.SessionConfig
	local     net.Addr
	remote    net.Addr
	service   net.Addr
	created   time.Time
	attrs     *attributeMap
	queue     *WriteQueue
	chain     *filterchain.Chain
	events    *concurrency.OrderedQueue
	idle      *idle.Checker
	onDestroy func(s *Session)
	log       *logrus.Entry
	clock     func() time.Time

	state        atomic.Int32
	closeFuture  *api.CloseFuture
	closeOnFlush atomic.Bool
	closeFired   atomic.Bool
	closedOnce   sync.Once
	destroyOnce  sync.Once
	inflight     atomic.Int64

	readSuspended  atomic.Bool
	writeSuspended atomic.Bool

	readBytes       atomic.Uint64
	writtenBytes    atomic.Uint64
	readMessages    atomic.Uint64
	writtenMessages atomic.Uint64
	lastRead        atomic.Int64
	lastWrite       atomic.Int64
	idleCount       [api.IdleStatusCount]atomic.Uint64
	lastIdle        [api.IdleStatusCount]atomic.Int64
}

var (
	_ api.Session = (*Session)(nil)
	_ idle.Target = (*Session)(nil)

	_ filterchain.Finalizer = headSink{}
)

// New creates a session in StateCreated with an empty filter chain.
func New(p Params) (*Session, error) {
	if p.Processor == nil {
		return nil, oops.In("session").Wrapf(api.ErrInvalidArgument, "nil processor")
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Config == nil {
		p.Config = api.DefaultSessionConfig()
	}
	if p.Logger == nil {
		p.Logger = logrus.StandardLogger()
	}
	if p.Clock == nil {
		p.Clock = time.Now
	}
	s := &Session{
		id:          p.ID,
		proc:        p.Processor,
		handler:     p.Handler,
		cfg:         p.Config,
		local:       p.LocalAddr,
		remote:      p.RemoteAddr,
		service:     p.ServiceAddr,
		created:     p.Clock(),
		attrs:       newAttributeMap(),
		queue:       NewWriteQueue(),
		idle:        p.Idle,
		onDestroy:   p.OnDestroy,
		log:         p.Logger.WithField("session", p.ID),
		clock:       p.Clock,
		closeFuture: api.NewFuture[struct{}](),
	}
	s.state.Store(int32(api.StateCreated))
	s.chain = filterchain.New(s, headSink{s}, s.log)
	if p.Executor != nil {
		s.events = concurrency.NewOrderedQueueOn(p.Executor.Submit, s.onPanic)
	} else {
		s.events = concurrency.NewOrderedQueue(s.onPanic)
	}
	s.cfg.Watch(func(api.IdleStatus, time.Duration) {
		if s.idle != nil && s.State() < api.StateClosed {
			s.idle.Refresh(s, s.clock())
		}
	})
	return s, nil
}

func (s *Session) onPanic(r any) {
	s.log.WithField("panic", r).Error("session event panicked")
}

// post runs fn in inbound event order.
func (s *Session) post(fn func()) {
	if err := s.events.Post(fn); err != nil {
		s.log.WithError(err).Warn("event dropped")
	}
}

func (s *Session) ID() string                   { return s.id }
func (s *Session) LocalAddr() net.Addr          { return s.local }
func (s *Session) RemoteAddr() net.Addr         { return s.remote }
func (s *Session) ServiceAddr() net.Addr        { return s.service }
func (s *Session) CreationTime() time.Time      { return s.created }
func (s *Session) Config() *api.SessionConfig   { return s.cfg }
func (s *Session) Attributes() api.AttributeMap { return s.attrs }
func (s *Session) FilterChain() api.FilterChain { return s.chain }
func (s *Session) Handler() api.Handler         { return s.handler }

// Chain returns the concrete filter chain.
func (s *Session) Chain() *filterchain.Chain { return s.chain }

// Logger returns the session-scoped log entry.
func (s *Session) Logger() *logrus.Entry { return s.log }

func (s *Session) State() api.SessionState { return api.SessionState(s.state.Load()) }
func (s *Session) IsConnected() bool       { return s.State() == api.StateConnected }
func (s *Session) IsClosing() bool         { return s.State() >= api.StateClosing }

// Write sends msg through the filter chain toward the transport.
func (s *Session) Write(msg any) *api.WriteFuture {
	return s.WriteTo(msg, nil)
}

// WriteTo is Write with an explicit destination for datagram transports.
func (s *Session) WriteTo(msg any, dest net.Addr) *api.WriteFuture {
	if msg == nil {
		return api.Rejected[struct{}](oops.In("session").With("session", s.id).
			Wrapf(api.ErrInvalidArgument, "nil message"))
	}
	if s.IsClosing() {
		return api.Rejected[struct{}](api.ErrSessionClosed)
	}
	req := api.NewWriteRequestTo(msg, dest)
	s.chain.FireFilterWrite(req)
	return req.Future()
}

// Close moves the session to StateClosing. With immediate set, queued
// writes fail with api.ErrWriteDiscarded and the close starts now;
// otherwise it starts once the write queue drains.
func (s *Session) Close(immediate bool) *api.CloseFuture {
	for {
		st := s.State()
		if st == api.StateClosed {
			return s.closeFuture
		}
		if st == api.StateClosing {
			if immediate && s.closeOnFlush.CompareAndSwap(true, false) {
				s.closeNow()
			}
			return s.closeFuture
		}
		if s.state.CompareAndSwap(int32(st), int32(api.StateClosing)) {
			break
		}
	}
	s.log.WithField("immediate", immediate).Debug("closing")
	if immediate {
		s.closeNow()
	} else {
		s.closeOnFlush.Store(true)
		s.closeIfFlushed()
	}
	return s.closeFuture
}

func (s *Session) CloseFuture() *api.CloseFuture { return s.closeFuture }

func (s *Session) closeNow() {
	if n := s.queue.Discard(api.ErrWriteDiscarded); n > 0 {
		s.log.WithField("discarded", n).Debug("pending writes discarded")
	}
	s.fireClose()
}

func (s *Session) closeIfFlushed() {
	if !s.closeOnFlush.Load() || !s.queue.IsEmpty() || s.inflight.Load() > 0 {
		return
	}
	if s.closeOnFlush.CompareAndSwap(true, false) {
		s.fireClose()
	}
}

func (s *Session) fireClose() {
	if s.closeFired.CompareAndSwap(false, true) {
		s.chain.FireFilterClose()
	}
}

func (s *Session) SuspendRead() {
	if !s.readSuspended.Swap(true) {
		s.proc.UpdateTrafficControl(s)
	}
}

func (s *Session) ResumeRead() {
	if s.readSuspended.Swap(false) {
		s.proc.UpdateTrafficControl(s)
	}
}

func (s *Session) SuspendWrite() {
	if !s.writeSuspended.Swap(true) {
		s.proc.UpdateTrafficControl(s)
	}
}

// ResumeWrite lifts write suspension and flushes anything queued meanwhile.
func (s *Session) ResumeWrite() {
	if !s.writeSuspended.Swap(false) {
		return
	}
	s.proc.UpdateTrafficControl(s)
	if !s.queue.IsEmpty() {
		s.proc.Flush(s)
	}
}

func (s *Session) IsReadSuspended() bool  { return s.readSuspended.Load() }
func (s *Session) IsWriteSuspended() bool { return s.writeSuspended.Load() }

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() api.SessionStats {
	st := api.SessionStats{
		ReadBytes:              s.readBytes.Load(),
		WrittenBytes:           s.writtenBytes.Load(),
		ReadMessages:           s.readMessages.Load(),
		WrittenMessages:        s.writtenMessages.Load(),
		LastReadTime:           unixTime(s.lastRead.Load()),
		LastWriteTime:          unixTime(s.lastWrite.Load()),
		ScheduledWriteBytes:    s.queue.ScheduledBytes(),
		ScheduledWriteMessages: s.queue.ScheduledCount(),
	}
	for _, status := range api.IdleStatuses {
		st.IdleCount[status] = s.idleCount[status].Load()
		st.LastIdleTime[status] = unixTime(s.lastIdle[status].Load())
	}
	return st
}

func (s *Session) IdleCount(status api.IdleStatus) uint64 {
	if !status.Valid() {
		return 0
	}
	return s.idleCount[status].Load()
}

// WriteQueue exposes the pending write queue to transports.
func (s *Session) WriteQueue() *WriteQueue { return s.queue }

// IdleTime implements idle.Target.
func (s *Session) IdleTime(status api.IdleStatus) time.Duration {
	return s.cfg.IdleTime(status)
}

// NotifyIdle implements idle.Target.
func (s *Session) NotifyIdle(status api.IdleStatus, now time.Time) {
	if !status.Valid() {
		return
	}
	if st := s.State(); st < api.StateConnected || st == api.StateClosed {
		return
	}
	s.idleCount[status].Add(1)
	s.lastIdle[status].Store(now.UnixNano())
	s.post(func() { s.chain.FireSessionIdle(status) })
}

// Open connects the session and delivers sessionCreated then
// sessionOpened.
func (s *Session) Open() error {
	if !s.state.CompareAndSwap(int32(api.StateCreated), int32(api.StateConnected)) {
		return oops.In("session").With("session", s.id, "state", s.State().String()).
			Wrapf(api.ErrInvalidArgument, "open from state %s", s.State())
	}
	if s.idle != nil {
		s.idle.Add(s, s.clock())
	}
	s.post(func() {
		s.chain.FireSessionCreated()
		s.chain.FireSessionOpened()
	})
	return nil
}

// Receive delivers one inbound message from the transport.
func (s *Session) Receive(msg any) {
	if s.State() == api.StateClosed {
		return
	}
	now := s.clock()
	s.readBytes.Add(uint64(api.MessageSize(msg)))
	s.readMessages.Add(1)
	s.lastRead.Store(now.UnixNano())
	s.idleCount[api.ReaderIdle].Store(0)
	s.idleCount[api.BothIdle].Store(0)
	if s.idle != nil {
		s.idle.SessionRead(s, now)
	}
	s.post(func() { s.chain.FireMessageReceived(msg) })
}

// PollWrite hands the oldest queued request to the transport, or nil when
// the queue is empty or writing is suspended. Every request returned must
// be answered with MessageWritten or WriteFailed.
func (s *Session) PollWrite() *api.WriteRequest {
	if s.writeSuspended.Load() {
		return nil
	}
	s.inflight.Add(1)
	req := s.queue.Poll()
	if req == nil {
		s.inflight.Add(-1)
	}
	return req
}

// DrainWrites yields queued requests until the queue empties or writing
// is suspended.
func (s *Session) DrainWrites() iter.Seq[*api.WriteRequest] {
	return func(yield func(*api.WriteRequest) bool) {
		for {
			req := s.PollWrite()
			if req == nil || !yield(req) {
				return
			}
		}
	}
}

// MessageWritten reports a request fully handed to the connection.
func (s *Session) MessageWritten(req *api.WriteRequest) {
	s.inflight.Add(-1)
	now := s.clock()
	s.writtenBytes.Add(uint64(api.MessageSize(req.Message())))
	s.writtenMessages.Add(1)
	s.lastWrite.Store(now.UnixNano())
	s.idleCount[api.WriterIdle].Store(0)
	s.idleCount[api.BothIdle].Store(0)
	if s.idle != nil {
		s.idle.SessionWritten(s, now)
	}
	req.Future().Resolve(struct{}{})
	s.post(func() { s.chain.FireMessageSent(req) })
	s.closeIfFlushed()
}

// WriteFailed reports a request the transport could not write.
func (s *Session) WriteFailed(req *api.WriteRequest, err error) {
	s.inflight.Add(-1)
	if err == nil {
		err = api.ErrSessionClosed
	}
	req.Future().Reject(err)
	s.post(func() { s.chain.FireExceptionCaught(err) })
	s.closeIfFlushed()
}

// ExceptionCaught reports a transport error.
func (s *Session) ExceptionCaught(err error) {
	if err == nil {
		return
	}
	s.post(func() { s.chain.FireExceptionCaught(err) })
}

// Closed reports that the connection is gone. The first call moves the
// session to StateClosed, fails any queued writes with
// api.ErrSessionClosed and delivers sessionClosed; later calls do nothing.
func (s *Session) Closed() {
	s.closedOnce.Do(func() {
		s.state.Store(int32(api.StateClosed))
		s.closeOnFlush.Store(false)
		if n := s.queue.Close(api.ErrSessionClosed); n > 0 {
			s.log.WithField("failed", n).Debug("pending writes failed on close")
		}
		s.post(s.chain.FireSessionClosed)
	})
}

// destroy releases the session after sessionClosed reached the handler,
// which may happen on an executor worker.
func (s *Session) destroy() {
	s.destroyOnce.Do(func() {
		if s.idle != nil {
			s.idle.Remove(s)
		}
		if s.onDestroy != nil {
			s.onDestroy(s)
		}
		s.attrs.release()
		s.closeFuture.Resolve(struct{}{})
		s.log.Debug("closed")
	})
}

// headSink terminates outbound traversal in the write queue.
type headSink struct{ s *Session }

func (h headSink) FilterWrite(_ api.Session, req *api.WriteRequest) error {
	if err := h.s.queue.Offer(req); err != nil {
		req.Future().Reject(err)
		return nil
	}
	if !h.s.writeSuspended.Load() {
		h.s.proc.Flush(h.s)
	}
	return nil
}

func (h headSink) FilterClose(api.Session) error {
	h.s.proc.Remove(h.s)
	return nil
}

func (h headSink) Finalize(api.Session) {
	if h.s.State() == api.StateClosed {
		h.s.destroy()
	}
}

func unixTime(ns int64) time.Time {
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}
