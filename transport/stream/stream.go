// File: transport/stream/stream.go
// Package stream runs a session over a blocking net.Conn.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Each attached connection gets a read goroutine and a write goroutine.
// The read goroutine fills pooled buffers whose size adapts between the
// session's min and max read buffer sizes and hands a copy of every chunk
// to the session. The write goroutine sleeps until the session flushes
// and then drains the write queue. Messages must be []byte or string.

package stream

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/oops"
	"github.com/sirupsen/logrus"

	"github.com/momentics/hioload-mina/api"
	"github.com/momentics/hioload-mina/pool"
	"github.com/momentics/hioload-mina/service"
	"github.com/momentics/hioload-mina/session"
)

// Config tunes Attach.
type Config struct {
	// Pool supplies read buffers. When nil each connection creates a
	// small pool of its own.
	Pool *pool.BytePool
}

type Option func(*Config)

// WithPool shares p between connections.
func WithPool(p *pool.BytePool) Option { return func(c *Config) { c.Pool = p } }

// Conn is the session.Processor of one connection.
type Conn struct {
	conn net.Conn
	s    *session.Session
	pool *pool.BytePool
	log  *logrus.Entry

	wake    chan struct{}
	resume  chan struct{}
	done    chan struct{}
	closing atomic.Bool
	once    sync.Once
}

var _ session.Processor = (*Conn)(nil)

// Attach creates a session on sv for conn, opens it and starts the I/O
// goroutines. The session closes when the peer closes or an I/O error
// occurs; conn is closed with it.
func Attach(sv *service.Service, conn net.Conn, opts ...Option) (*session.Session, error) {
	if sv == nil || conn == nil {
		return nil, oops.In("stream").Wrapf(api.ErrInvalidArgument, "nil service or conn")
	}
	var cfg Config
	for _, o := range opts {
		o(&cfg)
	}
	c := &Conn{
		conn:   conn,
		pool:   cfg.Pool,
		wake:   make(chan struct{}, 1),
		resume: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	s, err := sv.NewSession(c, conn.LocalAddr(), conn.RemoteAddr())
	if err != nil {
		return nil, err
	}
	c.s = s
	c.log = s.Logger().WithField("transport", "stream")
	if c.pool == nil {
		sc := s.Config()
		c.pool = pool.NewBytePool(sc.MinReadBufferSize(), sc.MaxReadBufferSize(), 4)
	}
	if err := s.Open(); err != nil {
		c.shutdown(nil)
		return nil, err
	}
	go c.readLoop()
	go c.writeLoop()
	return s, nil
}

func (c *Conn) Flush(api.Session) {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Conn) Remove(api.Session) { c.shutdown(nil) }

func (c *Conn) UpdateTrafficControl(s api.Session) {
	if !s.IsReadSuspended() {
		select {
		case c.resume <- struct{}{}:
		default:
		}
	}
}

// shutdown closes the connection once. A non-nil err is reported as
// exceptionCaught before sessionClosed.
func (c *Conn) shutdown(err error) {
	c.once.Do(func() {
		c.closing.Store(true)
		if err != nil {
			c.s.ExceptionCaught(api.WrapError(api.ErrCodeTransport, err, "connection failed"))
		}
		close(c.done)
		if cerr := c.conn.Close(); cerr != nil {
			c.log.WithError(cerr).Debug("close")
		}
		c.s.Closed()
	})
}

// quiet reports errors that end a connection without being exceptions.
func (c *Conn) quiet(err error) bool {
	return c.closing.Load() ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe)
}

func (c *Conn) readLoop() {
	sc := c.s.Config()
	size := sc.ReadBufferSize()
	buf := c.pool.Get(size)
	defer func() { c.pool.Put(buf) }()

	for {
		if c.s.IsReadSuspended() {
			select {
			case <-c.resume:
				continue
			case <-c.done:
				return
			}
		}
		n, err := c.conn.Read(buf)
		if n > 0 {
			c.s.Receive(append([]byte(nil), buf[:n]...))
			if next := adapt(size, n, sc.MinReadBufferSize(), sc.MaxReadBufferSize()); next != size {
				c.pool.Put(buf)
				size = next
				buf = c.pool.Get(size)
			}
		}
		if err != nil {
			if c.quiet(err) {
				c.shutdown(nil)
			} else {
				c.shutdown(err)
			}
			return
		}
	}
}

// adapt doubles the buffer after a full read and halves it after a read
// that used less than half.
func adapt(size, n, lo, hi int) int {
	switch {
	case n == size && size*2 <= hi:
		return size * 2
	case n < size/2 && size/2 >= lo:
		return size / 2
	default:
		return size
	}
}

func (c *Conn) writeLoop() {
	for {
		select {
		case <-c.wake:
		case <-c.done:
			return
		}
		for req := range c.s.DrainWrites() {
			if err := c.write(req); err != nil {
				c.s.WriteFailed(req, err)
				if !errors.Is(err, api.ErrNotSupported) {
					if c.quiet(err) {
						c.shutdown(nil)
					} else {
						c.shutdown(err)
					}
					return
				}
				continue
			}
			c.s.MessageWritten(req)
		}
	}
}

func (c *Conn) write(req *api.WriteRequest) error {
	var b []byte
	switch m := req.Message().(type) {
	case []byte:
		b = m
	case string:
		b = []byte(m)
	default:
		return oops.In("stream").With("type", fmt.Sprintf("%T", m)).Wrapf(api.ErrNotSupported, "message is not bytes")
	}
	if wt := c.s.Config().WriteTimeout(); wt > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(wt)); err != nil {
			return err
		}
	}
	_, err := c.conn.Write(b)
	return err
}
