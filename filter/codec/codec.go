// File: filter/codec/codec.go
// Package codec converts between bytes and application messages inside a
// filter chain.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Inbound []byte chunks accumulate in a per-session buffer that a
// FrameDecoder consumes one message at a time. Outbound messages are
// encoded into a derived write request, so messageSent still reports the
// message the application wrote.

package codec

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/momentics/hioload-mina/api"
)

// Encoder turns an outbound message into bytes.
type Encoder interface {
	Encode(s api.Session, msg any) ([]byte, error)
}

// FrameDecoder extracts one message from buf. It returns ok=false, keeping
// the unread bytes in buf, when buf holds no complete message.
type FrameDecoder interface {
	Decode(s api.Session, buf *bytes.Buffer) (msg any, ok bool, err error)
}

// Finisher is implemented by decoders that can produce a final message
// from leftover bytes when the session closes.
type Finisher interface {
	Finish(s api.Session, buf *bytes.Buffer) (msg any, ok bool, err error)
}

// ErrNoProgress is reported when a decoder yields a message without
// consuming any input.
var ErrNoProgress = errors.New("codec: decoder consumed no input")

// EncoderFunc adapts a function to Encoder.
type EncoderFunc func(s api.Session, msg any) ([]byte, error)

func (fn EncoderFunc) Encode(s api.Session, msg any) ([]byte, error) { return fn(s, msg) }

// DecoderFunc adapts a function to FrameDecoder.
type DecoderFunc func(s api.Session, buf *bytes.Buffer) (any, bool, error)

func (fn DecoderFunc) Decode(s api.Session, buf *bytes.Buffer) (any, bool, error) { return fn(s, buf) }

// DecoderError reports a failed decode. Bytes consumed before the
// failure are not restored.
type DecoderError struct {
	Session string
	// Remaining is the number of bytes left buffered.
	Remaining int
	Err       error
}

func (e *DecoderError) Error() string {
	return fmt.Sprintf("codec: decode on session %s (%d bytes left): %v", e.Session, e.Remaining, e.Err)
}

func (e *DecoderError) Unwrap() error { return e.Err }

// EncoderError reports a message that could not be encoded.
type EncoderError struct {
	Session string
	Message any
	Err     error
}

func (e *EncoderError) Error() string {
	return fmt.Sprintf("codec: encode %T on session %s: %v", e.Message, e.Session, e.Err)
}

func (e *EncoderError) Unwrap() error { return e.Err }

type state struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// Filter is a protocol codec filter.
type Filter struct {
	enc Encoder
	dec FrameDecoder
	key *api.Key[*state]
	log *logrus.Entry
}

var _ api.ChainAwareFilter = (*Filter)(nil)

// New creates a codec filter. Either side may be nil to pass that
// direction through untouched.
func New(enc Encoder, dec FrameDecoder, log *logrus.Logger) *Filter {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Filter{
		enc: enc,
		dec: dec,
		key: api.NewKey[*state]("codec.buffer"),
		log: log.WithField("filter", "codec"),
	}
}

// Buffered returns the number of undecoded bytes held for s.
func (f *Filter) Buffered(s api.Session) int {
	st, ok := f.key.Get(s.Attributes())
	if !ok {
		return 0
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.buf.Len()
}

func (f *Filter) state(s api.Session) *state {
	if st, ok := f.key.Get(s.Attributes()); ok {
		return st
	}
	st, _ := f.key.SetIfAbsent(s.Attributes(), &state{})
	return st
}

// decode drains every complete message from st. Messages decoded before
// an error are still returned.
func (f *Filter) decode(s api.Session, st *state, final bool) ([]any, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	var out []any
	for st.buf.Len() > 0 {
		before := st.buf.Len()
		msg, ok, err := f.dec.Decode(s, &st.buf)
		if err == nil && ok && st.buf.Len() == before {
			err = ErrNoProgress
		}
		if err != nil {
			return out, &DecoderError{Session: s.ID(), Remaining: st.buf.Len(), Err: err}
		}
		if !ok {
			break
		}
		out = append(out, msg)
	}
	if fin, isFin := f.dec.(Finisher); final && isFin && st.buf.Len() > 0 {
		msg, ok, err := fin.Finish(s, &st.buf)
		if err != nil {
			return out, &DecoderError{Session: s.ID(), Remaining: st.buf.Len(), Err: err}
		}
		if ok {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (f *Filter) MessageReceived(next api.NextFilter, s api.Session, msg any) error {
	chunk, isBytes := msg.([]byte)
	if f.dec == nil || !isBytes {
		next.MessageReceived(s, msg)
		return nil
	}
	st := f.state(s)
	st.mu.Lock()
	st.buf.Write(chunk)
	st.mu.Unlock()

	msgs, err := f.decode(s, st, false)
	for _, m := range msgs {
		next.MessageReceived(s, m)
	}
	return err
}

func (f *Filter) FilterWrite(next api.NextFilter, s api.Session, req *api.WriteRequest) error {
	if f.enc == nil {
		next.FilterWrite(s, req)
		return nil
	}
	msg := req.Message()
	b, err := f.enc.Encode(s, msg)
	if err != nil {
		return &EncoderError{Session: s.ID(), Message: msg, Err: err}
	}
	next.FilterWrite(s, req.WithMessage(b))
	return nil
}

// MessageSent forwards the request the application wrote.
func (f *Filter) MessageSent(next api.NextFilter, s api.Session, req *api.WriteRequest) error {
	next.MessageSent(s, req.Original())
	return nil
}

// SessionClosed lets a Finisher flush leftover bytes, then drops the
// buffer.
func (f *Filter) SessionClosed(next api.NextFilter, s api.Session) error {
	if st, ok := f.key.Remove(s.Attributes()); ok && f.dec != nil {
		msgs, err := f.decode(s, st, true)
		for _, m := range msgs {
			next.MessageReceived(s, m)
		}
		if err != nil {
			next.ExceptionCaught(s, err)
		}
	}
	next.SessionClosed(s)
	return nil
}

func (f *Filter) SessionCreated(next api.NextFilter, s api.Session) error {
	next.SessionCreated(s)
	return nil
}

func (f *Filter) SessionOpened(next api.NextFilter, s api.Session) error {
	next.SessionOpened(s)
	return nil
}

func (f *Filter) SessionIdle(next api.NextFilter, s api.Session, status api.IdleStatus) error {
	next.SessionIdle(s, status)
	return nil
}

func (f *Filter) ExceptionCaught(next api.NextFilter, s api.Session, cause error) error {
	next.ExceptionCaught(s, cause)
	return nil
}

func (f *Filter) FilterClose(next api.NextFilter, s api.Session) error {
	next.FilterClose(s)
	return nil
}

func (f *Filter) OnPostAdd(api.FilterChain, string) error { return nil }

// OnPreRemove drops buffered bytes; they cannot be decoded once the
// filter is gone.
func (f *Filter) OnPreRemove(chain api.FilterChain, name string) error {
	s := chain.Session()
	if st, ok := f.key.Remove(s.Attributes()); ok {
		st.mu.Lock()
		n := st.buf.Len()
		st.mu.Unlock()
		if n > 0 {
			f.log.WithFields(logrus.Fields{"session": s.ID(), "bytes": n, "name": name}).Warn("discarding undecoded bytes")
		}
	}
	return nil
}
