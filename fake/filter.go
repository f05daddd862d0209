// File: fake/filter.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package fake

import "github.com/momentics/hioload-mina/api"

// Filter forwards every event and records "<name>.<event>" into Log.
// Fail, keyed by event name, makes the filter return that error instead
// of forwarding.
type Filter struct {
	Name string
	Log  *Recorder
	Fail map[string]error
}

var _ api.Filter = (*Filter)(nil)

// NewFilter creates a recording filter writing into log.
func NewFilter(name string, log *Recorder) *Filter {
	return &Filter{Name: name, Log: log, Fail: map[string]error{}}
}

func (f *Filter) hit(event string, s api.Session, msg any, err error) error {
	f.Log.Record(Event{Name: f.Name + "." + event, Session: s.ID(), Message: msg, Err: err})
	return f.Fail[event]
}

func (f *Filter) SessionCreated(next api.NextFilter, s api.Session) error {
	if err := f.hit("sessionCreated", s, nil, nil); err != nil {
		return err
	}
	next.SessionCreated(s)
	return nil
}

func (f *Filter) SessionOpened(next api.NextFilter, s api.Session) error {
	if err := f.hit("sessionOpened", s, nil, nil); err != nil {
		return err
	}
	next.SessionOpened(s)
	return nil
}

func (f *Filter) SessionClosed(next api.NextFilter, s api.Session) error {
	if err := f.hit("sessionClosed", s, nil, nil); err != nil {
		return err
	}
	next.SessionClosed(s)
	return nil
}

func (f *Filter) SessionIdle(next api.NextFilter, s api.Session, status api.IdleStatus) error {
	if err := f.hit("sessionIdle", s, nil, nil); err != nil {
		return err
	}
	next.SessionIdle(s, status)
	return nil
}

func (f *Filter) ExceptionCaught(next api.NextFilter, s api.Session, cause error) error {
	if err := f.hit("exceptionCaught", s, nil, cause); err != nil {
		return err
	}
	next.ExceptionCaught(s, cause)
	return nil
}

func (f *Filter) MessageReceived(next api.NextFilter, s api.Session, msg any) error {
	if err := f.hit("messageReceived", s, msg, nil); err != nil {
		return err
	}
	next.MessageReceived(s, msg)
	return nil
}

func (f *Filter) MessageSent(next api.NextFilter, s api.Session, req *api.WriteRequest) error {
	if err := f.hit("messageSent", s, req.Message(), nil); err != nil {
		return err
	}
	next.MessageSent(s, req)
	return nil
}

func (f *Filter) FilterWrite(next api.NextFilter, s api.Session, req *api.WriteRequest) error {
	if err := f.hit("filterWrite", s, req.Message(), nil); err != nil {
		return err
	}
	next.FilterWrite(s, req)
	return nil
}

func (f *Filter) FilterClose(next api.NextFilter, s api.Session) error {
	if err := f.hit("filterClose", s, nil, nil); err != nil {
		return err
	}
	next.FilterClose(s)
	return nil
}
