// Package progress carries human-readable refresh progress from the pipeline
// to whoever is watching: a live SSE stream, a one-shot response, or the log.
//
// Sends are fire-and-forget. A Sink must never block the producer.
package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ignite/mailshake-monitor/internal/domain"
)

// Event is one progress line.
type Event struct {
	Time    time.Time
	Message string
}

// MarshalJSON renders {"t": unix millis, "ts": canonical timestamp, "msg": ...}.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		T   int64  `json:"t"`
		TS  string `json:"ts"`
		Msg string `json:"msg"`
	}{e.Time.UnixMilli(), domain.FormatTimestamp(e.Time), e.Message})
}

// String renders the event as a log line prefixed with its timestamp.
func (e Event) String() string {
	return "[" + domain.FormatTimestamp(e.Time) + "] " + e.Message
}

// Sink receives progress events.
type Sink interface {
	Send(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) Send(e Event) { f(e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

type ctxKey struct{}

// NewContext returns ctx carrying sink, so code deep in the call stack
// (pagination, retry backoff) can report without threading it through.
func NewContext(ctx context.Context, sink Sink) context.Context {
	if sink == nil {
		sink = Discard
	}
	return context.WithValue(ctx, ctxKey{}, sink)
}

// FromContext returns the sink carried by ctx, or Discard.
func FromContext(ctx context.Context) Sink {
	if s, ok := ctx.Value(ctxKey{}).(Sink); ok {
		return s
	}
	return Discard
}

// Logf formats a message and sends it to the sink carried by ctx.
func Logf(ctx context.Context, format string, args ...any) {
	FromContext(ctx).Send(Event{Time: time.Now(), Message: fmt.Sprintf(format, args...)})
}

// Recorder keeps every event in memory. Used by the one-shot refresh
// endpoint to return the log alongside the result.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Send(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Messages returns the recorded messages in order.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Message
	}
	return out
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Tee fans every event out to all sinks.
func Tee(sinks ...Sink) Sink {
	return SinkFunc(func(e Event) {
		for _, s := range sinks {
			s.Send(e)
		}
	})
}

// Stream hands events to a single consumer over a buffered channel.
// Send never blocks: once the buffer is full or the stream is closed,
// events are dropped. The producer closes the stream when it is done.
type Stream struct {
	mu     sync.Mutex
	ch     chan Event
	closed bool
}

// NewStream returns a stream buffering up to size undelivered events.
func NewStream(size int) *Stream {
	return &Stream{ch: make(chan Event, size)}
}

func (s *Stream) Send(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- e:
	default:
	}
}

// Events is closed after Close once every buffered event is read.
func (s *Stream) Events() <-chan Event { return s.ch }

// Close ends the stream. Further sends are dropped.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}
