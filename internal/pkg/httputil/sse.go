package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// EventStream writes Server-Sent Events frames and flushes after each one.
type EventStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewEventStream sends the event-stream headers and a 200 status.
func NewEventStream(w http.ResponseWriter) *EventStream {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	s := &EventStream{w: w}
	if f, ok := w.(http.Flusher); ok {
		s.flusher = f
		f.Flush()
	}
	return s
}

// Data writes an unnamed event whose payload is v encoded as JSON.
func (s *EventStream) Data(v any) error {
	return s.Event("", v)
}

// Event writes a named event. An empty name writes a plain data frame.
func (s *EventStream) Event(name string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if name != "" {
		if _, err := fmt.Fprintf(s.w, "event: %s\n", name); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}
