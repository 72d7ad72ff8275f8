package stream

import (
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Sink receives framed events.
type Sink interface {
	WriteEvent(name, data string) error
	WriteComment(text string) error
	Flush() error
}

var _ Sink = (*SSEWriter)(nil)

// SSEWriter writes Server-Sent Events to an HTTP response.
type SSEWriter struct {
	w  io.Writer
	rc *http.ResponseController
}

// NewSSEWriter sets the event-stream headers on w and returns a writer for
// it. Nothing is sent until the first event.
func NewSSEWriter(w http.ResponseWriter) *SSEWriter {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	return &SSEWriter{w: w, rc: http.NewResponseController(w)}
}

// WriteEvent writes one named event. Multi-line data is split over several
// data fields.
func (s *SSEWriter) WriteEvent(name, data string) error {
	return writeEvent(s.w, name, data)
}

// WriteComment writes a comment line, which clients ignore.
func (s *SSEWriter) WriteComment(text string) error {
	_, err := fmt.Fprintf(s.w, ": %s\n\n", text)
	return err
}

// Flush pushes buffered bytes to the client.
func (s *SSEWriter) Flush() error {
	return s.rc.Flush()
}

func writeEvent(w io.Writer, name, data string) error {
	var sb strings.Builder
	sb.WriteString("event: ")
	sb.WriteString(name)
	sb.WriteByte('\n')
	for _, line := range strings.Split(data, "\n") {
		sb.WriteString("data: ")
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	sb.WriteByte('\n')
	_, err := io.WriteString(w, sb.String())
	return err
}
