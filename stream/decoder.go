package stream

import (
	"bufio"
	"io"
	"strings"
)

// maxLineSize bounds a single SSE line; frames are well under 1 KiB.
const maxLineSize = 64 * 1024

// Message is one decoded Server-Sent Event.
type Message struct {
	Event string
	Data  string
}

// Decoder reads Server-Sent Events from a stream. Comments are skipped.
type Decoder struct {
	scanner *bufio.Scanner
}

// NewDecoder creates a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 4096), maxLineSize)
	return &Decoder{scanner: s}
}

// Next returns the next event. It returns io.EOF when the stream ends
// cleanly between events.
func (d *Decoder) Next() (Message, error) {
	var msg Message
	var data []string
	seen := false

	for d.scanner.Scan() {
		line := d.scanner.Text()
		if line == "" {
			if !seen {
				continue
			}
			msg.Data = strings.Join(data, "\n")
			if msg.Event == "" {
				msg.Event = "message"
			}
			return msg, nil
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			msg.Event = value
			seen = true
		case "data":
			data = append(data, value)
			seen = true
		}
	}
	if err := d.scanner.Err(); err != nil {
		return Message{}, err
	}
	if seen {
		return Message{}, io.ErrUnexpectedEOF
	}
	return Message{}, io.EOF
}
