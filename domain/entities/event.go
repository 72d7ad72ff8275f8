package entities

import "encoding/json"

// EventKind tags a stream event.
type EventKind int

const (
	// EventScreenUpdate carries one rendered frame.
	EventScreenUpdate EventKind = iota

	// EventEnd marks clean completion of the stream.
	EventEnd

	// EventError marks a stream that stopped because of a fault.
	EventError
)

// Wire event names.
const (
	EventNameScreenUpdate = "screen_update"
	EventNameEnd          = "end"
	EventNameError        = "error"
)

// String returns the wire name of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventScreenUpdate:
		return EventNameScreenUpdate
	case EventEnd:
		return EventNameEnd
	case EventError:
		return EventNameError
	default:
		return "unknown"
	}
}

// Terminal reports whether no event may follow this kind.
func (k EventKind) Terminal() bool {
	return k == EventEnd || k == EventError
}

// Event is the unit pushed to the client.
type Event struct {
	// Err is set for EventError.
	Err *ErrorDetail

	// Kind tags the event.
	Kind EventKind

	// Index is the frame index of a screen update.
	Index FrameIndex

	// Frame is the payload of a screen update.
	Frame Frame
}

// ScreenUpdate builds a data event for frame i.
func ScreenUpdate(i FrameIndex, f Frame) Event {
	return Event{Kind: EventScreenUpdate, Index: i, Frame: f}
}

// End builds the terminal event.
func End() Event {
	return Event{Kind: EventEnd}
}

// Failure builds an error-tagged terminal event.
func Failure(detail *ErrorDetail) Event {
	return Event{Kind: EventError, Err: detail}
}

// Name returns the wire event name.
func (e Event) Name() string {
	return e.Kind.String()
}

// Data returns the wire payload: base64 for screen updates, the JSON error
// detail for errors, and nothing for end.
func (e Event) Data() string {
	switch e.Kind {
	case EventScreenUpdate:
		return e.Frame.Encode()
	case EventError:
		if e.Err == nil {
			return ""
		}
		data, err := json.Marshal(e.Err)
		if err != nil {
			return ""
		}
		return string(data)
	default:
		return ""
	}
}
