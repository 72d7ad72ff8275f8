package ports

import (
	"time"

	"github.com/rapidriter/wasm-renderer/domain/entities"
)

// StreamObserver receives notifications about a running stream.
// Calls happen on the stream's own goroutine and must not block.
type StreamObserver interface {
	// EventSent is called after an event was written to the transport.
	EventSent(ev entities.Event)

	// KeepAliveSent is called after an idle keep-alive was written.
	KeepAliveSent()

	// StreamClosed is called once with the terminal error, if any.
	StreamClosed(err error, elapsed time.Duration)
}
