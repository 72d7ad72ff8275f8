package ports

import (
	"context"

	"github.com/rapidriter/wasm-renderer/domain/entities"
)

// EventSource is a pull-based, finite event sequence.
//
// Next returns the next event and true, or false once the sequence is
// exhausted. After a terminal event or an error, every later call returns
// false and no error.
type EventSource interface {
	Next(ctx context.Context) (entities.Event, bool, error)
}
