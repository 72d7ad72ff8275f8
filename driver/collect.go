package driver

import (
	"context"

	"github.com/rapidriter/wasm-renderer/domain/entities"
	"github.com/rapidriter/wasm-renderer/domain/ports"
)

// Collect drains source and returns every event it produced, stopping at
// the first error.
func Collect(ctx context.Context, source ports.EventSource) ([]entities.Event, error) {
	var events []entities.Event
	for {
		ev, ok, err := source.Next(ctx)
		if err != nil {
			return events, err
		}
		if !ok {
			return events, nil
		}
		events = append(events, ev)
	}
}
