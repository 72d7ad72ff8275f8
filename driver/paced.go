package driver

import (
	"context"

	"github.com/rapidriter/wasm-renderer/domain/entities"
	domainerrors "github.com/rapidriter/wasm-renderer/domain/errors"
	"github.com/rapidriter/wasm-renderer/domain/ports"
)

// PacedSource delays screen updates from an inner source so that they are
// released no faster than the pacer allows. Terminal events pass through
// immediately.
type PacedSource struct {
	source ports.EventSource
	pacer  ports.Pacer
	ended  bool
}

// Paced wraps source with pacer.
func Paced(source ports.EventSource, pacer ports.Pacer) *PacedSource {
	return &PacedSource{source: source, pacer: pacer}
}

// Next implements ports.EventSource.
func (p *PacedSource) Next(ctx context.Context) (entities.Event, bool, error) {
	if p.ended {
		return entities.Event{}, false, nil
	}
	ev, ok, err := p.source.Next(ctx)
	if err != nil || !ok || ev.Kind != entities.EventScreenUpdate {
		p.ended = err != nil || !ok || ev.Kind.Terminal()
		return ev, ok, err
	}
	if err := p.pacer.Wait(ctx); err != nil {
		p.ended = true
		return entities.Event{}, false, &domainerrors.ClientDisconnected{Err: err}
	}
	return ev, true, nil
}
