package ports

import (
	"context"

	"github.com/rapidriter/wasm-renderer/domain/entities"
)

// FrameGuest is the host side of the guest frame protocol.
// Implementations are not safe for concurrent use.
type FrameGuest interface {
	// IsDone asks the guest whether the animation ends before frame i.
	IsDone(ctx context.Context, i entities.FrameIndex) (bool, error)

	// NextFrame asks the guest to render frame i and returns a copy of it.
	NextFrame(ctx context.Context, i entities.FrameIndex) (entities.Frame, error)
}
