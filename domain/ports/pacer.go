package ports

import "context"

// Pacer enforces spacing between consecutive frame emissions.
type Pacer interface {
	// Wait blocks the calling goroutine until the next frame may be emitted
	// or ctx is done.
	Wait(ctx context.Context) error
}
