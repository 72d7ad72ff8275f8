package host

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rapidriter/wasm-renderer/domain/entities"
	domainerrors "github.com/rapidriter/wasm-renderer/domain/errors"
	"github.com/rapidriter/wasm-renderer/domain/ports"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

const wasmPageSize = 65536

var _ ports.FrameGuest = (*Renderer)(nil)

// Renderer is one instantiated guest module and its private runtime.
// It implements ports.FrameGuest. A Renderer is not safe for concurrent use.
type Renderer struct {
	runtime   wazero.Runtime
	module    api.Module
	memory    api.Memory
	isDone    api.Function
	nextFrame api.Function
	logger    *slog.Logger
}

// IsDone calls the guest's is_done(i). Any non-zero result means done.
func (r *Renderer) IsDone(ctx context.Context, i entities.FrameIndex) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, &domainerrors.ClientDisconnected{Err: err}
	}
	results, err := r.isDone.Call(ctx, api.EncodeI32(int32(i)))
	if err != nil {
		return false, r.callError(ctx, ExportIsDone, i, err)
	}
	return api.DecodeU32(results[0]) != 0, nil
}

// NextFrame calls the guest's next_frame(i) and copies the frame at the
// returned pointer out of guest memory. A pointer whose frame window does
// not lie within the current memory is a guest trap.
func (r *Renderer) NextFrame(ctx context.Context, i entities.FrameIndex) (entities.Frame, error) {
	if err := ctx.Err(); err != nil {
		return entities.Frame{}, &domainerrors.ClientDisconnected{Err: err}
	}
	results, err := r.nextFrame.Call(ctx, api.EncodeI32(int32(i)))
	if err != nil {
		return entities.Frame{}, r.callError(ctx, ExportNextFrame, i, err)
	}

	ptr := api.DecodeU32(results[0])
	data, err := r.readFrame(ptr)
	if err != nil {
		return entities.Frame{}, &domainerrors.GuestTrap{Call: ExportNextFrame, Index: i, Err: err}
	}
	return entities.FrameFromBytes(data)
}

// readFrame returns a view of the FrameSize bytes at ptr. The view is only
// valid until the guest runs again.
func (r *Renderer) readFrame(ptr uint32) ([]byte, error) {
	size := r.memory.Size()
	if uint64(ptr)+entities.FrameSize > uint64(size) {
		return nil, fmt.Errorf("frame window [%d, %d) exceeds memory size %d",
			ptr, uint64(ptr)+entities.FrameSize, size)
	}
	data, ok := r.memory.Read(ptr, entities.FrameSize)
	if !ok {
		return nil, fmt.Errorf("failed to read frame at %d from guest memory", ptr)
	}
	return data, nil
}

func (r *Renderer) callError(ctx context.Context, call string, i entities.FrameIndex, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &domainerrors.ClientDisconnected{Err: ctxErr}
	}
	r.logger.DebugContext(ctx, "guest call failed", "call", call, "frame_index", i, "error", err)
	return &domainerrors.GuestTrap{Call: call, Index: i, Err: err}
}

// MemorySize returns the guest's current linear memory size in bytes.
func (r *Renderer) MemorySize() uint32 {
	return r.memory.Size()
}

// Close tears down the guest and its runtime.
func (r *Renderer) Close(ctx context.Context) error {
	return r.runtime.Close(ctx)
}
