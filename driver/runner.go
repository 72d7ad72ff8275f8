package driver

import (
	"context"

	"github.com/rapidriter/wasm-renderer/domain/entities"
	domainerrors "github.com/rapidriter/wasm-renderer/domain/errors"
	"github.com/rapidriter/wasm-renderer/domain/ports"
)

// State is the runner's state.
type State int

const (
	// StateRunning means frame Index is the next to be attempted.
	StateRunning State = iota

	// StateEnded means the sequence is exhausted. It never changes again.
	StateEnded
)

func (s State) String() string {
	if s == StateEnded {
		return "ended"
	}
	return "running"
}

// runnerConfig holds configuration for the Runner.
type runnerConfig struct {
	maxIndex entities.FrameIndex
}

// RunnerOption configures a Runner.
type RunnerOption func(*runnerConfig)

// WithMaxIndex lowers the forced cutoff below entities.MaxFrameIndex.
func WithMaxIndex(i entities.FrameIndex) RunnerOption {
	return func(c *runnerConfig) {
		if i < entities.MaxFrameIndex {
			c.maxIndex = i
		}
	}
}

// Runner drives a guest through at most MaxFrameIndex+1 frames followed by
// a single end event. It implements ports.EventSource and is not safe for
// concurrent use.
type Runner struct {
	guest    ports.FrameGuest
	state    State
	index    entities.FrameIndex
	maxIndex entities.FrameIndex
}

// NewRunner creates a Runner in state Running{0}.
func NewRunner(guest ports.FrameGuest, opts ...RunnerOption) *Runner {
	cfg := runnerConfig{maxIndex: entities.MaxFrameIndex}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Runner{guest: guest, state: StateRunning, maxIndex: cfg.maxIndex}
}

// State returns the current state.
func (r *Runner) State() State {
	return r.state
}

// Index returns the next frame index to be attempted.
func (r *Runner) Index() entities.FrameIndex {
	return r.index
}

// Next advances the state machine by one step.
//
// It returns a screen_update event, or the end event once the guest reports
// done or the frame cap is passed. Any failure ends the runner and is
// returned without a terminal event. Once ended, Next returns false.
func (r *Runner) Next(ctx context.Context) (entities.Event, bool, error) {
	if r.state == StateEnded {
		return entities.Event{}, false, nil
	}
	if err := ctx.Err(); err != nil {
		r.state = StateEnded
		return entities.Event{}, false, &domainerrors.ClientDisconnected{Err: err}
	}

	i := r.index
	if i > r.maxIndex {
		r.state = StateEnded
		return entities.End(), true, nil
	}

	done, err := r.guest.IsDone(ctx, i)
	if err != nil {
		r.state = StateEnded
		return entities.Event{}, false, err
	}
	if done {
		r.state = StateEnded
		return entities.End(), true, nil
	}

	frame, err := r.guest.NextFrame(ctx, i)
	if err != nil {
		r.state = StateEnded
		return entities.Event{}, false, err
	}

	r.index = i + 1
	return entities.ScreenUpdate(i, frame), true, nil
}
