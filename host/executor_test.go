package host_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rapidriter/wasm-renderer/domain/entities"
	domainerrors "github.com/rapidriter/wasm-renderer/domain/errors"
	"github.com/rapidriter/wasm-renderer/host"
	"github.com/rapidriter/wasm-renderer/hostfuncs"
	"github.com/rapidriter/wasm-renderer/internal/wasmtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// ExecutorSuite exercises loading and the frame protocol against real
// guest modules.
type ExecutorSuite struct {
	suite.Suite
	ctx      context.Context
	clock    *hostfuncs.FakeClock
	executor *host.Executor
}

func (s *ExecutorSuite) SetupTest() {
	s.ctx = context.Background()
	s.clock = hostfuncs.NewFakeClock(time.Unix(1_700_000_042, 0))

	e, err := host.NewExecutor(s.ctx, host.WithClock(s.clock))
	s.Require().NoError(err)
	s.executor = e
}

func (s *ExecutorSuite) TearDownTest() {
	s.Require().NoError(s.executor.Close(s.ctx))
}

func (s *ExecutorSuite) load(m wasmtest.Module) (*host.Renderer, error) {
	r, err := s.executor.Load(s.ctx, m.Build())
	if r != nil {
		s.T().Cleanup(func() { _ = r.Close(context.Background()) })
	}
	return r, err
}

func (s *ExecutorSuite) TestLoad_Valid() {
	r, err := s.load(wasmtest.Module{IsDone: wasmtest.DoneAt(3)})
	s.Require().NoError(err)
	s.Equal(uint32(wasmtest.PageSize), r.MemorySize())

	done, err := r.IsDone(s.ctx, 2)
	s.Require().NoError(err)
	s.False(done)

	done, err = r.IsDone(s.ctx, 3)
	s.Require().NoError(err)
	s.True(done)
}

func (s *ExecutorSuite) TestNextFrame_ReadsGuestMemory() {
	r, err := s.load(wasmtest.Module{})
	s.Require().NoError(err)

	for _, i := range []entities.FrameIndex{0, 1, 42, 100} {
		frame, err := r.NextFrame(s.ctx, i)
		s.Require().NoError(err)
		s.Equal(byte(i), frame[0])
		s.Equal(byte(0), frame[1])
	}
}

func (s *ExecutorSuite) TestNextFrame_DataSegment() {
	pattern := make([]byte, entities.FrameSize)
	for i := range pattern {
		pattern[i] = byte(i % 251)
	}
	r, err := s.load(wasmtest.Module{
		NextFrame: wasmtest.ReturnPointer(4096),
		Data:      []wasmtest.Segment{{Offset: 4096, Bytes: pattern}},
	})
	s.Require().NoError(err)

	frame, err := r.NextFrame(s.ctx, 0)
	s.Require().NoError(err)
	s.Equal(pattern, frame[:])
}

func (s *ExecutorSuite) TestNextFrame_LastValidWindow() {
	r, err := s.load(wasmtest.Module{NextFrame: wasmtest.ReturnPointer(wasmtest.PageSize - entities.FrameSize)})
	s.Require().NoError(err)

	_, err = r.NextFrame(s.ctx, 0)
	s.NoError(err)
}

func (s *ExecutorSuite) TestNextFrame_PointerIntoGrownMemory() {
	ptr := int32(wasmtest.PageSize + 100)
	r, err := s.load(wasmtest.Module{NextFrame: wasmtest.GrowThenPointer(ptr)})
	s.Require().NoError(err)
	s.Equal(uint32(wasmtest.PageSize), r.MemorySize())

	frame, err := r.NextFrame(s.ctx, 0)
	s.Require().NoError(err)
	s.Equal(entities.Frame{}, frame)
	s.Equal(uint32(2*wasmtest.PageSize), r.MemorySize())
}

func (s *ExecutorSuite) TestNextFrame_OutOfBounds() {
	tests := []struct {
		name string
		ptr  int32
	}{
		{"window crosses end", wasmtest.PageSize - 100},
		{"past end", wasmtest.PageSize},
		{"wrapped negative", -1},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			r, err := s.load(wasmtest.Module{NextFrame: wasmtest.ReturnPointer(tt.ptr)})
			s.Require().NoError(err)

			_, err = r.NextFrame(s.ctx, 5)
			var trap *domainerrors.GuestTrap
			s.Require().True(errors.As(err, &trap), "got %v", err)
			s.Equal("next_frame", trap.Call)
			s.Equal(entities.FrameIndex(5), trap.Index)
			s.Contains(err.Error(), "exceeds memory size")
		})
	}
}

func (s *ExecutorSuite) TestGuestTrap() {
	r, err := s.load(wasmtest.Module{IsDone: wasmtest.Trap(), NextFrame: wasmtest.Trap()})
	s.Require().NoError(err)

	_, err = r.IsDone(s.ctx, 0)
	var trap *domainerrors.GuestTrap
	s.Require().True(errors.As(err, &trap))
	s.Equal("is_done", trap.Call)

	_, err = r.NextFrame(s.ctx, 1)
	s.Require().True(errors.As(err, &trap))
	s.Equal("next_frame", trap.Call)
	s.Equal(entities.FrameIndex(1), trap.Index)
}

func (s *ExecutorSuite) TestUnixtimeImport() {
	r, err := s.load(wasmtest.Module{ImportUnixtime: true, NextFrame: wasmtest.ClockFrame()})
	s.Require().NoError(err)

	frame, err := r.NextFrame(s.ctx, 0)
	s.Require().NoError(err)
	s.Equal(byte(1_700_000_042&0xff), frame[0])

	s.clock.Advance(time.Second)
	frame, err = r.NextFrame(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal(byte(1_700_000_043&0xff), frame[0])
}

func (s *ExecutorSuite) TestCompileError() {
	for name, wasm := range map[string][]byte{
		"empty":     nil,
		"garbage":   []byte("not a wasm module"),
		"text form": []byte(`(module (memory (export "memory") 1))`),
		"truncated": wasmtest.Module{}.Build()[:20],
	} {
		s.Run(name, func() {
			_, err := s.executor.Load(s.ctx, wasm)
			var compileErr *domainerrors.CompileError
			s.True(errors.As(err, &compileErr), "got %v", err)
		})
	}
}

func (s *ExecutorSuite) TestLinkError_MissingExports() {
	tests := []struct {
		name   string
		module wasmtest.Module
		export string
	}{
		{"memory", wasmtest.Module{OmitMemoryExport: true}, "memory"},
		{"is_done", wasmtest.Module{OmitIsDoneExport: true}, "is_done"},
		{"next_frame", wasmtest.Module{OmitNextFrameExport: true}, "next_frame"},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.load(tt.module)
			var linkErr *domainerrors.LinkError
			s.Require().True(errors.As(err, &linkErr), "got %v", err)
			s.Equal(tt.export, linkErr.Name)
		})
	}
}

func (s *ExecutorSuite) TestLinkError_WrongSignature() {
	_, err := s.load(wasmtest.Module{IsDoneNoParams: true})
	var linkErr *domainerrors.LinkError
	s.Require().True(errors.As(err, &linkErr), "got %v", err)
	s.Equal("is_done", linkErr.Name)
	s.Contains(err.Error(), "want (i32) -> (i32)")
}

func (s *ExecutorSuite) TestLinkError_UnknownImport() {
	tests := []struct {
		name   string
		imp    wasmtest.Import
		reason string
	}{
		{"unknown function", wasmtest.Import{Module: "env", Name: "random"}, "not provided by host"},
		{"unknown module", wasmtest.Import{Module: "wasi_snapshot_preview1", Name: "fd_write"}, "unknown import module"},
		{"wrong signature", wasmtest.Import{Module: "env", Name: "unixtime"}, "host provides () -> (i64)"},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			imp := tt.imp
			_, err := s.load(wasmtest.Module{ExtraImport: &imp})
			var linkErr *domainerrors.LinkError
			s.Require().True(errors.As(err, &linkErr), "got %v", err)
			s.Equal(tt.imp.Module, linkErr.Module)
			s.Contains(err.Error(), tt.reason)
		})
	}
}

func (s *ExecutorSuite) TestMemoryLimit() {
	e, err := host.NewExecutor(s.ctx, host.WithMemoryLimitPages(1))
	s.Require().NoError(err)
	defer e.Close(s.ctx)

	_, err = e.Load(s.ctx, wasmtest.Module{MemoryPages: 2}.Build())
	s.Error(err)
}

func (s *ExecutorSuite) TestCanceledContext() {
	r, err := s.load(wasmtest.Module{})
	s.Require().NoError(err)

	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	_, err = r.NextFrame(ctx, 0)
	var disconnected *domainerrors.ClientDisconnected
	s.True(errors.As(err, &disconnected), "got %v", err)
}

func (s *ExecutorSuite) TestIsolatedInstances() {
	a, err := s.load(wasmtest.Module{})
	s.Require().NoError(err)
	b, err := s.load(wasmtest.Module{})
	s.Require().NoError(err)

	_, err = a.NextFrame(s.ctx, 9)
	s.Require().NoError(err)

	s.Require().NoError(b.Close(s.ctx))

	frame, err := a.NextFrame(s.ctx, 10)
	s.Require().NoError(err)
	s.Equal(byte(10), frame[0])
}

func TestExecutorSuite(t *testing.T) {
	suite.Run(t, new(ExecutorSuite))
}

func TestNewExecutor_InvalidMemoryLimit(t *testing.T) {
	_, err := host.NewExecutor(context.Background(), host.WithMemoryLimitPages(0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "memory limit")
}

func TestNewExecutor_SharedCache(t *testing.T) {
	ctx := context.Background()
	reg, err := hostfuncs.NewRegistry()
	require.NoError(t, err)

	e, err := host.NewExecutor(ctx, host.WithHostFunctions(reg))
	require.NoError(t, err)
	defer e.Close(ctx)
	assert.Same(t, reg, e.Registry())

	// With an empty registry the unixtime import cannot be satisfied.
	_, err = e.Load(ctx, wasmtest.Module{ImportUnixtime: true}.Build())
	var linkErr *domainerrors.LinkError
	require.True(t, errors.As(err, &linkErr))
	assert.Equal(t, "unixtime", linkErr.Name)
}
