package host

import (
	"context"
	"fmt"
	"time"

	domainerrors "github.com/rapidriter/wasm-renderer/domain/errors"
	"github.com/rapidriter/wasm-renderer/hostfuncs"
	adapter "github.com/rapidriter/wasm-renderer/infrastructure/wazero"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// Names of the guest exports required by the frame protocol.
const (
	ExportMemory    = "memory"
	ExportIsDone    = "is_done"
	ExportNextFrame = "next_frame"
)

// guestModuleName is the instance name of every guest in its runtime.
const guestModuleName = "renderer"

// Executor compiles and links guest modules. It is safe for concurrent use;
// each Load creates an independent runtime.
type Executor struct {
	cache     wazero.CompilationCache
	ownsCache bool
	config    executorConfig
}

// NewExecutor creates a new executor with the given options.
func NewExecutor(ctx context.Context, opts ...Option) (*Executor, error) {
	cfg := defaultExecutorConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.registry == nil {
		reg, err := hostfuncs.DefaultRegistry(cfg.clock)
		if err != nil {
			return nil, fmt.Errorf("failed to create default registry: %w", err)
		}
		cfg.registry = reg
	}
	if cfg.memoryLimitPages == 0 || cfg.memoryLimitPages > 65536 {
		return nil, fmt.Errorf("memory limit must be between 1 and 65536 pages, got %d", cfg.memoryLimitPages)
	}

	e := &Executor{config: cfg, cache: cfg.cache}
	if e.cache == nil {
		e.cache = wazero.NewCompilationCache()
		e.ownsCache = true
	}
	return e, nil
}

// Close releases resources held by the executor. Renderers already loaded
// stay usable until closed.
func (e *Executor) Close(ctx context.Context) error {
	if e.ownsCache {
		return e.cache.Close(ctx)
	}
	return nil
}

// Registry returns the capabilities guests are linked against.
func (e *Executor) Registry() *hostfuncs.HandlerRegistry {
	return e.config.registry
}

// Load compiles wasm, links it against the host capabilities and returns a
// Renderer ready for stepping. Errors are *errors.CompileError or
// *errors.LinkError. No guest protocol function is called.
func (e *Executor) Load(ctx context.Context, wasm []byte) (*Renderer, error) {
	start := time.Now()

	rtConfig := wazero.NewRuntimeConfig().
		WithCloseOnContextDone(true).
		WithCompilationCache(e.cache).
		WithMemoryLimitPages(e.config.memoryLimitPages)
	rt := wazero.NewRuntimeWithConfig(ctx, rtConfig)

	r, err := e.link(ctx, rt, wasm)
	if err != nil {
		_ = rt.Close(context.WithoutCancel(ctx))
		return nil, err
	}

	e.config.logger.DebugContext(ctx, "guest module loaded",
		"bytes", len(wasm),
		"memory_pages", r.memory.Size()/wasmPageSize,
		"duration", time.Since(start))
	return r, nil
}

func (e *Executor) link(ctx context.Context, rt wazero.Runtime, wasm []byte) (*Renderer, error) {
	compiled, err := rt.CompileModule(ctx, wasm)
	if err != nil {
		return nil, &domainerrors.CompileError{Err: err}
	}

	if err := adapter.CheckImports(compiled, e.config.registry); err != nil {
		return nil, err
	}
	if err := checkExports(compiled); err != nil {
		return nil, err
	}

	if len(compiled.ImportedFunctions()) > 0 {
		if err := adapter.RegisterWithRuntime(ctx, rt, e.config.registry); err != nil {
			return nil, &domainerrors.LinkError{Err: err}
		}
	}

	// Reactor-style guests initialise through _initialize; a command's
	// _start is never run.
	modConfig := wazero.NewModuleConfig().
		WithName(guestModuleName).
		WithStartFunctions("_initialize")

	mod, err := rt.InstantiateModule(ctx, compiled, modConfig)
	if err != nil {
		return nil, &domainerrors.LinkError{Err: err}
	}

	return &Renderer{
		runtime:   rt,
		module:    mod,
		memory:    mod.ExportedMemory(ExportMemory),
		isDone:    mod.ExportedFunction(ExportIsDone),
		nextFrame: mod.ExportedFunction(ExportNextFrame),
		logger:    e.config.logger,
	}, nil
}

var frameFuncSignature = []api.ValueType{api.ValueTypeI32}

func checkExports(compiled wazero.CompiledModule) error {
	if _, ok := compiled.ExportedMemories()[ExportMemory]; !ok {
		return &domainerrors.LinkError{Name: ExportMemory, Reason: "memory not exported"}
	}

	funcs := compiled.ExportedFunctions()
	for _, name := range []string{ExportIsDone, ExportNextFrame} {
		def, ok := funcs[name]
		if !ok {
			return &domainerrors.LinkError{Name: name, Reason: "function not exported"}
		}
		if !sameTypes(def.ParamTypes(), frameFuncSignature) || !sameTypes(def.ResultTypes(), frameFuncSignature) {
			return &domainerrors.LinkError{
				Name: name,
				Reason: fmt.Sprintf("signature (%s) -> (%s), want (i32) -> (i32)",
					typeNames(def.ParamTypes()), typeNames(def.ResultTypes())),
			}
		}
	}
	return nil
}

func sameTypes(a, b []api.ValueType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func typeNames(types []api.ValueType) string {
	s := ""
	for i, t := range types {
		if i > 0 {
			s += ", "
		}
		s += api.ValueTypeName(t)
	}
	return s
}
