package wazero

import (
	"context"
	"fmt"

	domainerrors "github.com/rapidriter/wasm-renderer/domain/errors"
	"github.com/rapidriter/wasm-renderer/hostfuncs"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// RegisterWithRuntime instantiates a host module named after the registry's
// module name, exporting every capability in the registry.
func RegisterWithRuntime(ctx context.Context, runtime wazero.Runtime, registry *hostfuncs.HandlerRegistry) error {
	builder := runtime.NewHostModuleBuilder(registry.ModuleName())

	for _, name := range registry.Names() {
		c, _ := registry.Lookup(name)
		fn := c.Func // capture for closure
		builder.NewFunctionBuilder().
			WithGoFunction(api.GoFunc(func(ctx context.Context, stack []uint64) {
				fn(ctx, stack)
			}), toAPITypes(c.Params), toAPITypes(c.Results)).
			WithName(name).
			Export(name)
	}

	if _, err := builder.Instantiate(ctx); err != nil {
		return fmt.Errorf("failed to instantiate host module %q: %w", registry.ModuleName(), err)
	}
	return nil
}

// CheckImports verifies that every import of the compiled guest is a
// function provided by the registry with a matching signature.
func CheckImports(compiled wazero.CompiledModule, registry *hostfuncs.HandlerRegistry) error {
	for _, def := range compiled.ImportedFunctions() {
		module, name, _ := def.Import()
		if module != registry.ModuleName() {
			return &domainerrors.LinkError{Module: module, Name: name, Reason: "unknown import module"}
		}
		c, ok := registry.Lookup(name)
		if !ok {
			return &domainerrors.LinkError{Module: module, Name: name, Reason: "not provided by host"}
		}
		params, results := fromAPITypes(def.ParamTypes()), fromAPITypes(def.ResultTypes())
		if !c.Matches(params, results) {
			return &domainerrors.LinkError{
				Module: module,
				Name:   name,
				Reason: fmt.Sprintf("signature %s, host provides %s",
					hostfuncs.FormatSignature(params, results), c.Signature()),
			}
		}
	}

	// Guests may only import functions; memories, tables and globals are
	// owned by the guest itself.
	if mems := compiled.ImportedMemories(); len(mems) > 0 {
		module, name, _ := mems[0].Import()
		return &domainerrors.LinkError{Module: module, Name: name, Reason: "memory imports are not supported"}
	}
	return nil
}

func toAPITypes(types []hostfuncs.ValueType) []api.ValueType {
	out := make([]api.ValueType, len(types))
	for i, t := range types {
		out[i] = api.ValueType(t)
	}
	return out
}

func fromAPITypes(types []api.ValueType) []hostfuncs.ValueType {
	out := make([]hostfuncs.ValueType, len(types))
	for i, t := range types {
		out[i] = hostfuncs.ValueType(t)
	}
	return out
}
