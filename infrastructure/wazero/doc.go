// Package wazero binds host capabilities from package hostfuncs to the wazero
// runtime.
//
// It handles:
//
//   - Converting hostfuncs value types to wazero value types
//   - Checking a compiled guest's imports against a capability registry
//   - Registering capabilities with the wazero host module builder
//
// # Basic Usage
//
//	registry, err := hostfuncs.DefaultRegistry(hostfuncs.SystemClock{})
//	if err != nil {
//	    return err
//	}
//
//	runtime := wazero.NewRuntime(ctx)
//
//	if err := adapter.CheckImports(compiled, registry); err != nil {
//	    return err
//	}
//	err = adapter.RegisterWithRuntime(ctx, runtime, registry)
package wazero
