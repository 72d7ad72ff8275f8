// Package hostfuncs provides pure Go implementations of the capabilities a
// guest module may import from the host.
// These implementations have NO WASM runtime dependencies; the wazero adapter
// in infrastructure/wazero binds them to a runtime.
package hostfuncs
