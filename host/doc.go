// Package host provides the runtime environment for executing guest
// renderer modules.
//
// It abstracts the underlying WASM engine (wazero), compiles and links guest
// modules against the host capabilities, and implements the host side of the
// frame protocol: is_done/next_frame calls and bounds-checked frame reads.
// Every loaded Renderer owns a private runtime; nothing but compiled code is
// shared between renders.
package host
