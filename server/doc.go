// Package server exposes the renderer over HTTP.
//
// Routes:
//
//	POST /render   body {"wasm": "<base64 module>"}, answers text/event-stream
//	GET  /schema   JSON Schema of the render body
//	GET  /metrics  Prometheus exposition
//	GET  /healthz  liveness
//
// Payload errors answer 400, oversized bodies 413, compile and link errors
// 422, all before any stream byte. Faults after the stream opened are sent
// as an "error" event.
package server
