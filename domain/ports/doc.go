// Package ports defines the interfaces between the renderer's layers.
// Domain logic depends on these abstractions; the wazero host, the pacers
// and the transport adapters implement them.
package ports
