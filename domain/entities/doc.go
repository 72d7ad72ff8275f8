// Package entities provides the core domain types of the renderer: frames,
// stream events, render requests and structured error details.
// These types carry no runtime dependencies and are shared by every layer.
package entities
