// Package errors provides the renderer's error kinds.
// All error types support error unwrapping via errors.As() and errors.Is().
package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/rapidriter/wasm-renderer/domain/entities"
)

// ErrorDetail is an alias to entities.ErrorDetail for convenience.
type ErrorDetail = entities.ErrorDetail

// DetailedError is implemented by error types that can convert themselves
// to a structured ErrorDetail.
type DetailedError interface {
	error
	ToErrorDetail() *entities.ErrorDetail
}

// ToErrorDetail converts a Go error to a structured ErrorDetail.
func ToErrorDetail(err error) *entities.ErrorDetail {
	if err == nil {
		return nil
	}

	var e *entities.ErrorDetail
	if stdErrors.As(err, &e) {
		return e
	}

	var de DetailedError
	if stdErrors.As(err, &de) {
		return de.ToErrorDetail()
	}

	return &entities.ErrorDetail{
		Message: err.Error(),
		Type:    "internal",
	}
}

// PayloadDecodeError reports a missing or malformed request body.
type PayloadDecodeError struct {
	Err   error
	Field string
}

func (e *PayloadDecodeError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid request field '%s': %v", e.Field, e.Err)
	}
	return fmt.Sprintf("invalid request: %v", e.Err)
}

func (e *PayloadDecodeError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *PayloadDecodeError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "payload", Code: e.Field}
}

// CompileError reports module bytes that are not a valid WebAssembly module.
type CompileError struct {
	Err error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("failed to compile module: %v", e.Err)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *CompileError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "compile"}
}

// LinkError reports an unsatisfied import or a missing required export.
type LinkError struct {
	Err    error
	Module string // import module, empty for exports
	Name   string // import or export name
	Reason string
}

func (e *LinkError) Error() string {
	switch {
	case e.Module != "":
		return fmt.Sprintf("failed to link import %s.%s: %s", e.Module, e.Name, e.Reason)
	case e.Err != nil && e.Name == "":
		return fmt.Sprintf("failed to link module: %v", e.Err)
	case e.Err != nil:
		return fmt.Sprintf("failed to link export %q: %v", e.Name, e.Err)
	default:
		return fmt.Sprintf("failed to link export %q: %s", e.Name, e.Reason)
	}
}

func (e *LinkError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *LinkError) ToErrorDetail() *entities.ErrorDetail {
	code := e.Name
	if e.Module != "" {
		code = e.Module + "." + e.Name
	}
	return &entities.ErrorDetail{Message: e.Error(), Type: "link", Code: code}
}

// GuestTrap reports a fault while executing guest code, or a guest result
// that violates the frame protocol.
type GuestTrap struct {
	Err   error
	Call  string // "is_done" or "next_frame"
	Index entities.FrameIndex
}

func (e *GuestTrap) Error() string {
	return fmt.Sprintf("guest trapped in %s(%d): %v", e.Call, e.Index, e.Err)
}

func (e *GuestTrap) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *GuestTrap) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{
		Message: e.Error(),
		Type:    "guest_trap",
		Code:    e.Call,
		Details: map[string]any{"frame_index": e.Index},
	}
}

// ClientDisconnected reports that the stream consumer went away.
// It is never sent to the client; it only drives teardown.
type ClientDisconnected struct {
	Err error
}

func (e *ClientDisconnected) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("client disconnected: %v", e.Err)
	}
	return "client disconnected"
}

func (e *ClientDisconnected) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *ClientDisconnected) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "disconnected"}
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Err   error
	Field string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config validation failed for field '%s': %v", e.Field, e.Err)
	}
	return fmt.Sprintf("config validation failed: %v", e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *ConfigError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "config", Code: e.Field}
}

// IsDisconnect reports whether err means the client went away.
func IsDisconnect(err error) bool {
	var cd *ClientDisconnected
	return stdErrors.As(err, &cd)
}
