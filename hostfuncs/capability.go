package hostfuncs

import (
	"context"
	"strings"
)

// DefaultModuleName is the import module guests use for host capabilities.
const DefaultModuleName = "env"

// ValueType is a WebAssembly value type, encoded as in the binary format.
type ValueType byte

const (
	ValueTypeI32 ValueType = 0x7f
	ValueTypeI64 ValueType = 0x7e
	ValueTypeF32 ValueType = 0x7d
	ValueTypeF64 ValueType = 0x7c
)

// String returns the text-format name of the type.
func (v ValueType) String() string {
	switch v {
	case ValueTypeI32:
		return "i32"
	case ValueTypeI64:
		return "i64"
	case ValueTypeF32:
		return "f32"
	case ValueTypeF64:
		return "f64"
	default:
		return "unknown"
	}
}

// HostFunc implements a capability. Parameters are read from stack and
// results written back to it, lowest index first.
type HostFunc func(ctx context.Context, stack []uint64)

// Capability is a named host function a guest may import.
type Capability struct {
	Func    HostFunc
	Name    string
	Params  []ValueType
	Results []ValueType
}

// Signature renders the capability's type, e.g. "() -> (i64)".
func (c Capability) Signature() string {
	return formatSignature(c.Params, c.Results)
}

// Matches reports whether the capability has exactly the given signature.
func (c Capability) Matches(params, results []ValueType) bool {
	return sameTypes(c.Params, params) && sameTypes(c.Results, results)
}

// FormatSignature renders a function type.
func FormatSignature(params, results []ValueType) string {
	return formatSignature(params, results)
}

func formatSignature(params, results []ValueType) string {
	return "(" + joinTypes(params) + ") -> (" + joinTypes(results) + ")"
}

func joinTypes(types []ValueType) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.String()
	}
	return strings.Join(names, ", ")
}

func sameTypes(a, b []ValueType) bool {
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
