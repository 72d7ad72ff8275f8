// Package wasmtest assembles small guest modules in the binary WebAssembly
// format for tests. Modules follow the frame protocol: an exported memory,
// is_done(i32) -> i32 and next_frame(i32) -> i32, optionally importing
// env.unixtime() -> i64.
package wasmtest

import "encoding/base64"

// Opcodes used by the canned function bodies.
const (
	opUnreachable = 0x00
	opCall        = 0x10
	opDrop        = 0x1a
	opLocalGet    = 0x20
	opI32Store8   = 0x3a
	opMemoryGrow  = 0x40
	opI32Const    = 0x41
	opI32GeU      = 0x4f
	opI32WrapI64  = 0xa7
	opEnd         = 0x0b
)

// FramePtr is where the canned next_frame bodies place their frame.
const FramePtr = 1024

// PageSize is the WebAssembly page size.
const PageSize = 65536

// Import is an extra function import of type () -> i32.
type Import struct {
	Module string
	Name   string
}

// Segment is an active data segment in memory 0.
type Segment struct {
	Bytes  []byte
	Offset int32
}

// Module describes a guest module to assemble.
type Module struct {
	// IsDone is the body of is_done. Defaults to NeverDone().
	IsDone []byte

	// NextFrame is the body of next_frame. Defaults to IndexFrame().
	NextFrame []byte

	// ExtraImport adds an import the host does not provide.
	ExtraImport *Import

	Data []Segment

	// MemoryPages is the initial memory size. Defaults to 1.
	MemoryPages uint32

	ImportUnixtime bool

	OmitMemoryExport    bool
	OmitIsDoneExport    bool
	OmitNextFrameExport bool

	// IsDoneNoParams declares is_done as () -> i32.
	IsDoneNoParams bool
}

// Build assembles the module.
func (m Module) Build() []byte {
	isDone := m.IsDone
	if isDone == nil {
		isDone = NeverDone()
	}
	nextFrame := m.NextFrame
	if nextFrame == nil {
		nextFrame = IndexFrame()
	}
	pages := m.MemoryPages
	if pages == 0 {
		pages = 1
	}

	// Types: 0 = (i32) -> i32, 1 = () -> i64, 2 = () -> i32
	types := vec(
		funcType([]byte{0x7f}, []byte{0x7f}),
		funcType(nil, []byte{0x7e}),
		funcType(nil, []byte{0x7f}),
	)

	var imports [][]byte
	if m.ImportUnixtime {
		imports = append(imports, importFunc("env", "unixtime", 1))
	}
	if m.ExtraImport != nil {
		imports = append(imports, importFunc(m.ExtraImport.Module, m.ExtraImport.Name, 2))
	}
	base := uint32(len(imports))

	isDoneType := uint32(0)
	if m.IsDoneNoParams {
		isDoneType = 2
	}
	funcs := vec(uleb(isDoneType), uleb(0))

	memory := vec(append([]byte{0x00}, uleb(pages)...))

	var exports [][]byte
	if !m.OmitMemoryExport {
		exports = append(exports, export("memory", 0x02, 0))
	}
	if !m.OmitIsDoneExport {
		exports = append(exports, export("is_done", 0x00, base))
	}
	if !m.OmitNextFrameExport {
		exports = append(exports, export("next_frame", 0x00, base+1))
	}

	code := vec(body(isDone), body(nextFrame))

	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	out = append(out, section(1, types)...)
	if len(imports) > 0 {
		out = append(out, section(2, vec(imports...))...)
	}
	out = append(out, section(3, funcs)...)
	out = append(out, section(5, memory)...)
	out = append(out, section(7, vec(exports...))...)
	out = append(out, section(10, code)...)
	if len(m.Data) > 0 {
		segs := make([][]byte, len(m.Data))
		for i, s := range m.Data {
			seg := []byte{0x00, opI32Const}
			seg = append(seg, sleb(s.Offset)...)
			seg = append(seg, opEnd)
			seg = append(seg, uleb(uint32(len(s.Bytes)))...)
			segs[i] = append(seg, s.Bytes...)
		}
		out = append(out, section(11, vec(segs...))...)
	}
	return out
}

// Base64 returns the module in the request encoding.
func (m Module) Base64() string {
	return base64.StdEncoding.EncodeToString(m.Build())
}

// NeverDone is an is_done body that always returns 0.
func NeverDone() []byte {
	return I32Const(0)
}

// DoneAt is an is_done body returning 1 once the frame index reaches k.
func DoneAt(k int32) []byte {
	b := []byte{opLocalGet, 0x00}
	b = append(b, I32Const(k)...)
	return append(b, opI32GeU)
}

// Trap is a body that executes unreachable.
func Trap() []byte {
	return []byte{opUnreachable}
}

// ReturnPointer is a next_frame body that returns ptr without writing.
func ReturnPointer(ptr int32) []byte {
	return I32Const(ptr)
}

// GrowThenPointer is a next_frame body that grows memory by one page and
// returns ptr without writing.
func GrowThenPointer(ptr int32) []byte {
	b := I32Const(1)
	b = append(b, opMemoryGrow, 0x00, opDrop)
	return append(b, I32Const(ptr)...)
}

// IndexFrame is a next_frame body that stores the low byte of the frame
// index at FramePtr and returns FramePtr.
func IndexFrame() []byte {
	b := I32Const(FramePtr)
	b = append(b, opLocalGet, 0x00)
	b = append(b, opI32Store8, 0x00, 0x00)
	return append(b, I32Const(FramePtr)...)
}

// ClockFrame is a next_frame body that stores the low byte of
// env.unixtime() at FramePtr and returns FramePtr. The module must set
// ImportUnixtime, which makes unixtime function 0.
func ClockFrame() []byte {
	b := I32Const(FramePtr)
	b = append(b, opCall, 0x00, opI32WrapI64)
	b = append(b, opI32Store8, 0x00, 0x00)
	return append(b, I32Const(FramePtr)...)
}

// I32Const encodes i32.const v.
func I32Const(v int32) []byte {
	return append([]byte{opI32Const}, sleb(v)...)
}

func funcType(params, results []byte) []byte {
	b := []byte{0x60}
	b = append(b, uleb(uint32(len(params)))...)
	b = append(b, params...)
	b = append(b, uleb(uint32(len(results)))...)
	return append(b, results...)
}

func importFunc(module, name string, typeIdx uint32) []byte {
	b := append(str(module), str(name)...)
	b = append(b, 0x00)
	return append(b, uleb(typeIdx)...)
}

func export(name string, kind byte, idx uint32) []byte {
	b := append(str(name), kind)
	return append(b, uleb(idx)...)
}

func body(instrs []byte) []byte {
	content := []byte{0x00} // no locals
	content = append(content, instrs...)
	content = append(content, opEnd)
	return append(uleb(uint32(len(content))), content...)
}

func section(id byte, content []byte) []byte {
	b := []byte{id}
	b = append(b, uleb(uint32(len(content)))...)
	return append(b, content...)
}

func vec(items ...[]byte) []byte {
	b := uleb(uint32(len(items)))
	for _, it := range items {
		b = append(b, it...)
	}
	return b
}

func str(s string) []byte {
	return append(uleb(uint32(len(s))), s...)
}

func uleb(v uint32) []byte {
	var b []byte
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			c |= 0x80
		}
		b = append(b, c)
		if v == 0 {
			return b
		}
	}
}

func sleb(v int32) []byte {
	var b []byte
	for {
		c := byte(v & 0x7f)
		v >>= 7
		done := (v == 0 && c&0x40 == 0) || (v == -1 && c&0x40 != 0)
		if !done {
			c |= 0x80
		}
		b = append(b, c)
		if done {
			return b
		}
	}
}
