package wasmbin

import "github.com/jacobin-wasm/j2w/internal/wasmtype"

// Value-type encoding bytes (WebAssembly core + GC proposal MVP).
const (
	vtI32       = 0x7f
	vtI64       = 0x7e
	vtF32       = 0x7d
	vtF64       = 0x7c
	vtFuncref   = 0x70
	vtExternref = 0x6f
	vtStructref = 0x6b // GC proposal: the top struct type, any struct
	vtArrayref  = 0x6a // GC proposal: the top array type, any array

	// Composite type forms, used in the type section.
	ctFunc   = 0x60
	ctStruct = 0x5f
	ctArray  = 0x5e

	fieldMutable   = 0x01
	fieldImmutable = 0x00
)

// encodeValType lowers a wasmtype.ValueType to its wire byte. In GC mode,
// StructRef/ArrayRef lower to the proposal's generic top reference types
// rather than a concrete `(ref $type)`: internal/wasmtype.LowerKind never
// tracks a concrete type index for a field/local/param's declared type
// (only the coarse class/array kind), so struct.get/struct.new_default's
// own concrete type immediate is where the real type index lives, not the
// value's static type — see the emitter's structTypeIdx table in code.go.
// Non-GC mode represents
// every heap reference uniformly as an opaque host externref (see
// internal/compiler/runtime.go's object-model note).
func (e *emitter) encodeValType(t wasmtype.ValueType) byte {
	switch t {
	case wasmtype.I32:
		return vtI32
	case wasmtype.I64:
		return vtI64
	case wasmtype.F32:
		return vtF32
	case wasmtype.F64:
		return vtF64
	case wasmtype.Funcref:
		return vtFuncref
	case wasmtype.Externref:
		return vtExternref
	case wasmtype.StructRef:
		if e.cfg.WasmUseGC {
			return vtStructref
		}
		return vtExternref
	case wasmtype.ArrayRef:
		if e.cfg.WasmUseGC {
			return vtArrayref
		}
		return vtExternref
	}
	return vtI32
}

// scratchKind is the small set of distinct local types the code-section
// emitter ever needs a scratch local of: the four numeric WASM types plus
// one reference type (GC structref/arrayref collapse to "ref" here since
// a scratch slot is typed by its use, not by a specific class).
type scratchKind int

const (
	scratchI32 scratchKind = iota
	scratchI64
	scratchF32
	scratchF64
	scratchRef
	numScratchKinds
)

func scratchKindOf(t wasmtype.ValueType) scratchKind {
	switch t {
	case wasmtype.I64:
		return scratchI64
	case wasmtype.F32:
		return scratchF32
	case wasmtype.F64:
		return scratchF64
	case wasmtype.StructRef, wasmtype.ArrayRef, wasmtype.Externref:
		return scratchRef
	default:
		return scratchI32
	}
}

// scratchValType reports the ValueType a scratch local of kind k should be
// declared with. scratchRef is the one kind whose wire encoding depends on
// mode: GC mode's "ref" array category and scratch refs hold structref/
// arrayref values (encodeValType's StructRef/ArrayRef case already branches
// on cfg.WasmUseGC), while non-GC mode's scratch refs and the fixed array
// types are always the host externref object model.
func (e *emitter) scratchValType(k scratchKind) wasmtype.ValueType {
	switch k {
	case scratchI64:
		return wasmtype.I64
	case scratchF32:
		return wasmtype.F32
	case scratchF64:
		return wasmtype.F64
	case scratchRef:
		if e.cfg.WasmUseGC {
			return wasmtype.StructRef
		}
		return wasmtype.Externref
	default:
		return wasmtype.I32
	}
}
