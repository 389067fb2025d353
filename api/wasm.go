// Package api includes the WebAssembly value types and section identifiers
// shared by every emitter and consumer in this module. It has no
// dependencies beyond the standard library so that any package may import
// it without risking a cycle.
package api

import (
	"fmt"
	"math"
)

// ExternType classifies imports and exports by their respective types.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#external-types%E2%91%A0
type ExternType = byte

const (
	ExternTypeFunc   ExternType = 0x00
	ExternTypeTable  ExternType = 0x01
	ExternTypeMemory ExternType = 0x02
	ExternTypeGlobal ExternType = 0x03
)

const (
	ExternTypeFuncName   = "func"
	ExternTypeTableName  = "table"
	ExternTypeMemoryName = "memory"
	ExternTypeGlobalName = "global"
)

// ExternTypeName returns the text format field name of et.
func ExternTypeName(et ExternType) string {
	switch et {
	case ExternTypeFunc:
		return ExternTypeFuncName
	case ExternTypeTable:
		return ExternTypeTableName
	case ExternTypeMemory:
		return ExternTypeMemoryName
	case ExternTypeGlobal:
		return ExternTypeGlobalName
	}
	return fmt.Sprintf("%#x", et)
}

// ValueType is a WebAssembly value or reference type, encoded as its
// single-byte binary-format opcode.
//
// See https://webassembly.github.io/spec/core/binary/types.html#value-types
type ValueType = byte

const (
	ValueTypeI32 ValueType = 0x7f
	ValueTypeI64 ValueType = 0x7e
	ValueTypeF32 ValueType = 0x7d
	ValueTypeF64 ValueType = 0x7c

	// ValueTypeV128 is the 128-bit vector type. j2w never emits it today;
	// it is kept so the dispatch tables in internal/translate are total
	// over the WebAssembly 2.0 value-type space.
	ValueTypeV128 ValueType = 0x7b

	// ValueTypeFuncref is a reference to a function, used for call_indirect
	// tables (virtual dispatch, §4.5).
	ValueTypeFuncref ValueType = 0x70

	// ValueTypeExternref is an opaque host reference (the "external
	// reference type" of spec.md §3).
	ValueTypeExternref ValueType = 0x6f

	// ValueTypeEmpty is the void/empty pseudo-type used for blocks and
	// methods with no result.
	ValueTypeEmpty ValueType = 0x40
)

// ValueTypeName returns the WebAssembly text format name of t.
func ValueTypeName(t ValueType) string {
	switch t {
	case ValueTypeI32:
		return "i32"
	case ValueTypeI64:
		return "i64"
	case ValueTypeF32:
		return "f32"
	case ValueTypeF64:
		return "f64"
	case ValueTypeV128:
		return "v128"
	case ValueTypeFuncref:
		return "funcref"
	case ValueTypeExternref:
		return "externref"
	case ValueTypeEmpty:
		return ""
	}
	return "unknown"
}

// Index is a position in one of a module's index spaces (function, type,
// table, memory, global).
type Index = uint32

// Section identifiers, in the canonical order §4.9/§6 require they appear
// in the binary format.
const (
	SectionIDCustom Index = iota
	SectionIDType
	SectionIDImport
	SectionIDFunction
	SectionIDTable
	SectionIDMemory
	SectionIDGlobal
	SectionIDExport
	SectionIDStart
	SectionIDElement
	SectionIDCode
	SectionIDData
)

// EncodeI32 encodes v for a const instruction immediate or global/data
// payload of type ValueTypeI32.
func EncodeI32(v int32) uint64 { return uint64(uint32(v)) }

// EncodeI64 encodes v as a ValueTypeI64 payload.
func EncodeI64(v int64) uint64 { return uint64(v) }

// EncodeF32 encodes v as its raw IEEE-754 bit pattern.
func EncodeF32(v float32) uint64 { return uint64(math.Float32bits(v)) }

// DecodeF32 is the inverse of EncodeF32.
func DecodeF32(v uint64) float32 { return math.Float32frombits(uint32(v)) }

// EncodeF64 encodes v as its raw IEEE-754 bit pattern.
func EncodeF64(v float64) uint64 { return math.Float64bits(v) }

// DecodeF64 is the inverse of EncodeF64.
func DecodeF64(v uint64) float64 { return math.Float64frombits(v) }
