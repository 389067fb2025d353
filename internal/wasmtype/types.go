// Package wasmtype models the WebAssembly-side type system that JVM types
// are lowered into: value types, struct/array GC types, and the function
// signatures used for call_indirect dispatch (spec.md §4.2, component C2).
// It knows nothing about JVM descriptors; internal/jvmtype owns those.
package wasmtype

// ValueType is a WebAssembly value type (spec.md §2 GLOSSARY).
type ValueType byte

const (
	I32      ValueType = iota // JVM int, boolean, byte, char, short
	I64                       // JVM long
	F32                       // JVM float
	F64                       // JVM double
	Funcref                   // table element for virtual/interface dispatch
	Externref                 // host-imported object references in non-GC mode
	StructRef                 // a specific GC struct type, see RefType
	ArrayRef                  // a specific GC array type, see RefType
)

func (v ValueType) String() string {
	switch v {
	case I32:
		return "i32"
	case I64:
		return "i64"
	case F32:
		return "f32"
	case F64:
		return "f64"
	case Funcref:
		return "funcref"
	case Externref:
		return "externref"
	case StructRef, ArrayRef:
		return "ref"
	}
	return "unknown"
}

// RefType pairs a StructRef/ArrayRef ValueType with the concrete type index
// it refers to, since WASM GC references are always typed by a defined
// type index rather than a bare kind.
type RefType struct {
	Kind      ValueType
	TypeIndex uint32
	Nullable  bool
}

// FuncSig is a function signature used both for defined functions and for
// call_indirect type-checks against the vtable.
type FuncSig struct {
	Params  []ValueType
	Results []ValueType
}

// Equal reports whether two signatures are structurally identical, used to
// dedup the module's type section (spec.md §4.1 on C5's type table).
func (s FuncSig) Equal(o FuncSig) bool {
	if len(s.Params) != len(o.Params) || len(s.Results) != len(o.Results) {
		return false
	}
	for i := range s.Params {
		if s.Params[i] != o.Params[i] {
			return false
		}
	}
	for i := range s.Results {
		if s.Results[i] != o.Results[i] {
			return false
		}
	}
	return true
}

// StructField describes one field of a synthesized GC struct type, in
// slot order.
type StructField struct {
	Name     string
	Type     ValueType
	Ref      *RefType // non-nil when Type is StructRef/ArrayRef
	Mutable  bool
}

// StructType is the WASM-level layout of a JVM class: a vtable pointer
// slot, a class-index slot used by instanceof/checkcast, and then declared
// fields in declaration order, inherited fields first (spec.md §4.2:
// "object layout is a struct ... vtable pointer ... a class-index field").
type StructType struct {
	Name   string
	Fields []StructField
}

// VtableSlotField returns the index of the hidden vtable-pointer field,
// always slot 0.
func (StructType) VtableSlotField() int { return 0 }

// ClassIndexField returns the index of the hidden class-index field,
// always slot 1.
func (StructType) ClassIndexField() int { return 1 }

// ArrayType is the WASM-level layout of a JVM array: a length-prefixed
// run of elements of a single element type.
type ArrayType struct {
	Name    string
	Element ValueType
	ElemRef *RefType
	Mutable bool
}

// IsSubtypeOf reports whether `sub`, identified by its linear class index
// and ancestor chain, is a subtype of `super`'s class index, by scanning
// sub's ancestor list — the same representation used at runtime for
// instanceof/checkcast (spec.md §4.2, §4.3's instanceof-list vtable slot).
func IsSubtypeOf(subAncestors []uint32, superClassIndex uint32) bool {
	for _, a := range subAncestors {
		if a == superClassIndex {
			return true
		}
	}
	return false
}
