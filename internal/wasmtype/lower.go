package wasmtype

import "github.com/jacobin-wasm/j2w/internal/jvmtype"

// LowerKind maps a JVM descriptor kind to its WebAssembly value type
// (spec.md §4.2: "Z B C S I → i32, J → i64, F → f32, D → f64").
// Class and array kinds lower to a struct/array reference; since the
// concrete type index depends on the type manager's registration order,
// callers needing the full RefType use LowerReference instead.
func LowerKind(k jvmtype.Kind) ValueType {
	switch k {
	case jvmtype.KindBoolean, jvmtype.KindByte, jvmtype.KindChar, jvmtype.KindShort, jvmtype.KindInt:
		return I32
	case jvmtype.KindLong:
		return I64
	case jvmtype.KindFloat:
		return F32
	case jvmtype.KindDouble:
		return F64
	case jvmtype.KindClass:
		return StructRef
	case jvmtype.KindArray:
		return ArrayRef
	}
	return I32
}

// LowerSignature converts a parsed JVM method signature into a FuncSig.
// void results lower to an empty Results slice. A non-static method's
// implicit receiver (the `this` every instance call site already has
// sitting under its arguments on the operand stack) becomes an explicit
// leading StructRef parameter, so the function's WASM type and every call
// site's actual argument order agree.
func LowerSignature(params []*jvmtype.Type, result *jvmtype.Type, static bool) FuncSig {
	sig := FuncSig{}
	if !static {
		sig.Params = append(sig.Params, StructRef)
	}
	for _, p := range params {
		sig.Params = append(sig.Params, LowerKind(p.Kind))
	}
	if result != nil && result.Kind != jvmtype.KindVoid {
		sig.Results = []ValueType{LowerKind(result.Kind)}
	}
	return sig
}
