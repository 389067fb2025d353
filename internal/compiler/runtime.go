package compiler

import (
	"github.com/jacobin-wasm/j2w/internal/link"
	"github.com/jacobin-wasm/j2w/internal/wasmtype"
)

// Runtime helper names. C9 (internal/wasmbin) looks these up by name via
// RuntimeFuncName once it has a *Module in hand, the same way it resolves
// any other call target.
//
// spec.md §4's Non-goals describe two allocation strategies: the
// WebAssembly GC proposal, or delegation "to the host via imported
// allocator functions". WASM functions are monomorphic, so a single
// imported accessor cannot serve every JVM field width; rather than
// catalog one accessor per width this widens every numeric field/element
// value to f64 at the host boundary (JS numbers are f64-native already,
// so nothing is lost converting the other direction) and represents
// every non-GC heap object uniformly as {c: classIndex, f: [...]}, so a
// single pair of accessors (Num/Ref) covers both struct fields and array
// elements. i64 values above 2^53 lose precision crossing this boundary;
// GC mode, which never crosses it, does not share this limitation.
const (
	RTStructGetNum  = "structGetNum"
	RTStructGetRef  = "structGetRef"
	RTStructSetNum  = "structSetNum"
	RTStructSetRef  = "structSetRef"
	RTArrayGetNum   = "arrayGetNum"
	RTArrayGetRef   = "arrayGetRef"
	RTArraySetNum   = "arraySetNum"
	RTArraySetRef   = "arraySetRef"
	RTArrayLen      = "arrayLen"
	RTNewDefault    = "newDefault"
	RTGetClassIndex = "getClassIndex"

	// RTMaterializeString is registered unconditionally (spec.md §4's
	// string-pool note: a JVM string is never more than a compile-time
	// interned-table index, in GC mode or not), so a `ldc` of a string
	// constant always crosses to the host to obtain the live JS string
	// value; the JS glue sink embeds the interned table as literals so
	// this is a trivial array index.
	RTMaterializeString = "materializeString"

	// RTRefEq backs if_acmpeq/if_acmpne in non-GC mode: externref has no
	// core WASM equality instruction (ref.eq is GC-proposal only, and only
	// over the eqref hierarchy), so reference identity crosses to the host.
	// GC mode never registers this helper; it uses ref.eq directly.
	RTRefEq = "refEq"

	// RTFRem and RTDRem back frem/drem: neither core WASM nor the GC
	// proposal has a floating remainder instruction, in either allocation
	// mode, so both always cross to the host's `%`, which truncates
	// toward zero the same way Java's frem/drem do.
	RTFRem = "frem"
	RTDRem = "drem"
)

// RuntimeJSModule is the synthetic import module every runtime helper is
// bound to, mirrored by the JS glue sink's emitted object (spec.md §4.11).
const RuntimeJSModule = "j2w/rt"

// RuntimeFuncName returns the link.FuncName a runtime helper was
// registered under, for C9 to resolve against Module.Funcs.
func RuntimeFuncName(helper string) link.FuncName {
	return link.FuncName{Class: "$rt", Method: helper, Descriptor: "(rt)"}
}

type runtimeHelperSpec struct {
	name   string
	sig    wasmtype.FuncSig
	jsBody string
	// gcExempt: registered regardless of cfg.WasmUseGC. Every other entry
	// is non-GC-mode only: GC mode lowers struct/array ops to real
	// struct.get/struct.set/array.new_default instead.
	gcExempt bool
}

func runtimeHelperCatalog() []runtimeHelperSpec {
	num := wasmtype.F64
	ref := wasmtype.Externref
	i32 := wasmtype.I32
	return []runtimeHelperSpec{
		{
			name: RTStructGetNum,
			sig:  wasmtype.FuncSig{Params: []wasmtype.ValueType{ref, i32}, Results: []wasmtype.ValueType{num}},
			jsBody: "(r,i)=>r.f[i]",
		},
		{
			name: RTStructGetRef,
			sig:  wasmtype.FuncSig{Params: []wasmtype.ValueType{ref, i32}, Results: []wasmtype.ValueType{ref}},
			jsBody: "(r,i)=>r.f[i]",
		},
		{
			name: RTStructSetNum,
			sig:  wasmtype.FuncSig{Params: []wasmtype.ValueType{ref, i32, num}},
			jsBody: "(r,i,v)=>{r.f[i]=v}",
		},
		{
			name: RTStructSetRef,
			sig:  wasmtype.FuncSig{Params: []wasmtype.ValueType{ref, i32, ref}},
			jsBody: "(r,i,v)=>{r.f[i]=v}",
		},
		{
			name: RTArrayGetNum,
			sig:  wasmtype.FuncSig{Params: []wasmtype.ValueType{ref, i32}, Results: []wasmtype.ValueType{num}},
			jsBody: "(r,i)=>r.f[i]",
		},
		{
			name: RTArrayGetRef,
			sig:  wasmtype.FuncSig{Params: []wasmtype.ValueType{ref, i32}, Results: []wasmtype.ValueType{ref}},
			jsBody: "(r,i)=>r.f[i]",
		},
		{
			name: RTArraySetNum,
			sig:  wasmtype.FuncSig{Params: []wasmtype.ValueType{ref, i32, num}},
			jsBody: "(r,i,v)=>{r.f[i]=v}",
		},
		{
			name: RTArraySetRef,
			sig:  wasmtype.FuncSig{Params: []wasmtype.ValueType{ref, i32, ref}},
			jsBody: "(r,i,v)=>{r.f[i]=v}",
		},
		{
			name: RTArrayLen,
			sig:  wasmtype.FuncSig{Params: []wasmtype.ValueType{ref}, Results: []wasmtype.ValueType{i32}},
			jsBody: "(r)=>r.f.length",
		},
		{
			name: RTNewDefault,
			sig:  wasmtype.FuncSig{Params: []wasmtype.ValueType{i32, i32}, Results: []wasmtype.ValueType{ref}},
			jsBody: "(c,n)=>({c:c,f:new Array(n).fill(0)})",
		},
		{
			name: RTGetClassIndex,
			sig:  wasmtype.FuncSig{Params: []wasmtype.ValueType{ref}, Results: []wasmtype.ValueType{i32}},
			jsBody: "(r)=>r.c",
		},
		{
			name:     RTMaterializeString,
			sig:      wasmtype.FuncSig{Params: []wasmtype.ValueType{i32}, Results: []wasmtype.ValueType{ref}},
			jsBody:   "(i)=>__strings[i]",
			gcExempt: true,
		},
		{
			name: RTRefEq,
			sig:  wasmtype.FuncSig{Params: []wasmtype.ValueType{ref, ref}, Results: []wasmtype.ValueType{i32}},
			jsBody: "(a,b)=>a===b?1:0",
		},
		{
			name:     RTFRem,
			sig:      wasmtype.FuncSig{Params: []wasmtype.ValueType{wasmtype.F32, wasmtype.F32}, Results: []wasmtype.ValueType{wasmtype.F32}},
			jsBody:   "(a,b)=>a%b",
			gcExempt: true,
		},
		{
			name:     RTDRem,
			sig:      wasmtype.FuncSig{Params: []wasmtype.ValueType{wasmtype.F64, wasmtype.F64}, Results: []wasmtype.ValueType{wasmtype.F64}},
			jsBody:   "(a,b)=>a%b",
			gcExempt: true,
		},
	}
}

// registerRuntimeHelpers installs the non-GC-mode object model's host
// imports (and, regardless of mode, materializeString) into the function
// and JS-import tables, so they exist in the Module whether or not any
// body ends up calling one (spec.md §4.5: declaring an import costs
// nothing a body doesn't exercise).
func (c *Compiler) registerRuntimeHelpers() {
	for _, h := range runtimeHelperCatalog() {
		if !h.gcExempt && c.cfg.WasmUseGC {
			continue
		}
		name := RuntimeFuncName(h.name)
		c.funcs.Register(name, h.sig, link.FuncImported)
		_ = c.funcs.SetImport(name, RuntimeJSModule, h.name)
		c.jsImports = append(c.jsImports, JSImport{Module: RuntimeJSModule, Name: h.name, Body: h.jsBody})
	}
}
