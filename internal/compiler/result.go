package compiler

import (
	"github.com/jacobin-wasm/j2w/internal/link"
	"github.com/jacobin-wasm/j2w/internal/translate"
	"github.com/jacobin-wasm/j2w/internal/wasmtype"
)

// CompiledFunc is one function's fully lowered body, ready for C8/C9 to
// render. Exactly one of Instructions or WasmText is populated: a method
// annotated @WasmTextCode bypasses the translator entirely (spec.md §6).
type CompiledFunc struct {
	Name         link.FuncName
	Locals       []wasmtype.ValueType
	Instructions []translate.Instruction
	WasmText     string
	// SourceFile is the declaring class's SourceFile attribute, if any;
	// C10 needs it to emit the source map's per-mapping file index.
	SourceFile string
}

// JSImport is one @Import(...,js=...) annotation's literal JavaScript
// body, collected for the JS glue sink (spec.md §4.11/§6).
type JSImport struct {
	Module, Name, Body string
}

// Module is everything the text/binary/source-map/JS-glue sinks need to
// render a complete output (spec.md §4.7: "finalizes the string and type
// tables, the data segment, the function table, and the external-
// reference tables, then closes the emitter" — closing the emitter itself
// is C8/C9's responsibility, driven from this Module).
type Module struct {
	Funcs   *link.FuncManager
	Types   *link.TypeTable
	Strings *link.StringPool
	Data    *link.DataLayout

	// Bodies is keyed by link.FuncName.String().
	Bodies map[string]*CompiledFunc

	// WasmIndex maps a FuncEntry.ID to its real WebAssembly function-index-
	// space index (imports first). C8/C9 must use this, never FuncEntry.ID
	// directly, whenever they emit a call target, table element, or start
	// section index (see link.FuncManager.WasmIndexTable).
	WasmIndex []uint32

	// StartFunc is the FuncName.String() of the synthesized start
	// function (every reachable <clinit>, called in class-registration
	// order), or "" if no class in the reachable set declares one.
	StartFunc string

	JSImports []JSImport

	// Warnings surfaces non-fatal diagnostics, e.g. a class loaded from a
	// signed classpath archive whose signature is not verified (spec.md
	// §6's "[NEW] ... rejected for trust reasons without failing the
	// compilation").
	Warnings []string
}
