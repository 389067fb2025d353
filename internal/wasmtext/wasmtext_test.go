package wasmtext

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jacobin-wasm/j2w/internal/compiler"
	"github.com/jacobin-wasm/j2w/internal/link"
	"github.com/jacobin-wasm/j2w/internal/translate"
	"github.com/jacobin-wasm/j2w/internal/wasmtype"
)

func TestRenderSimpleFunction(t *testing.T) {
	funcs := link.NewFuncManager()
	sig := wasmtype.FuncSig{Params: []wasmtype.ValueType{wasmtype.I32}, Results: []wasmtype.ValueType{wasmtype.I32}}
	name := link.FuncName{Class: "Main", Method: "identity", Descriptor: "(I)I"}
	entry := funcs.Register(name, sig, link.FuncCode)
	require.NoError(t, funcs.SetExport(name, "identity"))

	mod := &compiler.Module{
		Funcs: funcs,
		Bodies: map[string]*compiler.CompiledFunc{
			name.String(): {
				Name:   name,
				Locals: []wasmtype.ValueType{wasmtype.I32},
				Instructions: []translate.Instruction{
					{Op: translate.OpLocalGet, LocalIdx: 0},
					{Op: translate.OpReturn},
				},
			},
		},
		WasmIndex: []uint32{0},
	}
	_ = entry

	cfg := compiler.NewConfig()
	out, err := Render(mod, cfg, "")
	require.NoError(t, err)
	require.Contains(t, out, "(module\n")
	require.Contains(t, out, `(export "identity" (func $f0))`)
	require.Contains(t, out, "(func $f0 (param i32) (result i32)")
	require.Contains(t, out, "(local.get $l0)")
	require.Contains(t, out, "(return)")
}

func TestRenderDebugNamesUsesQualifiedIdentifiers(t *testing.T) {
	funcs := link.NewFuncManager()
	sig := wasmtype.FuncSig{}
	name := link.FuncName{Class: "Main", Method: "run", Descriptor: "()V"}
	funcs.Register(name, sig, link.FuncCode)

	mod := &compiler.Module{
		Funcs: funcs,
		Bodies: map[string]*compiler.CompiledFunc{
			name.String(): {Name: name, Instructions: []translate.Instruction{{Op: translate.OpReturn}}},
		},
		WasmIndex: []uint32{0},
	}

	cfg := compiler.NewConfig()
	cfg.DebugNames = true
	out, err := Render(mod, cfg, "")
	require.NoError(t, err)
	require.Contains(t, out, "(func $Main_run__V")
}

func TestRenderSourceMapURLTrailer(t *testing.T) {
	mod := &compiler.Module{Funcs: link.NewFuncManager(), Bodies: map[string]*compiler.CompiledFunc{}}
	out, err := Render(mod, compiler.NewConfig(), "out.wasm.map")
	require.NoError(t, err)
	require.Contains(t, out, ";; @sourceMappingURL=out.wasm.map")
}
