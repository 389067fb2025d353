package link

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jacobin-wasm/j2w/internal/wasmtype"
)

func TestRegisterDedupsFunctionType(t *testing.T) {
	fm := NewFuncManager()
	sig := wasmtype.FuncSig{Params: []wasmtype.ValueType{wasmtype.I32, wasmtype.I32}, Results: []wasmtype.ValueType{wasmtype.I32}}

	a := fm.Register(FuncName{Class: "Foo", Method: "add", Descriptor: "(II)I"}, sig, FuncCode)
	b := fm.Register(FuncName{Class: "Bar", Method: "sum", Descriptor: "(II)I"}, sig, FuncCode)

	require.Equal(t, a.TypeID, b.TypeID)
	require.Len(t, fm.Types(), 1)
	require.Equal(t, uint32(0), a.ID)
	require.Equal(t, uint32(1), b.ID)
}

func TestSetExportDefaultsToMethodName(t *testing.T) {
	fm := NewFuncManager()
	name := FuncName{Class: "Foo", Method: "add", Descriptor: "(II)I"}
	fm.Register(name, wasmtype.FuncSig{}, FuncCode)
	require.NoError(t, fm.SetExport(name, ""))
	require.Equal(t, "add", fm.Lookup(name).ExportName)
}

func TestSetExportUnregisteredFails(t *testing.T) {
	fm := NewFuncManager()
	err := fm.SetExport(FuncName{Class: "Foo", Method: "missing"}, "")
	require.Error(t, err)
}
