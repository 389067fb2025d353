package translate

import (
	"testing"

	"github.com/jacobin-wasm/j2w/internal/classfile"
	"github.com/jacobin-wasm/j2w/internal/j2werr"
	"github.com/jacobin-wasm/j2w/internal/link"
	"github.com/jacobin-wasm/j2w/internal/wasmtype"
	"github.com/stretchr/testify/require"
)

func newContext() *Context {
	return &Context{
		CP:         &classfile.Pool{Entries: make([]classfile.Entry, 1)},
		Funcs:      link.NewFuncManager(),
		Types:      link.NewTypeTable(),
		Strings:    link.NewStringPool(),
		Static:     true,
		Descriptor: "()V",
	}
}

// TestConstAndReturn exercises bipush + ireturn end to end.
func TestConstAndReturn(t *testing.T) {
	code := &classfile.Code{Bytes: []byte{
		0x10, 0x2a, // bipush 42
		0xac, // ireturn
	}}
	res, err := Translate(code, nil, newContext())
	require.NoError(t, err)
	require.Len(t, res.Instructions, 2)
	require.Equal(t, OpConst, res.Instructions[0].Op)
	require.Equal(t, int32(42), res.Instructions[0].Const.I32)
	require.Equal(t, OpReturn, res.Instructions[1].Op)
	require.Equal(t, wasmtype.I32, res.Instructions[1].Type)
}

// TestArithmeticTypeMismatch checks that mixing an i32 and an f32 operand
// into iadd is rejected rather than silently accepted.
func TestArithmeticTypeMismatch(t *testing.T) {
	code := &classfile.Code{Bytes: []byte{
		0x0b, // fconst_0  -> push f32
		0x03, // iconst_0  -> push i32
		0x60, // iadd      -> expects two i32
	}}
	_, err := Translate(code, nil, newContext())
	require.Error(t, err)
	require.Equal(t, j2werr.KindTypeError, err.(*j2werr.Error).Kind())
}

// TestLongLocalSlotJoining verifies that lstore/lload into/from the same
// low slot reuse one WebAssembly local despite the JVM slot pair.
func TestLongLocalSlotJoining(t *testing.T) {
	code := &classfile.Code{Bytes: []byte{
		0x09,       // lconst_0
		0x37, 0x01, // lstore 1 (occupies JVM slots 1 and 2)
		0x16, 0x01, // lload 1
		0xad, // lreturn
	}}
	res, err := Translate(code, nil, newContext())
	require.NoError(t, err)
	require.Len(t, res.Locals.Types(), 1)
	require.Equal(t, wasmtype.I64, res.Locals.Types()[0])
}

// TestShiftOperandTypes verifies a long shifted by an i32 count does not
// require both operands to share one type.
func TestShiftOperandTypes(t *testing.T) {
	code := &classfile.Code{Bytes: []byte{
		0x09,       // lconst_0
		0x10, 0x02, // bipush 2
		0x79, // lshl
		0xad, // lreturn
	}}
	res, err := Translate(code, nil, newContext())
	require.NoError(t, err)
	last := res.Instructions[len(res.Instructions)-1]
	require.Equal(t, OpReturn, last.Op)
	require.Equal(t, wasmtype.I64, last.Type)
}

// TestGotoRawTarget checks that goto records an absolute offset target for
// the restructurer to later resolve into a break depth.
func TestGotoRawTarget(t *testing.T) {
	code := &classfile.Code{Bytes: []byte{
		0xa7, 0x00, 0x03, // goto +3 (offset 0 -> target 3)
		0x00, // nop (padding so target 3 lands past the goto)
	}}
	res, err := Translate(code, nil, newContext())
	require.NoError(t, err)
	require.Equal(t, OpBr, res.Instructions[0].Op)
	require.Equal(t, []int{3}, res.Instructions[0].RawTargets)
}

// TestInstanceFieldAccess verifies getfield/putfield resolve through the
// registered class's struct layout.
func TestInstanceFieldAccess(t *testing.T) {
	ctx := newContext()
	_, err := ctx.Types.Register("com/example/Point", link.KindNormal, "", nil, []wasmtype.StructField{
		{Name: "x", Type: wasmtype.I32},
	})
	require.NoError(t, err)

	cp := &classfile.Pool{Entries: []classfile.Entry{
		{}, // index 0 reserved
		{Tag: classfile.TagFieldref, ClassName: "com/example/Point", MemberName: "x", MemberDesc: "I"},
	}}
	ctx.CP = cp

	code := &classfile.Code{Bytes: []byte{
		0x01,       // aconst_null (stand-in receiver)
		0xb4, 0x00, 0x01, // getfield #1
		0xac, // ireturn
	}}
	res, err := Translate(code, nil, ctx)
	require.NoError(t, err)
	require.Equal(t, OpStruct, res.Instructions[1].Op)
	require.Equal(t, "get", res.Instructions[1].StructOp)
	require.Equal(t, 2, res.Instructions[1].StructField) // past $vtable, $class_index
}

// TestArrayLengthAndLoad exercises arraylength and iaload.
func TestArrayLengthAndLoad(t *testing.T) {
	code := &classfile.Code{Bytes: []byte{
		0x01,       // aconst_null (stand-in array ref)
		0xbe,       // arraylength
		0x01,       // aconst_null
		0x03,       // iconst_0
		0x2e,       // iaload
		0x60,       // iadd
		0xac,       // ireturn
	}}
	res, err := Translate(code, nil, newContext())
	require.NoError(t, err)
	require.Equal(t, OpArray, res.Instructions[1].Op)
	require.Equal(t, "len", res.Instructions[1].ArrayOp)
	require.Equal(t, OpArray, res.Instructions[4].Op)
	require.Equal(t, "get", res.Instructions[4].ArrayOp)
}

// TestInvokeDynamicEmitsCall verifies invokedynamic resolves via the
// InvokeDynamic constant pool entry and emits a call to a synthesized name.
func TestInvokeDynamicEmitsCall(t *testing.T) {
	ctx := newContext()
	cp := &classfile.Pool{Entries: []classfile.Entry{
		{},
		{Tag: classfile.TagInvokeDynamic, BootstrapIndex: 0, DynName: "run", DynDesc: "()V"},
	}}
	ctx.CP = cp

	code := &classfile.Code{Bytes: []byte{
		0xba, 0x00, 0x01, 0x00, 0x00, // invokedynamic #1, 0, 0
		0xb1, // return
	}}
	res, err := Translate(code, nil, ctx)
	require.NoError(t, err)
	require.Equal(t, OpCall, res.Instructions[0].Op)
	require.Contains(t, res.Instructions[0].CallFunc, "run")
}

// TestUnsupportedOpcodeIsTagged verifies an unrecognized byte surfaces as
// KindUnsupported with the offending offset in the message.
func TestUnsupportedOpcodeIsTagged(t *testing.T) {
	code := &classfile.Code{Bytes: []byte{0xfe}} // impdep1, never implemented
	_, err := Translate(code, nil, newContext())
	require.Error(t, err)
	var jerr *j2werr.Error
	require.ErrorAs(t, err, &jerr)
	require.Equal(t, j2werr.KindUnsupported, jerr.Kind())
	require.Contains(t, err.Error(), "offset 0")
}

// TestLineNumberAttachment verifies emitted instructions carry the nearest
// preceding source line.
func TestLineNumberAttachment(t *testing.T) {
	code := &classfile.Code{Bytes: []byte{
		0x03, // iconst_0  (offset 0)
		0x03, // iconst_0  (offset 1)
		0x60, // iadd      (offset 2)
		0xac, // ireturn   (offset 3)
	}}
	lines := []classfile.LineEntry{{Offset: 0, Line: 10}, {Offset: 2, Line: 11}}
	res, err := Translate(code, lines, newContext())
	require.NoError(t, err)
	require.Equal(t, 10, res.Instructions[0].Line)
	require.Equal(t, 10, res.Instructions[1].Line)
	require.Equal(t, 11, res.Instructions[2].Line)
	require.Equal(t, 11, res.Instructions[3].Line)
}
