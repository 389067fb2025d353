package translate

import (
	"testing"

	"github.com/jacobin-wasm/j2w/internal/wasmtype"
	"github.com/stretchr/testify/require"
)

func TestArithmeticOpTable(t *testing.T) {
	numOp, typ, ok := arithmeticOp(opLMul)
	require.True(t, ok)
	require.Equal(t, NumMul, numOp)
	require.Equal(t, wasmtype.I64, typ)

	_, _, ok = arithmeticOp(opIShl) // shifts live in isShiftOp, not here
	require.False(t, ok)
}

func TestShiftOpTable(t *testing.T) {
	numOp, typ, ok := isShiftOp(opLUshr)
	require.True(t, ok)
	require.Equal(t, NumShrU, numOp)
	require.Equal(t, wasmtype.I64, typ)
}

func TestConvertOpTable(t *testing.T) {
	kind, from, to, ok := convertOp(opD2F)
	require.True(t, ok)
	require.Equal(t, CvtD2F, kind)
	require.Equal(t, wasmtype.F64, from)
	require.Equal(t, wasmtype.F32, to)
}

func TestLoadSlotInfoShorthandVsExplicit(t *testing.T) {
	typ, slot := loadSlotInfo(opILoad0+2, func() int { return 99 })
	require.Equal(t, wasmtype.I32, typ)
	require.Equal(t, 2, slot)

	typ, slot = loadSlotInfo(opILoad, func() int { return 7 })
	require.Equal(t, wasmtype.I32, typ)
	require.Equal(t, 7, slot)
}

func TestIsCondBranchCoversAllForms(t *testing.T) {
	require.True(t, isCondBranch(opIfEq))
	require.True(t, isCondBranch(opIfICmpLe))
	require.True(t, isCondBranch(opIfACmpNe))
	require.True(t, isCondBranch(opIfnull))
	require.False(t, isCondBranch(opGoto))
}
