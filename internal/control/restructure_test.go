package control

import (
	"testing"

	"github.com/jacobin-wasm/j2w/internal/classfile"
	"github.com/jacobin-wasm/j2w/internal/j2werr"
	"github.com/jacobin-wasm/j2w/internal/translate"
	"github.com/stretchr/testify/require"
)

// br builds an unconditional-branch instruction at offset off targeting
// target, occupying width bytes (so the following instruction's Offset is
// off+width, matching what C3 would have produced).
func br(op translate.Op, off, width int, targets ...int) translate.Instruction {
	return translate.Instruction{Op: op, Offset: off, RawTargets: targets}
}

func findEnds(instrs []translate.Instruction) (blocks, ends int) {
	for _, in := range instrs {
		switch in.Op {
		case translate.OpBlock:
			blocks++
		case translate.OpEnd:
			ends++
		}
	}
	return
}

// TestIfElse exercises the classic ifeq/goto/else/join shape (spec.md §4.4
// step 3's forward-branch case): the `goto` past the else arm must end up
// wrapping the same then-region as the `ifeq`, even though it is found one
// basic block after it.
func TestIfElse(t *testing.T) {
	instrs := []translate.Instruction{
		{Op: translate.OpConst, Offset: 0},
		br(translate.OpBrIf, 1, 1, 4), // ifeq -> else at offset 4
		{Op: translate.OpConst, Offset: 2},
		br(translate.OpBr, 3, 1, 5), // goto -> join at offset 5
		{Op: translate.OpConst, Offset: 4},
		{Op: translate.OpReturn, Offset: 5},
	}

	out, err := Restructure(instrs, nil)
	require.NoError(t, err)

	blocks, ends := findEnds(out)
	require.Equal(t, 2, blocks)
	require.Equal(t, 2, ends)

	var ifIdx, gotoIdx int
	for i, in := range out {
		switch in.Op {
		case translate.OpBrIf:
			ifIdx = i
		case translate.OpBr:
			gotoIdx = i
		}
	}
	require.Equal(t, 0, out[ifIdx].BreakDepth, "ifeq resolves to the innermost (else-skip) block")
	require.Equal(t, 1, out[gotoIdx].BreakDepth, "goto resolves to the outer (join) block")

	// Structural order: outer OpBlock, inner OpBlock, ..., inner OpEnd,
	// else-body, outer OpEnd, join.
	require.Equal(t, translate.OpBlock, out[0].Op)
	require.Equal(t, translate.OpBlock, out[1].Op)
}

// TestIfNoElse covers a bare ifeq with no else arm: a single new block
// wraps just the then-region, with no goto involved.
func TestIfNoElse(t *testing.T) {
	instrs := []translate.Instruction{
		{Op: translate.OpConst, Offset: 0},
		br(translate.OpBrIf, 1, 1, 3), // ifeq -> join at offset 3
		{Op: translate.OpConst, Offset: 2},
		{Op: translate.OpReturn, Offset: 3},
	}

	out, err := Restructure(instrs, nil)
	require.NoError(t, err)

	blocks, ends := findEnds(out)
	require.Equal(t, 1, blocks)
	require.Equal(t, 1, ends)

	for _, in := range out {
		if in.Op == translate.OpBrIf {
			require.Equal(t, 0, in.BreakDepth)
		}
	}
}

// TestLoop covers a natural loop with a forward exit: a back-edge to the
// header becomes a loop, the forward exit becomes the wrapping block
// (spec.md §4.4 step 2).
func TestLoop(t *testing.T) {
	instrs := []translate.Instruction{
		{Op: translate.OpConst, Offset: 0}, // loop header
		br(translate.OpBrIf, 1, 1, 4),      // exit condition -> past the loop
		{Op: translate.OpConst, Offset: 2},
		br(translate.OpBr, 3, 1, 0), // back-edge to header
		{Op: translate.OpReturn, Offset: 4},
	}

	out, err := Restructure(instrs, nil)
	require.NoError(t, err)

	var sawLoop bool
	var exitDepth, backDepth = -1, -1
	for _, in := range out {
		if in.Op == translate.OpBlock && in.BlockKind == translate.BlockLoop {
			sawLoop = true
		}
		if in.Op == translate.OpBrIf {
			exitDepth = in.BreakDepth
		}
		if in.Op == translate.OpBr {
			backDepth = in.BreakDepth
		}
	}
	require.True(t, sawLoop, "expected a BlockLoop-kind block")
	require.Equal(t, 1, exitDepth, "exit branch breaks out of the wrapping block, past the loop")
	require.Equal(t, 0, backDepth, "back-edge continues the loop, the innermost frame")
}

// TestTableSwitch covers a multi-way branch lowering to nested blocks plus
// a single br_table (spec.md §4.4 step 5).
func TestTableSwitch(t *testing.T) {
	// Four case bodies (offsets 2, 4, 6, 8), each falling through to a
	// shared join at offset 9; a br_table at offset 1 picks among them.
	instrs := []translate.Instruction{
		{Op: translate.OpConst, Offset: 0},
		br(translate.OpBrTable, 1, 1, 2, 4, 6, 8), // cases 0,1,2 + default
		{Op: translate.OpConst, Offset: 2},
		br(translate.OpBr, 3, 1, 9),
		{Op: translate.OpConst, Offset: 4},
		br(translate.OpBr, 5, 1, 9),
		{Op: translate.OpConst, Offset: 6},
		br(translate.OpBr, 7, 1, 9),
		{Op: translate.OpConst, Offset: 8},
		{Op: translate.OpReturn, Offset: 9},
	}

	out, err := Restructure(instrs, nil)
	require.NoError(t, err)

	for _, in := range out {
		if in.Op == translate.OpBrTable {
			require.Len(t, in.BrTableTargets, 4)
			require.Equal(t, []int{0, 1, 2, 3}, in.BrTableTargets, "default is the last entry")
		}
	}
}

// TestExceptionDegradation verifies the documented degraded exception-
// handling mode (spec.md §4.4 step 6): athrow becomes unreachable, the
// protected range is wrapped in a BlockTry, and the handler entry gets a
// documentary OpCatch marker.
func TestExceptionDegradation(t *testing.T) {
	instrs := []translate.Instruction{
		{Op: translate.OpConst, Offset: 0},
		{Op: translate.OpThrow, Offset: 1},
		{Op: translate.OpConst, Offset: 2}, // handler body
		{Op: translate.OpReturn, Offset: 3},
	}
	handlers := []classfile.ExceptionHandler{
		{StartPC: 0, EndPC: 2, HandlerPC: 2, CatchType: "java/lang/Exception"},
	}

	out, err := Restructure(instrs, handlers)
	require.NoError(t, err)

	var sawTry, sawCatch, sawThrow bool
	for _, in := range out {
		if in.Op == translate.OpBlock && in.BlockKind == translate.BlockTry {
			sawTry = true
		}
		if in.Op == translate.OpCatch {
			sawCatch = true
			require.Equal(t, "java/lang/Exception", in.GlobalID)
		}
		if in.Op == translate.OpThrow {
			sawThrow = true
		}
	}
	require.True(t, sawTry)
	require.True(t, sawCatch)
	require.False(t, sawThrow, "athrow must be rewritten to unreachable")
}

// TestBranchEscapesTryRejected checks that a forward branch jumping past
// the end of its own protected try region -- escaping the structured
// block that region must become -- is rejected rather than silently
// producing a malformed module.
func TestBranchEscapesTryRejected(t *testing.T) {
	instrs := []translate.Instruction{
		{Op: translate.OpConst, Offset: 0},
		br(translate.OpBr, 1, 1, 3), // escapes the try region ending at offset 2
		{Op: translate.OpConst, Offset: 2},
		{Op: translate.OpReturn, Offset: 3},
	}
	handlers := []classfile.ExceptionHandler{
		{StartPC: 0, EndPC: 2, HandlerPC: 2, CatchType: "X"},
	}

	_, err := Restructure(instrs, handlers)
	require.Error(t, err)
	var jerr *j2werr.Error
	require.ErrorAs(t, err, &jerr)
	require.Equal(t, j2werr.KindUnsupported, jerr.Kind())
}
