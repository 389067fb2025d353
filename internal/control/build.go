package control

import (
	"sort"

	"github.com/jacobin-wasm/j2w/internal/j2werr"
	"github.com/jacobin-wasm/j2w/internal/translate"
)

// builder holds the per-method data the recursive descent consults at
// every level; only ctx (the list of enclosing frames) changes between
// recursive calls.
type builder struct {
	instrs        []translate.Instruction
	blocks        []basicBlock
	offsetToBlock map[int]int
	loopExtent    map[int]int // loop-header block index -> furthest block index a back-edge reaches
	tryAt         map[int]tryRange
	handlerAt     map[int]string
}

// restructureRange lowers the basic blocks [lo, hi) into nested
// block/loop/try form, resolving every branch inside against ctx (the
// frames already open at this point) plus whatever new frames it must
// introduce for forward branches not yet covered (spec.md §4.4 step 3).
//
// At each position it first looks ahead across the *entire* remaining
// [i, hi) span for forward branch targets ctx does not already cover,
// rather than only the block at i: a wrapping block's opening token must
// be emitted before any code it encloses, including code from a later
// block than the one whose branch required it (the if/else shape — the
// `goto` past the else arm lives in the *then* block, one block after the
// `ifeq`, but both wrap the same then-region together). Collecting every
// such target over the whole span before emitting anything gets that
// ordering right.
func (b *builder) restructureRange(lo, hi int, ctx []ctxFrame) ([]translate.Instruction, error) {
	var out []translate.Instruction
	i := lo
	for i < hi {
		if catchType, ok := b.handlerAt[i]; ok {
			out = append(out, translate.Instruction{Op: translate.OpCatch, GlobalID: catchType, Line: b.blockLine(i)})
		}

		// A loop header's own exit branch looks, to scanNeeds, like a
		// forward target nothing encloses yet — exactly the signal that
		// normally means "build a new block". It must be special-cased
		// here, ahead of scanNeeds, or the exit would get wrapped in a
		// plain block instead of becoming the loop's break target.
		// ctxHasLoop guards the recursive call this case makes into its
		// own [i, loopEnd) body: that call starts back at the same header
		// i, and without the guard it would see loopExtent[i] again and
		// recurse forever.
		if extent, ok := b.loopExtent[i]; ok && extent+1 <= hi && !ctxHasLoop(ctx, i) {
			loopEnd := extent + 1
			body, err := b.restructureRange(i, loopEnd, append(cloneCtx(ctx),
				ctxFrame{matchBlock: loopEnd},
				ctxFrame{isLoop: true, matchBlock: i},
			))
			if err != nil {
				return nil, err
			}
			out = append(out, translate.Instruction{Op: translate.OpBlock, BlockKind: translate.BlockPlain})
			out = append(out, translate.Instruction{Op: translate.OpBlock, BlockKind: translate.BlockLoop})
			out = append(out, body...)
			out = append(out, translate.Instruction{Op: translate.OpEnd}) // closes the loop
			out = append(out, translate.Instruction{Op: translate.OpEnd}) // closes the wrapping block
			i = loopEnd
			continue
		}

		// Same re-entrancy hazard as the loop case above: the recursive
		// call below re-enters restructureRange at this same i, so the
		// guard keeps it from reopening the try block it is still in the
		// middle of building.
		if tr, ok := b.tryAt[i]; ok && tr.endBlock <= hi && !ctxHasFrame(ctx, tr.endBlock) {
			body, err := b.restructureRange(i, tr.endBlock, append(cloneCtx(ctx), ctxFrame{matchBlock: tr.endBlock}))
			if err != nil {
				return nil, err
			}
			out = append(out, translate.Instruction{Op: translate.OpBlock, BlockKind: translate.BlockTry})
			out = append(out, body...)
			out = append(out, translate.Instruction{Op: translate.OpEnd})
			i = tr.endBlock
			continue
		}

		need, err := b.scanNeeds(i, hi, ctx)
		if err != nil {
			return nil, err
		}
		if len(need) > 0 {
			wrapped, err := b.buildNestedChain(i, need, ctx)
			if err != nil {
				return nil, err
			}
			out = append(out, wrapped...)
			i = need[len(need)-1]
			continue
		}

		body, err := b.emitResolved(b.blocks[i], ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, body...)
		i++
	}
	return out, nil
}

// ctxHasLoop reports whether ctx already has an open loop frame matching
// header block i.
func ctxHasLoop(ctx []ctxFrame, i int) bool {
	for _, f := range ctx {
		if f.isLoop && f.matchBlock == i {
			return true
		}
	}
	return false
}

// ctxHasFrame reports whether ctx already has any frame (block, loop, or
// try) closing at block index target.
func ctxHasFrame(ctx []ctxFrame, target int) bool {
	for _, f := range ctx {
		if f.matchBlock == target {
			return true
		}
	}
	return false
}

// scanNeeds returns the distinct forward branch targets of any block's
// trailing branch in [from, hi) that ctx does not already cover, sorted
// ascending. A target that is neither resolvable against ctx nor
// reachable by a new block nested within [from, hi) is an irreducible
// edge this restructurer does not handle (spec.md §4.4 names only the
// reducible forms: natural loops and LCA-nestable forward branches).
func (b *builder) scanNeeds(from, hi int, ctx []ctxFrame) ([]int, error) {
	seen := map[int]bool{}
	var out []int
	for bi := from; bi < hi; bi++ {
		blk := b.blocks[bi]
		if blk.endIdx == blk.startIdx {
			continue
		}
		last := b.instrs[blk.endIdx-1]
		if last.Op != translate.OpBr && last.Op != translate.OpBrIf && last.Op != translate.OpBrTable {
			continue
		}
		for _, t := range last.RawTargets {
			tb := b.offsetToBlock[t]
			if _, ok := resolveCtx(ctx, tb); ok {
				continue
			}
			if tb <= bi {
				// A loop back-edge, or genuinely irreducible; either way it
				// is not this level's concern — the loop-header branch
				// above will recurse with a ctx that resolves it, and a
				// bogus backward edge surfaces as an error there instead.
				continue
			}
			if tb > hi {
				return nil, j2werr.New(j2werr.KindUnsupported, "control: branch target escapes its enclosing structured region").At(last.Line)
			}
			if !seen[tb] {
				seen[tb] = true
				out = append(out, tb)
			}
		}
	}
	sort.Ints(out)
	return out, nil
}

// buildNestedChain wraps [lo, boundaries[last]) in len(boundaries) nested
// blocks, innermost closing at boundaries[0], so that a branch reaching
// several distinct new targets at once (the switch/br_table case; spec.md
// §4.4 step 5) gets one cleanly nested block per distinct target.
func (b *builder) buildNestedChain(lo int, boundaries []int, ctx []ctxFrame) ([]translate.Instruction, error) {
	target := boundaries[len(boundaries)-1]
	innerCtx := append(cloneCtx(ctx), ctxFrame{matchBlock: target})

	var body []translate.Instruction
	if len(boundaries) == 1 {
		b2, err := b.restructureRange(lo, target, innerCtx)
		if err != nil {
			return nil, err
		}
		body = b2
	} else {
		inner, err := b.buildNestedChain(lo, boundaries[:len(boundaries)-1], innerCtx)
		if err != nil {
			return nil, err
		}
		rest, err := b.restructureRange(boundaries[len(boundaries)-2], target, innerCtx)
		if err != nil {
			return nil, err
		}
		body = append(inner, rest...)
	}

	out := make([]translate.Instruction, 0, len(body)+2)
	out = append(out, translate.Instruction{Op: translate.OpBlock, BlockKind: translate.BlockPlain})
	out = append(out, body...)
	out = append(out, translate.Instruction{Op: translate.OpEnd})
	return out, nil
}

// emitResolved appends blk's instructions verbatim, filling in BreakDepth
// (Br/BrIf) or BrTableTargets (BrTable) from ctx for its trailing branch,
// if any.
func (b *builder) emitResolved(blk basicBlock, ctx []ctxFrame) ([]translate.Instruction, error) {
	out := make([]translate.Instruction, 0, blk.endIdx-blk.startIdx)
	for i := blk.startIdx; i < blk.endIdx; i++ {
		in := b.instrs[i]
		switch in.Op {
		case translate.OpBr, translate.OpBrIf:
			depth, ok := resolveCtx(ctx, b.offsetToBlock[in.RawTargets[0]])
			if !ok {
				return nil, j2werr.New(j2werr.KindEmitError, "control: branch target resolved neither to a new frame nor an enclosing one").At(in.Line)
			}
			in.BreakDepth = depth
			in.RawTargets = nil
		case translate.OpBrTable:
			targets := make([]int, len(in.RawTargets))
			for k, t := range in.RawTargets {
				depth, ok := resolveCtx(ctx, b.offsetToBlock[t])
				if !ok {
					return nil, j2werr.New(j2werr.KindEmitError, "control: br_table target resolved neither to a new frame nor an enclosing one").At(in.Line)
				}
				targets[k] = depth
			}
			in.BrTableTargets = targets
			in.RawTargets = nil
		}
		out = append(out, in)
	}
	return out, nil
}

// resolveCtx searches ctx innermost-first for a frame matching target,
// returning its WebAssembly break depth (0 = innermost).
func resolveCtx(ctx []ctxFrame, target int) (int, bool) {
	for i := len(ctx) - 1; i >= 0; i-- {
		if ctx[i].matchBlock == target {
			return len(ctx) - 1 - i, true
		}
	}
	return 0, false
}

func cloneCtx(ctx []ctxFrame) []ctxFrame {
	out := make([]ctxFrame, len(ctx), len(ctx)+2)
	copy(out, ctx)
	return out
}

// blockLine returns the source line of the first instruction of block bi,
// for error/OpCatch-marker attachment; 0 if the block is empty or out of
// range.
func (b *builder) blockLine(bi int) int {
	if bi < 0 || bi >= len(b.blocks) {
		return 0
	}
	blk := b.blocks[bi]
	if blk.startIdx >= blk.endIdx {
		return 0
	}
	return b.instrs[blk.startIdx].Line
}
