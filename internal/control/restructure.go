// Package control turns the flat, raw-branch-target instruction list C3
// produces into the well-nested block/loop/if/try form WebAssembly requires
// (spec.md §4.4). It is grounded on the controlFrame/controlFrames design
// of the wazeroir compiler found in the knqyf263 fork of the teacher —
// generalized from "linear WASM opcodes in, wazeroir out" to "arbitrary JVM
// branch graph in, structured WASM out".
//
// wazeroir's compiler never has to invent block boundaries: the WASM input
// it walks is already structured, so its controlFrames stack only tracks
// frames opened by a source block/loop/if and closed by a matching end. A
// JVM method's bytecode carries no such markers, only raw (offset, target)
// edges, and a new wrapping block can be required by code that was already
// emitted before the branch needing it was discovered (the classic
// if/else shape: the `goto` past the else arm is only found after the
// `ifeq`'s own wrapping block has already been opened, yet it must end up
// OUTSIDE that block, not inside it). A single forward stack push can't
// express that reordering, so this package builds the nesting with a
// recursive descent instead: each recursive call decides the wrapping it
// needs before recursing into the content that wrapping encloses, which
// gets emission order right by construction. The frame-matching rule
// itself — a block resolves a branch to its end, a loop resolves a branch
// to its own header — is the same split wazeroir's asBranchTarget makes
// between LabelKindContinuation and LabelKindHeader.
package control

import (
	"sort"

	"github.com/jacobin-wasm/j2w/internal/classfile"
	"github.com/jacobin-wasm/j2w/internal/j2werr"
	"github.com/jacobin-wasm/j2w/internal/translate"
)

// ctxFrame is one enclosing construct visible to a branch being resolved.
// matchBlock is the block index a branch target must equal to resolve to
// this frame: for a block that is the frame's end (closing/"break" point);
// for a loop that is the frame's own header (the "continue" point).
type ctxFrame struct {
	isLoop     bool
	matchBlock int
}

// basicBlock is a maximal run of instructions with a single entry at its
// first instruction's offset.
type basicBlock struct {
	offset   int
	startIdx int
	endIdx   int // exclusive
}

// Restructure lowers one method's translated instruction list into nested
// block/loop/if/try form (spec.md §4.4). handlers is the method's exception
// table; pass nil for methods with none.
func Restructure(instrs []translate.Instruction, handlers []classfile.ExceptionHandler) ([]translate.Instruction, error) {
	instrs = degradeExceptions(instrs)

	blocks, offsetToBlock, err := splitBasicBlocks(instrs, handlers)
	if err != nil {
		return nil, err
	}
	b := &builder{
		instrs:        instrs,
		blocks:        blocks,
		offsetToBlock: offsetToBlock,
		loopExtent:    findLoopHeaders(instrs, blocks, offsetToBlock),
	}
	b.tryAt, b.handlerAt = indexTryRanges(resolveTryRanges(handlers, offsetToBlock))

	return b.restructureRange(0, len(blocks), nil)
}

// indexTryRanges builds the two lookup maps restructureRange needs: the
// try range (if any) starting at a given block index, and the catch type
// (if any) of a handler entry at a given block index.
func indexTryRanges(ranges []tryRange) (tryAt map[int]tryRange, handlerAt map[int]string) {
	tryAt = make(map[int]tryRange, len(ranges))
	handlerAt = make(map[int]string, len(ranges))
	for _, tr := range ranges {
		if _, exists := tryAt[tr.startBlock]; !exists {
			tryAt[tr.startBlock] = tr
		}
		handlerAt[tr.handlerBlock] = tr.catchType
	}
	return tryAt, handlerAt
}

// degradeExceptions applies spec.md §4.4's documented degradation mode:
// every athrow becomes an unconditional trap. It is the only exception
// lowering: no stage reads C7's wasm-use-eh configuration key, and no
// emitter renders real `try`/`catch`/`throw` WASM instructions — see
// DESIGN.md.
func degradeExceptions(in []translate.Instruction) []translate.Instruction {
	out := make([]translate.Instruction, len(in))
	copy(out, in)
	for i := range out {
		if out[i].Op == translate.OpThrow {
			out[i].Op = translate.OpUnreachable
		}
	}
	return out
}

// splitBasicBlocks partitions instrs by offset at every branch target,
// immediately after every branch/return/throw, and at every exception
// range boundary.
func splitBasicBlocks(instrs []translate.Instruction, handlers []classfile.ExceptionHandler) ([]basicBlock, map[int]int, error) {
	boundary := map[int]bool{0: true}
	for i, in := range instrs {
		switch in.Op {
		case translate.OpBr, translate.OpBrIf, translate.OpBrTable:
			for _, t := range in.RawTargets {
				boundary[t] = true
			}
			if i+1 < len(instrs) {
				boundary[instrs[i+1].Offset] = true
			}
		case translate.OpReturn, translate.OpUnreachable:
			if i+1 < len(instrs) {
				boundary[instrs[i+1].Offset] = true
			}
		}
	}
	for _, h := range handlers {
		boundary[h.StartPC] = true
		boundary[h.EndPC] = true
		boundary[h.HandlerPC] = true
	}

	offsets := make([]int, 0, len(boundary))
	for o := range boundary {
		offsets = append(offsets, o)
	}
	sort.Ints(offsets)

	blocks := make([]basicBlock, 0, len(offsets))
	offsetToBlock := make(map[int]int, len(offsets))
	idx := 0
	for bi, o := range offsets {
		start := idx
		for idx < len(instrs) && (bi+1 >= len(offsets) || instrs[idx].Offset < offsets[bi+1]) {
			idx++
		}
		blocks = append(blocks, basicBlock{offset: o, startIdx: start, endIdx: idx})
		offsetToBlock[o] = bi
	}
	if idx != len(instrs) {
		return nil, j2werr.New(j2werr.KindEmitError, "control: basic-block split did not cover the full instruction stream")
	}
	return blocks, offsetToBlock, nil
}

// findLoopHeaders identifies, for every block that is the target of a
// backward edge, the furthest block index any such edge reaches — the
// loop's extent (spec.md §4.4 step 2: "a back-edge (b→h) where h dominates
// b ... becomes a loop construct"). Reducible CFGs emitted by a standard
// compiler always have the back-edge target dominate its source, so this
// package does not compute a full dominator tree — it takes the
// backward-edge relationship itself (target index <= source index) as the
// loop signal, which is exactly the condition a dominator check would
// confirm for this class of input.
func findLoopHeaders(instrs []translate.Instruction, blocks []basicBlock, offsetToBlock map[int]int) map[int]int {
	extent := map[int]int{}
	for bi, b := range blocks {
		for i := b.startIdx; i < b.endIdx; i++ {
			in := instrs[i]
			if in.Op != translate.OpBr && in.Op != translate.OpBrIf && in.Op != translate.OpBrTable {
				continue
			}
			for _, t := range in.RawTargets {
				tb := offsetToBlock[t]
				if tb <= bi {
					if cur, ok := extent[tb]; !ok || bi > cur {
						extent[tb] = bi
					}
				}
			}
		}
	}
	return extent
}

type tryRange struct {
	startBlock, endBlock, handlerBlock int
	catchType                         string
}

// resolveTryRanges maps each exception handler onto basic-block indices.
// Overlapping/nested try ranges (two handlers sharing a start) are kept
// independent: restructureRange opens and closes them by index, which
// nests correctly as long as ranges are properly nested or disjoint —
// the only shape javac ever emits for a single try/catch/finally chain.
func resolveTryRanges(handlers []classfile.ExceptionHandler, offsetToBlock map[int]int) []tryRange {
	out := make([]tryRange, 0, len(handlers))
	for _, h := range handlers {
		start, ok1 := offsetToBlock[h.StartPC]
		end, ok2 := offsetToBlock[h.EndPC]
		handler, ok3 := offsetToBlock[h.HandlerPC]
		if !ok1 || !ok2 || !ok3 {
			continue
		}
		out = append(out, tryRange{startBlock: start, endBlock: end, handlerBlock: handler, catchType: h.CatchType})
	}
	// Outermost (widest) first; indexTryRanges keeps the first entry it
	// sees for a given start block, so a nested range sharing a start
	// offset with its enclosing range never shadows the outer one.
	sort.Slice(out, func(i, j int) bool {
		if out[i].startBlock != out[j].startBlock {
			return out[i].startBlock < out[j].startBlock
		}
		return out[i].endBlock > out[j].endBlock
	})
	return out
}
