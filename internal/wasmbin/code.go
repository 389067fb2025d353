package wasmbin

import (
	"bytes"
	"math"

	"github.com/jacobin-wasm/j2w/internal/compiler"
	"github.com/jacobin-wasm/j2w/internal/j2werr"
	"github.com/jacobin-wasm/j2w/internal/leb128"
	"github.com/jacobin-wasm/j2w/internal/translate"
	"github.com/jacobin-wasm/j2w/internal/wasmtype"
)

// Core instruction opcodes (spec.md §6, component C9), named the way the
// teacher's own instruction tables are: one named byte constant per opcode
// actually emitted here, not a transcription of the whole spec.
const (
	opUnreachable = 0x00
	opBlock       = 0x02
	opLoop        = 0x03
	opIf          = 0x04
	opElseIns     = 0x05
	opBr          = 0x0c
	opBrIf        = 0x0d
	opBrTable     = 0x0e
	opReturn      = 0x0f
	opCall        = 0x10
	opCallIndirect = 0x11
	opDrop        = 0x1a
	opSelect      = 0x1b
	opLocalGet    = 0x20
	opLocalSet    = 0x21
	opLocalTee    = 0x22
	opGlobalGet   = 0x23
	opGlobalSet   = 0x24
	opI32Load     = 0x28
	opI32Store    = 0x36
	opEnd         = 0x0b

	blocktypeEmpty = 0x40

	opRefNull   = 0xd0
	opRefIsNull = 0xd1
	opRefEqOp   = 0xd3

	opI32Const = 0x41
	opI64Const = 0x42
	opF32Const = 0x43
	opF64Const = 0x44

	opI32Eqz = 0x45
	opI32Eq  = 0x46
	opI32Ne  = 0x47
	opI32LtS = 0x48
	opI32GtS = 0x4a
	opI32LeS = 0x4c
	opI32GeS = 0x4e

	opI64Eqz = 0x50
	opI64Eq  = 0x51
	opI64Ne  = 0x52
	opI64LtS = 0x53
	opI64GtS = 0x55
	opI64LeS = 0x57
	opI64GeS = 0x59

	opF32Eq = 0x5b
	opF32Ne = 0x5c
	opF32Lt = 0x5d
	opF32Gt = 0x5e
	opF32Le = 0x5f
	opF32Ge = 0x60

	opF64Eq = 0x61
	opF64Ne = 0x62
	opF64Lt = 0x63
	opF64Gt = 0x64
	opF64Le = 0x65
	opF64Ge = 0x66

	opI32Add  = 0x6a
	opI32Sub  = 0x6b
	opI32Mul  = 0x6c
	opI32DivS = 0x6d
	opI32RemS = 0x6f
	opI32And  = 0x71
	opI32Or   = 0x72
	opI32Xor  = 0x73
	opI32Shl  = 0x74
	opI32ShrS = 0x75
	opI32ShrU = 0x76

	opI64Add  = 0x7c
	opI64Sub  = 0x7d
	opI64Mul  = 0x7e
	opI64DivS = 0x7f
	opI64RemS = 0x81
	opI64And  = 0x83
	opI64Or   = 0x84
	opI64Xor  = 0x85
	opI64Shl  = 0x86
	opI64ShrS = 0x87
	opI64ShrU = 0x88

	opF32Neg = 0x8c
	opF32Add = 0x92
	opF32Sub = 0x93
	opF32Mul = 0x94
	opF32Div = 0x95

	opF64Neg = 0x9a
	opF64Add = 0xa0
	opF64Sub = 0xa1
	opF64Mul = 0xa2
	opF64Div = 0xa3

	opI32WrapI64      = 0xa7
	opI32TruncF32S    = 0xa8
	opI32TruncF64S    = 0xaa
	opI64ExtendI32S   = 0xac
	opI64ExtendI32U   = 0xad
	opI64TruncF32S    = 0xae
	opI64TruncF64S    = 0xb0
	opF32ConvertI32S  = 0xb2
	opF32ConvertI64S  = 0xb4
	opF32DemoteF64    = 0xb6
	opF64ConvertI32S  = 0xb7
	opF64ConvertI64S  = 0xb9
	opF64PromoteF32   = 0xbb
	opI32ReinterpretF32 = 0xbc
	opI64ReinterpretF64 = 0xbd
	opF32ReinterpretI32 = 0xbe
	opF64ReinterpretI64 = 0xbf

	opI32Extend8S  = 0xc0
	opI32Extend16S = 0xc1

	// GC proposal instructions (prefix 0xfb), MVP subset (spec.md §4's
	// WasmUseGC mode).
	gcPrefix           = 0xfb
	gcStructNewDefault = 0x01
	gcStructGet        = 0x02
	gcStructSet        = 0x05
	gcArrayNewDefault  = 0x07
	gcArrayGet         = 0x0b
	gcArraySet         = 0x0e
	gcArrayLen         = 0x0f
	gcRefCast          = 0x16

	// CondOp values: the JVM opcode byte carried verbatim onto OpBrIf (see
	// translate.Instruction.CondOp's doc comment), mirrored here since
	// internal/translate's own opcode constants are unexported.
	condIfEq      = 0x99
	condIfNe      = 0x9a
	condIfLt      = 0x9b
	condIfGe      = 0x9c
	condIfGt      = 0x9d
	condIfLe      = 0x9e
	condIfICmpEq  = 0x9f
	condIfICmpNe  = 0xa0
	condIfICmpLt  = 0xa1
	condIfICmpGe  = 0xa2
	condIfICmpGt  = 0xa3
	condIfICmpLe  = 0xa4
	condIfACmpEq  = 0xa5
	condIfACmpNe  = 0xa6
	condIfNull    = 0xc6
	condIfNonNull = 0xc7
)

// gcOp emits a GC-proposal instruction: the 0xfb prefix byte, its
// subopcode, then any ULEB128-encoded immediates (a type index, a field
// index, or both).
func (fb *funcBody) gcOp(sub byte, args ...uint32) {
	fb.buf.WriteByte(gcPrefix)
	fb.buf.WriteByte(sub)
	for _, a := range args {
		fb.buf.Write(leb128.EncodeUint32(a))
	}
}

func isRefType(t wasmtype.ValueType) bool {
	return t == wasmtype.StructRef || t == wasmtype.ArrayRef || t == wasmtype.Externref
}

// widenToF64 converts the top-of-stack numeric value (native JVM width) to
// the f64 every non-GC runtime accessor speaks (internal/compiler/runtime.go's
// object-model note). A no-op for F64 itself.
func (fb *funcBody) widenToF64(t wasmtype.ValueType) {
	switch t {
	case wasmtype.I32:
		fb.op(opF64ConvertI32S)
	case wasmtype.I64:
		fb.op(opF64ConvertI64S)
	case wasmtype.F32:
		fb.op(opF64PromoteF32)
	}
}

// narrowFromF64 is widenToF64's inverse, applied to a non-GC accessor's f64
// return value before it is used as the JVM's native width.
func (fb *funcBody) narrowFromF64(t wasmtype.ValueType) {
	switch t {
	case wasmtype.I32:
		fb.op(opI32TruncF64S)
	case wasmtype.I64:
		fb.op(opI64TruncF64S)
	case wasmtype.F32:
		fb.op(opF32DemoteF64)
	}
}

func encodeF32(v float32) []byte {
	bits := math.Float32bits(v)
	return []byte{byte(bits), byte(bits >> 8), byte(bits >> 16), byte(bits >> 24)}
}

func encodeF64(v float64) []byte {
	bits := math.Float64bits(v)
	out := make([]byte, 8)
	for i := 0; i < 8; i++ {
		out[i] = byte(bits >> (8 * i))
	}
	return out
}

// heapType picks the ref.null immediate matching t's wire encoding.
func (e *emitter) heapType(t wasmtype.ValueType) byte {
	switch t {
	case wasmtype.StructRef:
		if e.cfg.WasmUseGC {
			return vtStructref
		}
		return vtExternref
	case wasmtype.ArrayRef:
		if e.cfg.WasmUseGC {
			return vtArrayref
		}
		return vtExternref
	default:
		return vtExternref
	}
}

// headerTypeIdx is the canonical GC struct type C9 casts a receiver to when
// it only needs to read the two hidden header fields every class shares at
// slots 0/1 ($vtable, $class_index): since those two fields have the same
// name and type (i32, i32) at the same position in every registered
// class's layout (link.TypeTable.Register prepends them unconditionally),
// any concrete struct type index validates a struct.get of field 0 or 1
// exactly the same way, so the first registered class's type serves as a
// stand-in rather than carrying per-call-site concrete type information
// the translator never tracks.
func (e *emitter) headerTypeIdx() uint32 {
	if len(e.structTypeIdx) == 0 {
		return 0
	}
	return e.structTypeIdx[0]
}

// funcBody is the per-function encoding scratchpad: the scratch-local pool
// layout plus the running byte buffer and source-map collector.
type funcBody struct {
	e           *emitter
	buf         bytes.Buffer
	mappings    []Mapping
	sourceFile  string
	scratchBase map[scratchKind]uint32
	numParams   int
}

// scratchNeeds computes, for each scratchKind, the most scratch locals of
// that kind any single instruction site in instrs needs simultaneously.
// Sites never nest (this IR is a flat stack machine: every operand a site
// consumes was already fully evaluated by earlier instructions), so one
// pool sized to the per-function max, reused site by site, is both
// sufficient and minimal.
func (e *emitter) scratchNeeds(instrs []translate.Instruction) map[scratchKind]int {
	needs := make(map[scratchKind]int, int(numScratchKinds))
	bump := func(k scratchKind, n int) {
		if n > needs[k] {
			needs[k] = n
		}
	}
	for _, in := range instrs {
		switch in.Op {
		case translate.OpLocalTee:
			bump(scratchKindOf(in.Type), 1)
		case translate.OpTable:
			if in.TableOp == "swap" {
				bump(scratchI32, 2)
			}
		case translate.OpNumeric:
			if in.Numeric == translate.NumNeg && (in.Type == wasmtype.I32 || in.Type == wasmtype.I64) {
				bump(scratchKindOf(in.Type), 1)
			}
			if in.Numeric == translate.NumCmpL || in.Numeric == translate.NumCmpG {
				bump(scratchKindOf(in.Type), 2)
				if in.Type == wasmtype.F32 || in.Type == wasmtype.F64 {
					bump(scratchI32, 1)
				}
			}
		case translate.OpStruct:
			switch in.StructOp {
			case "set":
				if !e.cfg.WasmUseGC {
					bump(scratchKindOf(in.Type), 1)
				}
			case "checkcast", "instanceof":
				bump(scratchRef, 1)
				bump(scratchI32, 3)
			}
		case translate.OpArray:
			if !e.cfg.WasmUseGC && in.ArrayOp == "new" {
				bump(scratchI32, 1)
			}
		case translate.OpCallIndirect:
			sig := e.mod.Funcs.TypeByID(in.CallTypeID)
			perKind := map[scratchKind]int{}
			for _, p := range sig.Params {
				perKind[scratchKindOf(p)]++
			}
			for k, n := range perKind {
				bump(k, n)
			}
			bump(scratchI32, perKind[scratchI32]+3) // vtable offset, instanceof length, func index
		}
	}
	return needs
}

var scratchKindOrder = []scratchKind{scratchI32, scratchI64, scratchF32, scratchF64, scratchRef}

// codeSection renders one entry per defined function, in WasmIndexTable
// order, and collects the CodeOffset->source-line mappings C10 needs.
// CodeOffset is relative to the first function body's own first content
// byte (locals declaration included), not the section's leading vector
// count or any individual function's own size prefix.
func (e *emitter) codeSection() ([]byte, []Mapping, error) {
	var section bytes.Buffer
	section.Write(vec(len(e.definedOrdered)))

	var mappings []Mapping
	var contentCursor int
	for _, entry := range e.definedOrdered {
		body := e.mod.Bodies[entry.Name.String()]
		if body == nil {
			return nil, nil, j2werr.Newf(j2werr.KindEmitError, "no compiled body for defined function %s", entry.Name)
		}
		if body.WasmText != "" {
			return nil, nil, j2werr.Newf(j2werr.KindEmitError,
				"%s bypasses translation via its literal WASM text body; the binary emitter only renders translated instruction streams, not a WAT-subset parse", entry.Name)
		}

		sig := e.mod.Funcs.TypeByID(entry.TypeID)
		content, fnMappings, err := e.encodeFunctionBody(sig, body)
		if err != nil {
			return nil, nil, err
		}
		for _, m := range fnMappings {
			m.CodeOffset += contentCursor
			mappings = append(mappings, m)
		}
		contentCursor += len(content)

		section.Write(leb128.EncodeUint32(uint32(len(content))))
		section.Write(content)
	}
	return section.Bytes(), mappings, nil
}

// encodeFunctionBody renders one function's locals declaration plus its
// lowered instruction stream. body.Locals holds every JVM local slot
// including parameters (seedParamLocals/LocalAllocator give parameters the
// low indices); only the slots past numParams are declared here, since
// WASM parameters are implicit from the function type and never
// re-declared in the locals vector.
func (e *emitter) encodeFunctionBody(sig wasmtype.FuncSig, body *compiler.CompiledFunc) ([]byte, []Mapping, error) {
	numParams := len(sig.Params)
	if len(body.Locals) < numParams {
		return nil, nil, j2werr.Newf(j2werr.KindEmitError, "%s: fewer locals (%d) than its own parameter count (%d)", body.Name, len(body.Locals), numParams)
	}
	declared := body.Locals[numParams:]
	needs := e.scratchNeeds(body.Instructions)

	scratchBase := make(map[scratchKind]uint32, int(numScratchKinds))
	cursor := uint32(len(body.Locals))
	for _, k := range scratchKindOrder {
		scratchBase[k] = cursor
		cursor += uint32(needs[k])
	}

	var buf bytes.Buffer
	writeLocalsDecl(&buf, declared, needs, e)
	declLen := buf.Len()

	fb := &funcBody{e: e, sourceFile: body.SourceFile, scratchBase: scratchBase, numParams: numParams}
	if err := fb.emitInstructions(body.Instructions); err != nil {
		return nil, nil, err
	}
	for i := range fb.mappings {
		fb.mappings[i].CodeOffset += declLen
	}
	buf.Write(fb.buf.Bytes())
	buf.WriteByte(opEnd)

	return buf.Bytes(), fb.mappings, nil
}

// writeLocalsDecl run-length-encodes declared (the function's own non-
// parameter locals) and appends one run per nonzero scratch-kind count, in
// scratchKindOrder, matching the index layout encodeFunctionBody computed.
func writeLocalsDecl(buf *bytes.Buffer, declared []wasmtype.ValueType, needs map[scratchKind]int, e *emitter) {
	type run struct {
		count int
		typ   wasmtype.ValueType
	}
	var runs []run
	for _, t := range declared {
		if n := len(runs); n > 0 && runs[n-1].typ == t {
			runs[n-1].count++
			continue
		}
		runs = append(runs, run{count: 1, typ: t})
	}
	for _, k := range scratchKindOrder {
		if n := needs[k]; n > 0 {
			runs = append(runs, run{count: n, typ: e.scratchValType(k)})
		}
	}
	buf.Write(vec(len(runs)))
	for _, r := range runs {
		buf.Write(leb128.EncodeUint32(uint32(r.count)))
		buf.WriteByte(e.encodeValType(r.typ))
	}
}

// scratch returns the local index of the n-th scratch slot of kind k this
// function reserved (n counts from 0, bounded by scratchNeeds's count for
// k); every call site using scratch locals starts numbering at 0 since
// sites never overlap (see scratchNeeds's doc comment).
func (fb *funcBody) scratch(k scratchKind, n int) uint32 {
	return fb.scratchBase[k] + uint32(n)
}

func (fb *funcBody) u32(op byte, v uint32) {
	fb.buf.WriteByte(op)
	fb.buf.Write(leb128.EncodeUint32(v))
}

func (fb *funcBody) i32(op byte, v int32) {
	fb.buf.WriteByte(op)
	fb.buf.Write(leb128.EncodeInt32(v))
}

func (fb *funcBody) op(b byte) { fb.buf.WriteByte(b) }

func (fb *funcBody) localGet(idx uint32) { fb.u32(opLocalGet, idx) }
func (fb *funcBody) localSet(idx uint32) { fb.u32(opLocalSet, idx) }
func (fb *funcBody) localTee(idx uint32) { fb.u32(opLocalTee, idx) }

// memLoad emits an i32.load with the given byte offset (align 2, matching
// the data layout's natural 4-byte word alignment).
func (fb *funcBody) memLoadOffset(offset uint32) {
	fb.buf.WriteByte(opI32Load)
	fb.buf.Write(leb128.EncodeUint32(2))
	fb.buf.Write(leb128.EncodeUint32(offset))
}

// emitInstructions lowers instrs into fb.buf, recording a Mapping at every
// instruction carrying a known source line.
func (fb *funcBody) emitInstructions(instrs []translate.Instruction) error {
	for _, in := range instrs {
		if in.Line > 0 {
			fb.mappings = append(fb.mappings, Mapping{CodeOffset: fb.buf.Len(), File: fb.sourceFile, Line: in.Line})
		}
		if err := fb.emitOne(in); err != nil {
			return err
		}
	}
	return nil
}

func (fb *funcBody) emitOne(in translate.Instruction) error {
	e := fb.e
	switch in.Op {
	case translate.OpConst:
		return fb.emitConst(in)
	case translate.OpLocalGet:
		fb.localGet(in.LocalIdx)
	case translate.OpLocalSet:
		fb.localSet(in.LocalIdx)
	case translate.OpLocalTee:
		// Dup: the allocator never assigns this instruction a real JVM
		// local (see internal/translate's walker.opDup), so C9 supplies a
		// fresh scratch local per function and per type kind instead.
		// local.tee re-establishes one copy; local.get pushes the second.
		s := fb.scratch(scratchKindOf(in.Type), 0)
		fb.localTee(s)
		fb.localGet(s)
	case translate.OpGlobalGet:
		fb.u32(opGlobalGet, e.globalIdx[in.GlobalID])
	case translate.OpGlobalSet:
		fb.u32(opGlobalSet, e.globalIdx[in.GlobalID])
	case translate.OpNumeric:
		return fb.emitNumeric(in)
	case translate.OpConvert:
		return fb.emitConvert(in)
	case translate.OpCall:
		fn := parseModuleFuncName(in.CallFunc)
		entry := e.mod.Funcs.Lookup(fn)
		if entry == nil {
			return j2werr.Newf(j2werr.KindEmitError, "call to unresolved function %s", in.CallFunc)
		}
		fb.u32(opCall, e.mod.WasmIndex[entry.ID])
	case translate.OpCallIndirect:
		return fb.emitCallIndirect(in)
	case translate.OpStruct:
		return fb.emitStruct(in)
	case translate.OpArray:
		return fb.emitArray(in)
	case translate.OpTable:
		if in.TableOp == "swap" {
			fb.emitSwap(in)
		}
	case translate.OpMemory, translate.OpSourceLine:
		// No memory-typed instruction is ever emitted by the translator
		// (spec.md's non-GC object model crosses to the host instead);
		// OpSourceLine only carries the Line already recorded above.
	case translate.OpBlock:
		fb.op(opBlock)
		fb.op(blocktypeEmpty)
		// BlockTry has no WASM exception-handling-proposal counterpart
		// here (see internal/control/restructure.go's degradeExceptions):
		// it lowers as a plain block, its body left unreachable straight-
		// line code, matching BlockLoop/BlockPlain's own shape.
		if in.BlockKind == translate.BlockLoop {
			// loop replaces the block just written; wazero's own binary
			// encoder never emits nested empty wrapper opcodes for this,
			// so overwrite rather than emit both.
			b := fb.buf.Bytes()
			b[len(b)-2] = opLoop
		}
	case translate.OpElse:
		fb.op(opElseIns)
	case translate.OpEnd:
		fb.op(opEnd)
	case translate.OpBr:
		fb.u32(opBr, uint32(in.BreakDepth))
	case translate.OpBrIf:
		return fb.emitCondBrIf(in)
	case translate.OpBrTable:
		fb.op(opBrTable)
		targets := in.BrTableTargets
		if len(targets) == 0 {
			fb.buf.Write(vec(0))
			fb.buf.Write(leb128.EncodeUint32(0))
			return nil
		}
		fb.buf.Write(vec(len(targets) - 1))
		for _, t := range targets[:len(targets)-1] {
			fb.buf.Write(leb128.EncodeUint32(uint32(t)))
		}
		fb.buf.Write(leb128.EncodeUint32(uint32(targets[len(targets)-1])))
	case translate.OpReturn:
		fb.op(opReturn)
	case translate.OpUnreachable:
		fb.op(opUnreachable)
	case translate.OpThrow, translate.OpRethrow:
		// Both are pre-degraded to OpUnreachable by internal/control before
		// a body ever reaches C9 (athrow's only live path); reaching this
		// case at all would be an internal invariant violation, not a
		// user-triggerable error, so it traps rather than propagating a
		// wrong program.
		fb.op(opUnreachable)
	case translate.OpCatch:
		// A dead marker in degraded-exception methods: the handler body
		// that follows is unreachable straight-line code already, so
		// nothing is emitted for the marker itself.
	case translate.OpDrop:
		fb.op(opDrop)
	}
	return nil
}

func (fb *funcBody) emitConst(in translate.Instruction) error {
	switch {
	case in.Type == wasmtype.StructRef && in.Const.IsStringRef:
		fb.i32(opI32Const, int32(in.Const.StringIndex))
		entry := fb.e.mod.Funcs.Lookup(compiler.RuntimeFuncName(compiler.RTMaterializeString))
		if entry == nil {
			return j2werr.New(j2werr.KindEmitError, "string constant used but materializeString was never registered")
		}
		fb.u32(opCall, fb.e.mod.WasmIndex[entry.ID])
	case in.Type == wasmtype.StructRef:
		fb.op(opRefNull)
		fb.op(fb.e.heapType(wasmtype.StructRef))
	case in.Type == wasmtype.I64:
		fb.buf.WriteByte(opI64Const)
		fb.buf.Write(leb128.EncodeInt64(in.Const.I64))
	case in.Type == wasmtype.F32:
		fb.buf.WriteByte(opF32Const)
		fb.buf.Write(encodeF32(in.Const.F32))
	case in.Type == wasmtype.F64:
		fb.buf.WriteByte(opF64Const)
		fb.buf.Write(encodeF64(in.Const.F64))
	default:
		fb.i32(opI32Const, in.Const.I32)
	}
	return nil
}

// emitCondBrIf lowers one of the JVM's fused compare-and-branch opcodes
// (spec.md §4.4's CondOp) into the real comparison instruction its already-
// pushed operand(s) need, followed by br_if. The operands were pushed by
// earlier instructions (internal/translate's condBranch only pops its own
// type-checking stack, see dispatch_ops.go), so no operand push happens
// here, only the comparison and the branch.
func (fb *funcBody) emitCondBrIf(in translate.Instruction) error {
	switch in.CondOp {
	case condIfEq:
		fb.op(opI32Eqz)
	case condIfNe:
		// x != 0 is already the right truthiness for br_if.
	case condIfLt:
		// stack: [x]; push 0 -> [x,0]; lt_s pops (b=0,a=x) -> x<0.
		fb.i32(opI32Const, 0)
		fb.op(opI32LtS)
	case condIfGe:
		fb.i32(opI32Const, 0)
		fb.op(opI32GeS)
	case condIfGt:
		fb.i32(opI32Const, 0)
		fb.op(opI32GtS)
	case condIfLe:
		fb.i32(opI32Const, 0)
		fb.op(opI32LeS)
	case condIfICmpEq:
		fb.op(opI32Eq)
	case condIfICmpNe:
		fb.op(opI32Ne)
	case condIfICmpLt:
		fb.op(opI32LtS)
	case condIfICmpGe:
		fb.op(opI32GeS)
	case condIfICmpGt:
		fb.op(opI32GtS)
	case condIfICmpLe:
		fb.op(opI32LeS)
	case condIfACmpEq, condIfACmpNe:
		if err := fb.emitRefEq(); err != nil {
			return err
		}
		if in.CondOp == condIfACmpNe {
			fb.op(opI32Eqz)
		}
	case condIfNull:
		fb.op(opRefIsNull)
	case condIfNonNull:
		fb.op(opRefIsNull)
		fb.op(opI32Eqz)
	default:
		return j2werr.Newf(j2werr.KindEmitError, "unrecognized branch condition opcode 0x%02x", in.CondOp)
	}
	fb.u32(opBrIf, uint32(in.BreakDepth))
	return nil
}

// emitNumeric lowers one arithmetic/bitwise/shift instruction. Operands are
// already on the real stack in the order internal/translate's dispatch.go
// popped them (value(s) then, for shifts, the i32 shift count last).
func (fb *funcBody) emitNumeric(in translate.Instruction) error {
	n, t := in.Numeric, in.Type
	switch n {
	case translate.NumAdd:
		fb.op(map[wasmtype.ValueType]byte{wasmtype.I32: opI32Add, wasmtype.I64: opI64Add, wasmtype.F32: opF32Add, wasmtype.F64: opF64Add}[t])
	case translate.NumSub:
		fb.op(map[wasmtype.ValueType]byte{wasmtype.I32: opI32Sub, wasmtype.I64: opI64Sub, wasmtype.F32: opF32Sub, wasmtype.F64: opF64Sub}[t])
	case translate.NumMul:
		fb.op(map[wasmtype.ValueType]byte{wasmtype.I32: opI32Mul, wasmtype.I64: opI64Mul, wasmtype.F32: opF32Mul, wasmtype.F64: opF64Mul}[t])
	case translate.NumDiv:
		switch t {
		case wasmtype.I32:
			fb.op(opI32DivS)
		case wasmtype.I64:
			fb.op(opI64DivS)
		case wasmtype.F32:
			fb.op(opF32Div)
		case wasmtype.F64:
			fb.op(opF64Div)
		}
	case translate.NumRem:
		switch t {
		case wasmtype.I32:
			fb.op(opI32RemS)
		case wasmtype.I64:
			fb.op(opI64RemS)
		case wasmtype.F32:
			return fb.callRuntime(compiler.RTFRem)
		case wasmtype.F64:
			return fb.callRuntime(compiler.RTDRem)
		}
	case translate.NumNeg:
		switch t {
		case wasmtype.F32:
			fb.op(opF32Neg)
		case wasmtype.F64:
			fb.op(opF64Neg)
		default:
			// No native ineg/lneg: stash the operand, push 0, reload it,
			// subtract (0 - x), since the value is already on the stack
			// in the wrong position for a literal-then-value sequence.
			k := scratchKindOf(t)
			s := fb.scratch(k, 0)
			fb.localSet(s)
			if t == wasmtype.I64 {
				fb.buf.WriteByte(opI64Const)
				fb.buf.Write(leb128.EncodeInt64(0))
				fb.localGet(s)
				fb.op(opI64Sub)
			} else {
				fb.i32(opI32Const, 0)
				fb.localGet(s)
				fb.op(opI32Sub)
			}
		}
	case translate.NumAnd:
		if t == wasmtype.I64 {
			fb.op(opI64And)
		} else {
			fb.op(opI32And)
		}
	case translate.NumOr:
		if t == wasmtype.I64 {
			fb.op(opI64Or)
		} else {
			fb.op(opI32Or)
		}
	case translate.NumXor:
		if t == wasmtype.I64 {
			fb.op(opI64Xor)
		} else {
			fb.op(opI32Xor)
		}
	case translate.NumShl, translate.NumShr, translate.NumShrU:
		if t == wasmtype.I64 {
			fb.op(opI64ExtendI32U) // shift count always pushed as i32, widen before shifting an i64
		}
		fb.op(shiftOpcode(n, t))
	case translate.NumCmpL, translate.NumCmpG:
		return fb.emitCompareValue(in)
	}
	return nil
}

func shiftOpcode(n translate.NumericOp, t wasmtype.ValueType) byte {
	is64 := t == wasmtype.I64
	switch n {
	case translate.NumShl:
		if is64 {
			return opI64Shl
		}
		return opI32Shl
	case translate.NumShrU:
		if is64 {
			return opI64ShrU
		}
		return opI32ShrU
	default: // NumShr
		if is64 {
			return opI64ShrS
		}
		return opI32ShrS
	}
}

// emitCompareValue lowers lcmp/fcmpl/fcmpg/dcmpl/dcmpg: JVM's three-way
// compare pushing -1/0/1, rather than a boolean, so no single WASM
// comparison instruction covers it. (a cmp b), with a NaN operand,
// resolves to -1 under NumCmpL and +1 under NumCmpG (spec.md §4.3); lcmp
// has no NaN case and always lowers the same way regardless of variant.
func (fb *funcBody) emitCompareValue(in translate.Instruction) error {
	t := in.Type
	k := scratchKindOf(t)
	bLocal := fb.scratch(k, 0)
	aLocal := fb.scratch(k, 1)
	fb.localSet(bLocal)
	fb.localSet(aLocal)

	ltOp, gtOp := fb.compareOpcodes(t)

	// base = (a>b) - (a<b): a>b -> 1, a<b -> -1, a==b or either NaN -> 0.
	fb.localGet(aLocal)
	fb.localGet(bLocal)
	fb.op(gtOp)
	fb.localGet(aLocal)
	fb.localGet(bLocal)
	fb.op(ltOp)
	fb.op(opI32Sub)

	if t != wasmtype.F32 && t != wasmtype.F64 {
		return nil
	}
	// base is on the stack now; float/double variants must still
	// distinguish "equal" (base already correctly 0) from "either operand
	// NaN" (must read as -1 for NumCmpL, +1 for NumCmpG instead of 0):
	// select(bias, base, isNaN), WASM select order [val1, val2, cond].
	bias := int32(1)
	if in.Numeric == translate.NumCmpL {
		bias = -1
	}
	baseLocal := fb.scratch(scratchI32, 0) // a dedicated i32 slot for the select's base-value operand
	fb.localSet(baseLocal)
	fb.i32(opI32Const, bias)
	fb.localGet(baseLocal)
	neOp := byte(opF32Ne)
	if t == wasmtype.F64 {
		neOp = opF64Ne
	}
	fb.localGet(aLocal)
	fb.localGet(aLocal)
	fb.op(neOp) // aIsNaN
	fb.localGet(bLocal)
	fb.localGet(bLocal)
	fb.op(neOp) // bIsNaN
	fb.op(opI32Or)
	fb.op(opSelect) // cond!=0 -> bias, else -> base
	return nil
}

func (fb *funcBody) compareOpcodes(t wasmtype.ValueType) (lt, gt byte) {
	switch t {
	case wasmtype.I64:
		return opI64LtS, opI64GtS
	case wasmtype.F32:
		return opF32Lt, opF32Gt
	case wasmtype.F64:
		return opF64Lt, opF64Gt
	default:
		return opI32LtS, opI32GtS
	}
}

func (fb *funcBody) callRuntime(helper string) error {
	entry := fb.e.mod.Funcs.Lookup(compiler.RuntimeFuncName(helper))
	if entry == nil {
		return j2werr.Newf(j2werr.KindEmitError, "runtime helper %s used but never registered", helper)
	}
	fb.u32(opCall, fb.e.mod.WasmIndex[entry.ID])
	return nil
}

func (fb *funcBody) emitRefEq() error {
	if fb.e.cfg.WasmUseGC {
		fb.op(opRefEqOp)
		return nil
	}
	entry := fb.e.mod.Funcs.Lookup(compiler.RuntimeFuncName(compiler.RTRefEq))
	if entry == nil {
		return j2werr.New(j2werr.KindEmitError, "reference comparison used but refEq was never registered")
	}
	fb.u32(opCall, fb.e.mod.WasmIndex[entry.ID])
	return nil
}

// emitConvert lowers one JVM numeric conversion to its matching WASM
// instruction. i2b/i2c/i2s have no structural width change (both sides are
// i32) and instead sign/zero-extend a narrower view of the same value; the
// _re forms are bit-reinterpretations used by math intrinsics rather than
// value conversions.
func (fb *funcBody) emitConvert(in translate.Instruction) error {
	switch in.Convert {
	case translate.CvtI2L:
		fb.op(opI64ExtendI32S)
	case translate.CvtI2F:
		fb.op(opF32ConvertI32S)
	case translate.CvtI2D:
		fb.op(opF64ConvertI32S)
	case translate.CvtL2I:
		fb.op(opI32WrapI64)
	case translate.CvtL2F:
		fb.op(opF32ConvertI64S)
	case translate.CvtL2D:
		fb.op(opF64ConvertI64S)
	case translate.CvtF2I:
		fb.op(opI32TruncF32S)
	case translate.CvtF2L:
		fb.op(opI64TruncF32S)
	case translate.CvtF2D:
		fb.op(opF64PromoteF32)
	case translate.CvtD2I:
		fb.op(opI32TruncF64S)
	case translate.CvtD2L:
		fb.op(opI64TruncF64S)
	case translate.CvtD2F:
		fb.op(opF32DemoteF64)
	case translate.CvtI2B:
		fb.op(opI32Extend8S)
	case translate.CvtI2C:
		fb.i32(opI32Const, 0xffff)
		fb.op(opI32And)
	case translate.CvtI2S:
		fb.op(opI32Extend16S)
	case translate.CvtF2IRe:
		fb.op(opI32ReinterpretF32)
	case translate.CvtI2FRe:
		fb.op(opF32ReinterpretI32)
	case translate.CvtD2LRe:
		fb.op(opI64ReinterpretF64)
	case translate.CvtL2DRe:
		fb.op(opF64ReinterpretI64)
	default:
		return j2werr.Newf(j2werr.KindEmitError, "unrecognized conversion kind %d", in.Convert)
	}
	return nil
}

// emitCallIndirect lowers invokevirtual/invokeinterface's vtable-dispatch
// sequence (spec.md §4.5). The receiver and every argument are already on
// the real stack in declaration order (wasmtype.LowerSignature prepends the
// receiver as Params[0], see dispatch_ops.go's invokeVirtual), but the
// function-index operand call_indirect needs is computed from the
// receiver's vtable pointer, which sits buried beneath the other operands —
// so every parameter is stashed into a scratch local first, the target
// function index is computed, and the stack is rebuilt in the original
// order with the function index appended last.
//
// in.StructField already holds the resolved vtable slot (see
// compiler.Compiler.resolveVirtualSlots); this only has to walk the fixed
// 3-word vtable header (spec.md §4.5/GLOSSARY) to find where the vmethod
// region starts: vmethodsBase = vtableOffset + 12 + instanceofLen*4.
func (fb *funcBody) emitCallIndirect(in translate.Instruction) error {
	e := fb.e
	sig := e.mod.Funcs.TypeByID(in.CallTypeID)
	params := sig.Params

	kindNext := map[scratchKind]int{}
	paramLocal := make([]uint32, len(params))
	for i, p := range params {
		k := scratchKindOf(p)
		paramLocal[i] = fb.scratch(k, kindNext[k])
		kindNext[k]++
	}
	for i := len(params) - 1; i >= 0; i-- {
		fb.localSet(paramLocal[i])
	}

	vtableOff := fb.scratch(scratchI32, kindNext[scratchI32]+0)
	lenLocal := fb.scratch(scratchI32, kindNext[scratchI32]+1)
	funcIdxLocal := fb.scratch(scratchI32, kindNext[scratchI32]+2)

	recv := paramLocal[0]
	fb.localGet(recv)
	if e.cfg.WasmUseGC {
		fb.gcOp(gcRefCast, e.headerTypeIdx())
		fb.gcOp(gcStructGet, e.headerTypeIdx(), 0)
	} else {
		fb.i32(opI32Const, 0)
		if err := fb.callRuntime(compiler.RTStructGetNum); err != nil {
			return err
		}
		fb.op(opI32TruncF64S)
	}
	fb.localSet(vtableOff)

	fb.localGet(vtableOff)
	fb.memLoadOffset(8) // instanceofLen
	fb.localSet(lenLocal)

	// vmethodsBase = vtableOff + 12 + len*4, left on the stack; the slot
	// number is a compile-time constant, so it becomes the load's static
	// offset immediate rather than another runtime add.
	fb.localGet(vtableOff)
	fb.localGet(lenLocal)
	fb.i32(opI32Const, 4)
	fb.op(opI32Mul)
	fb.op(opI32Add)
	fb.i32(opI32Const, 12)
	fb.op(opI32Add)
	fb.memLoadOffset(uint32(in.StructField * 4))
	fb.localSet(funcIdxLocal)

	for _, pl := range paramLocal {
		fb.localGet(pl)
	}
	fb.localGet(funcIdxLocal)
	fb.op(opCallIndirect)
	fb.buf.Write(leb128.EncodeUint32(in.CallTypeID))
	fb.buf.WriteByte(0x00) // table 0
	return nil
}

// emitStruct lowers getfield/putfield/new (spec.md §4.3): real struct.get/
// struct.set/struct.new_default in GC mode, or a call to the non-GC
// object-model's Num/Ref accessor pair widened across the f64 host boundary
// (internal/compiler/runtime.go's object-model note) otherwise.
func (fb *funcBody) emitStruct(in translate.Instruction) error {
	e := fb.e
	switch in.StructOp {
	case "get":
		if e.cfg.WasmUseGC {
			fb.gcOp(gcStructGet, e.structTypeIdx[in.StructClass], uint32(in.StructField))
			return nil
		}
		fb.i32(opI32Const, int32(in.StructField))
		helper := compiler.RTStructGetNum
		if isRefType(in.Type) {
			helper = compiler.RTStructGetRef
		}
		if err := fb.callRuntime(helper); err != nil {
			return err
		}
		if !isRefType(in.Type) {
			fb.narrowFromF64(in.Type)
		}
		return nil

	case "set":
		if e.cfg.WasmUseGC {
			fb.gcOp(gcStructSet, e.structTypeIdx[in.StructClass], uint32(in.StructField))
			return nil
		}
		// Stack is [receiver, value]; the field index constant has to land
		// between them, so the value is stashed first.
		valueLocal := fb.scratch(scratchKindOf(in.Type), 0)
		fb.localSet(valueLocal)
		fb.i32(opI32Const, int32(in.StructField))
		fb.localGet(valueLocal)
		helper := compiler.RTStructSetNum
		if isRefType(in.Type) {
			helper = compiler.RTStructSetRef
		} else {
			fb.widenToF64(in.Type)
		}
		return fb.callRuntime(helper)

	case "new_default":
		if e.cfg.WasmUseGC {
			fb.gcOp(gcStructNewDefault, e.structTypeIdx[in.StructClass])
			return nil
		}
		info := e.mod.Types.Get(in.StructClass)
		numFields := 0
		if info != nil {
			numFields = len(info.Fields)
		}
		fb.i32(opI32Const, int32(in.StructClass))
		fb.i32(opI32Const, int32(numFields))
		return fb.callRuntime(compiler.RTNewDefault)

	case "checkcast", "instanceof":
		return fb.emitTypeCheck(in)
	}
	return j2werr.Newf(j2werr.KindEmitError, "unrecognized struct op %q", in.StructOp)
}

// emitTypeCheck lowers checkcast/instanceof by walking the receiver's
// vtable instanceof list at runtime (spec.md §4.5/GLOSSARY): neither GC
// ref.test nor a single host accessor can express "is a subtype of this
// class index" without reading the same metadata block new_default's
// header patch already populated, so both modes share this scan. A null
// receiver always passes checkcast (the JVM never class-checks a null
// cast) and always fails instanceof.
func (fb *funcBody) emitTypeCheck(in translate.Instruction) error {
	e := fb.e
	isCast := in.StructOp == "checkcast"

	recv := fb.scratch(scratchRef, 0)
	fb.localSet(recv)

	resultByte := byte(vtI32)
	if isCast {
		resultByte = e.encodeValType(wasmtype.StructRef)
	}

	fb.localGet(recv)
	fb.op(opRefIsNull)
	fb.op(opIf)
	fb.op(resultByte)
	if isCast {
		fb.localGet(recv)
	} else {
		fb.i32(opI32Const, 0)
	}
	fb.op(opElseIns)

	i := fb.scratch(scratchI32, 0)
	length := fb.scratch(scratchI32, 1)
	vtableOff := fb.scratch(scratchI32, 2)

	fb.localGet(recv)
	if e.cfg.WasmUseGC {
		fb.gcOp(gcRefCast, e.headerTypeIdx())
		fb.gcOp(gcStructGet, e.headerTypeIdx(), 0)
	} else {
		fb.i32(opI32Const, 0)
		if err := fb.callRuntime(compiler.RTStructGetNum); err != nil {
			return err
		}
		fb.op(opI32TruncF64S)
	}
	fb.localSet(vtableOff)

	fb.localGet(vtableOff)
	fb.memLoadOffset(8) // instanceofLen
	fb.localSet(length)

	fb.i32(opI32Const, 0)
	fb.localSet(i)

	// block (result i32) "found"; loop "scan" inside it never falls through
	// normally (every iteration exits via one of the two inner br's or loops
	// back via br 0), so the loop itself declares no result type.
	fb.op(opBlock)
	fb.op(vtI32) // the scan always produces a 0/1 found flag
	fb.op(opLoop)
	fb.op(blocktypeEmpty)

	fb.localGet(i)
	fb.localGet(length)
	fb.op(opI32GeS)
	fb.op(opIf)
	fb.op(blocktypeEmpty)
	fb.i32(opI32Const, 0)
	fb.u32(opBr, 2)
	fb.op(opEnd)

	// ancestorId = i32.load(vtableOff + 12 + i*4)
	fb.localGet(vtableOff)
	fb.localGet(i)
	fb.i32(opI32Const, 4)
	fb.op(opI32Mul)
	fb.op(opI32Add)
	fb.memLoadOffset(12)
	fb.i32(opI32Const, int32(in.StructClass))
	fb.op(opI32Eq)
	fb.op(opIf)
	fb.op(blocktypeEmpty)
	fb.i32(opI32Const, 1)
	fb.u32(opBr, 2)
	fb.op(opEnd)

	fb.localGet(i)
	fb.i32(opI32Const, 1)
	fb.op(opI32Add)
	fb.localSet(i)
	fb.u32(opBr, 0)

	fb.op(opEnd) // loop
	fb.op(opEnd) // block, leaves the found flag (0/1) on the stack

	if isCast {
		fb.op(opIf)
		fb.op(e.encodeValType(wasmtype.StructRef))
		fb.localGet(recv)
		fb.op(opElseIns)
		fb.op(opUnreachable)
		fb.op(opEnd)
	}

	fb.op(opEnd) // outer null-guard if/else
	return nil
}

// emitArray lowers array element access, creation, and length (spec.md
// §4.3), mirroring emitStruct's GC/non-GC split: the five fixed GC array
// types cover every element category, and multianewarray's inner
// dimensions beyond the first are deliberately not materialized (the extra
// size operands are dropped), since nested-array construction needs a
// hand-rolled loop per dimension that no example in this corpus models.
func (fb *funcBody) emitArray(in translate.Instruction) error {
	e := fb.e
	switch in.ArrayOp {
	case "get":
		if e.cfg.WasmUseGC {
			fb.gcOp(gcArrayGet, e.arrayTypeIdx[scratchKindOf(in.Type)])
			return nil
		}
		helper := compiler.RTArrayGetNum
		if isRefType(in.Type) {
			helper = compiler.RTArrayGetRef
		}
		if err := fb.callRuntime(helper); err != nil {
			return err
		}
		if !isRefType(in.Type) {
			fb.narrowFromF64(in.Type)
		}
		return nil

	case "set":
		if e.cfg.WasmUseGC {
			fb.gcOp(gcArraySet, e.arrayTypeIdx[scratchKindOf(in.Type)])
			return nil
		}
		// Stack is [receiver, index, value]; already in the accessor's own
		// parameter order, no reordering needed.
		if !isRefType(in.Type) {
			fb.widenToF64(in.Type)
		}
		helper := compiler.RTArraySetNum
		if isRefType(in.Type) {
			helper = compiler.RTArraySetRef
		}
		return fb.callRuntime(helper)

	case "new":
		// multianewarray pushes one size operand per dimension, outermost
		// first; only the outermost sizes the array actually materialized
		// here, so every size operand above it (dims-1 of them, still on
		// top of the stack) is discarded.
		for extra := 1; extra < in.StructField; extra++ {
			fb.op(opDrop)
		}
		if e.cfg.WasmUseGC {
			fb.gcOp(gcArrayNewDefault, e.arrayTypeIdx[scratchKindOf(in.Type)])
			return nil
		}
		// Stack is [length]; newDefault(classIdx, length) needs the class
		// index pushed first, so the length is stashed and reloaded.
		lengthLocal := fb.scratch(scratchI32, 0)
		fb.localSet(lengthLocal)
		fb.i32(opI32Const, int32(in.ArrayClass))
		fb.localGet(lengthLocal)
		return fb.callRuntime(compiler.RTNewDefault)

	case "len":
		if e.cfg.WasmUseGC {
			fb.buf.WriteByte(gcPrefix)
			fb.buf.WriteByte(gcArrayLen)
			return nil
		}
		return fb.callRuntime(compiler.RTArrayLen)
	}
	return j2werr.Newf(j2werr.KindEmitError, "unrecognized array op %q", in.ArrayOp)
}

// emitSwap lowers the table-swap intrinsic, which the translator emits for
// the JVM swap opcode: two scratch i32 locals round-trip the top two stack
// slots into the opposite order. OpTable carries no type, so the operands
// are always handled as i32-width values.
func (fb *funcBody) emitSwap(in translate.Instruction) {
	a := fb.scratch(scratchI32, 0)
	b := fb.scratch(scratchI32, 1)
	fb.localSet(b)
	fb.localSet(a)
	fb.localGet(b)
	fb.localGet(a)
}
