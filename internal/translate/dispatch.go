package translate

import (
	"fmt"

	"github.com/jacobin-wasm/j2w/internal/classfile"
	"github.com/jacobin-wasm/j2w/internal/j2werr"
	"github.com/jacobin-wasm/j2w/internal/jvmtype"
	"github.com/jacobin-wasm/j2w/internal/link"
	"github.com/jacobin-wasm/j2w/internal/wasmtype"
)

// Context bundles the managers a method's translation needs to resolve
// constant-pool references into the shared function/type/string tables
// (spec.md §4.5's registries, consumed here rather than owned here).
type Context struct {
	CP      *classfile.Pool
	Funcs   *link.FuncManager
	Types   *link.TypeTable
	Strings *link.StringPool
	// CallSiteBase lets distinct invokedynamic call sites within one
	// compilation get distinct synthesized names even when this Translate
	// call is one of several sharing the same Context.
	CallSiteBase int

	// Static and Descriptor describe the method being translated, so
	// Translate can pre-seed the parameter slots (JVM locals 0..N-1, a
	// leading implicit `this` for instance methods) into the local
	// allocator before walking any bytecode. WASM requires a function's
	// parameters to occupy local indices 0..N-1 in declaration order;
	// LocalAllocator otherwise assigns indices in first-use order, which
	// only coincides with declaration order by accident once the method
	// body is free to load its locals in any order.
	Static     bool
	Descriptor string
}

// Result is everything the restructurer and emitters need from one
// method's translation.
type Result struct {
	Instructions []Instruction
	Locals       *LocalAllocator
	ExceptionTable []classfile.ExceptionHandler
	// DynamicSites records, in encounter order, the bootstrap-method
	// index and call-site signature of every invokedynamic this method
	// contains; the orchestrator (C7) uses it to resolve the CallFunc
	// placeholder each site's OpCall carries into a synthesized function
	// or lambda struct (spec.md §4.5).
	DynamicSites []DynamicSite
}

// DynamicSite is one invokedynamic occurrence within a method, identified
// by its placeholder CallFunc string (matching the OpCall instruction
// emitted for it) plus enough of the resolved constant-pool entry for C7
// to look up the owning class's bootstrap method without re-walking the
// bytecode.
type DynamicSite struct {
	CallFunc       string
	BootstrapIndex int
	Name, Desc     string
}

type walker struct {
	code        []byte
	pos         int
	cp          *classfile.Pool
	ctx         *Context
	stack       OperandStack
	locals      *LocalAllocator
	out         []Instruction
	lines       []classfile.LineEntry
	lineIdx     int
	curLine     int
	dynSite     int
	dynSites    []DynamicSite
	instrOffset int
}

// Translate lowers one method's Code attribute (spec.md §4.3).
func Translate(code *classfile.Code, lines []classfile.LineEntry, ctx *Context) (*Result, error) {
	w := &walker{code: code.Bytes, cp: ctx.CP, ctx: ctx, locals: NewLocalAllocator(), lines: lines}
	if err := w.seedParamLocals(); err != nil {
		return nil, err
	}
	for w.pos < len(w.code) {
		if err := w.step(); err != nil {
			return nil, err
		}
	}
	return &Result{
		Instructions: w.out, Locals: w.locals, ExceptionTable: code.ExceptionTable,
		DynamicSites: w.dynSites,
	}, nil
}

// seedParamLocals pre-allocates JVM local slots 0..N-1 in declaration
// order (an implicit `this` first, for instance methods) so the
// WebAssembly local indices the code section declares as the function's
// parameters line up with the function type's own parameter list, before
// the body gets a chance to allocate any local in whatever order it
// happens to load them.
func (w *walker) seedParamLocals() error {
	slot := 0
	if !w.ctx.Static {
		w.locals.Get(slot, wasmtype.StructRef)
		slot++
	}
	params, _, err := jvmtype.ParseMethodSignature(w.ctx.Descriptor)
	if err != nil {
		return err
	}
	for _, p := range params {
		w.locals.Get(slot, wasmtype.LowerKind(p.Kind))
		if p.Kind == jvmtype.KindLong || p.Kind == jvmtype.KindDouble {
			slot += 2
		} else {
			slot++
		}
	}
	return nil
}

func (w *walker) emit(i Instruction) {
	i.Line = w.curLine
	i.Offset = w.instrOffset
	w.out = append(w.out, i)
}

func (w *walker) u1() byte {
	v := w.code[w.pos]
	w.pos++
	return v
}

func (w *walker) u2() uint16 {
	v := uint16(w.code[w.pos])<<8 | uint16(w.code[w.pos+1])
	w.pos += 2
	return v
}

func (w *walker) s2() int16 { return int16(w.u2()) }

func (w *walker) u4() uint32 {
	v := uint32(w.code[w.pos])<<24 | uint32(w.code[w.pos+1])<<16 | uint32(w.code[w.pos+2])<<8 | uint32(w.code[w.pos+3])
	w.pos += 4
	return v
}

func (w *walker) s4() int32 { return int32(w.u4()) }

func (w *walker) updateLine(offset int) {
	for w.lineIdx < len(w.lines) && w.lines[w.lineIdx].Offset <= offset {
		w.curLine = w.lines[w.lineIdx].Line
		w.lineIdx++
	}
}

func (w *walker) step() error {
	offset := w.pos
	w.updateLine(offset)
	w.instrOffset = offset
	op := w.u1()

	switch {
	case op == opNop:
		return nil
	case op >= opIConstM1 && op <= opIConst5:
		w.emit(Instruction{Op: OpConst, Type: wasmtype.I32, Const: ConstValue{I32: int32(op) - int32(opIConst0)}})
		w.stack.Push(wasmtype.I32)
		return nil
	case op == opLConst0 || op == opLConst1:
		w.emit(Instruction{Op: OpConst, Type: wasmtype.I64, Const: ConstValue{I64: int64(op - opLConst0)}})
		w.stack.Push(wasmtype.I64)
		return nil
	case op >= opFConst0 && op <= opFConst2:
		w.emit(Instruction{Op: OpConst, Type: wasmtype.F32, Const: ConstValue{F32: float32(op - opFConst0)}})
		w.stack.Push(wasmtype.F32)
		return nil
	case op == opDConst0 || op == opDConst1:
		w.emit(Instruction{Op: OpConst, Type: wasmtype.F64, Const: ConstValue{F64: float64(op - opDConst0)}})
		w.stack.Push(wasmtype.F64)
		return nil
	case op == opBipush:
		v := int8(w.u1())
		w.emit(Instruction{Op: OpConst, Type: wasmtype.I32, Const: ConstValue{I32: int32(v)}})
		w.stack.Push(wasmtype.I32)
		return nil
	case op == opSipush:
		v := w.s2()
		w.emit(Instruction{Op: OpConst, Type: wasmtype.I32, Const: ConstValue{I32: int32(v)}})
		w.stack.Push(wasmtype.I32)
		return nil
	case op == opLdc:
		return w.ldc(int(w.u1()))
	case op == opLdcW:
		return w.ldc(int(w.u2()))
	case op == opLdc2W:
		return w.ldc2(int(w.u2()))
	case op == opAConstNull:
		w.emit(Instruction{Op: OpConst, Type: wasmtype.StructRef})
		w.stack.Push(wasmtype.StructRef)
		return nil
	}

	switch {
	case isLoadFamily(op):
		return w.load(op)
	case isStoreFamily(op):
		return w.store(op)
	}

	if numOp, typ, ok := arithmeticOp(op); ok {
		if err := w.stack.PopExpect(typ); err != nil {
			return err
		}
		if numOp != NumNeg {
			if err := w.stack.PopExpect(typ); err != nil {
				return err
			}
		}
		w.emit(Instruction{Op: OpNumeric, Type: typ, Numeric: numOp})
		w.stack.Push(typ)
		return nil
	}

	// Shifts are handled separately from arithmeticOp: the shift-count
	// operand is always i32 even when shifting a long, so the two popped
	// operands do not share one uniform type.
	if numOp, typ, ok := isShiftOp(op); ok {
		if err := w.stack.PopExpect(wasmtype.I32); err != nil {
			return err
		}
		if err := w.stack.PopExpect(typ); err != nil {
			return err
		}
		w.emit(Instruction{Op: OpNumeric, Type: typ, Numeric: numOp})
		w.stack.Push(typ)
		return nil
	}

	switch op {
	case opIinc:
		slot := int(w.u1())
		delta := int8(w.u1())
		idx := w.locals.Get(slot, wasmtype.I32)
		w.emit(Instruction{Op: OpLocalGet, Type: wasmtype.I32, LocalIdx: idx})
		w.emit(Instruction{Op: OpConst, Type: wasmtype.I32, Const: ConstValue{I32: int32(delta)}})
		w.emit(Instruction{Op: OpNumeric, Type: wasmtype.I32, Numeric: NumAdd})
		w.emit(Instruction{Op: OpLocalSet, Type: wasmtype.I32, LocalIdx: idx})
		return nil
	case opWide:
		return w.wide()
	}

	if kind, from, to, ok := convertOp(op); ok {
		if err := w.stack.PopExpect(from); err != nil {
			return err
		}
		w.emit(Instruction{Op: OpConvert, Type: to, Convert: kind})
		w.stack.Push(to)
		return nil
	}

	switch op {
	case opLCmp, opFCmpL, opDCmpL:
		return w.compare(op, NumCmpL)
	case opFCmpG, opDCmpG:
		return w.compare(op, NumCmpG)
	}

	if isCondBranch(op) {
		return w.condBranch(op, offset)
	}

	switch op {
	case opGoto:
		target := offset + int(w.s2())
		w.emit(Instruction{Op: OpBr, RawTargets: []int{target}})
		return nil
	case opGotoW:
		target := offset + int(w.s4())
		w.emit(Instruction{Op: OpBr, RawTargets: []int{target}})
		return nil
	case opTableswitch:
		return w.tableswitch(offset)
	case opLookupswitch:
		return w.lookupswitch(offset)
	case opIReturn, opFReturn, opLReturn, opDReturn, opAReturn:
		t, err := w.stack.Pop()
		if err != nil {
			return err
		}
		w.emit(Instruction{Op: OpReturn, Type: t})
		return nil
	case opReturn:
		w.emit(Instruction{Op: OpReturn})
		return nil
	case opGetStatic, opPutStatic:
		return w.staticField(op)
	case opGetField, opPutField:
		return w.instanceField(op)
	case opNew:
		return w.newObject()
	case opNewarray:
		return w.newarray()
	case opAnewarray:
		return w.anewarray()
	case opMultianewarray:
		return w.multianewarray()
	case opArraylength:
		if _, err := w.stack.PopExpectRef(); err != nil {
			return err
		}
		w.emit(Instruction{Op: OpArray, ArrayOp: "len"})
		w.stack.Push(wasmtype.I32)
		return nil
	case opIALoad, opLALoad, opFALoad, opDALoad, opAALoad, opBALoad, opCALoad, opSALoad:
		return w.arrayLoad(op)
	case opIAStore, opLAStore, opFAStore, opDAStore, opAAStore, opBAStore, opCAStore, opSAStore:
		return w.arrayStore(op)
	case opInvokeStatic, opInvokeSpecial:
		return w.invokeStaticLike(op)
	case opInvokeVirtual, opInvokeInterface:
		return w.invokeVirtual(op)
	case opInvokeDynamic:
		return w.invokeDynamic()
	case opCheckcast, opInstanceof:
		return w.typeCheck(op)
	case opAthrow:
		if _, err := w.stack.Pop(); err != nil {
			return err
		}
		w.emit(Instruction{Op: OpThrow})
		return nil
	case opMonitorenter, opMonitorexit:
		// spec.md §4.3/§9: locks have no semantics in a single-threaded
		// target; the reference is dropped. Pinned intentionally, not a
		// TODO (see Open Questions resolution in DESIGN.md).
		if _, err := w.stack.Pop(); err != nil {
			return err
		}
		w.emit(Instruction{Op: OpDrop})
		return nil
	case opPop:
		if _, err := w.stack.Pop(); err != nil {
			return err
		}
		w.emit(Instruction{Op: OpDrop})
		return nil
	case opPop2:
		if _, err := w.stack.Pop(); err != nil {
			return err
		}
		if _, err := w.stack.Pop(); err != nil {
			return err
		}
		w.emit(Instruction{Op: OpDrop})
		w.emit(Instruction{Op: OpDrop})
		return nil
	case opDup:
		t, ok := w.stack.Peek()
		if !ok {
			return j2werr.New(j2werr.KindTypeError, "dup on empty stack")
		}
		w.stack.Push(t)
		w.emit(Instruction{Op: OpLocalTee, Type: t}) // dup modeled as a tee through a scratch local at emission time
		return nil
	case opSwap:
		a, err := w.stack.Pop()
		if err != nil {
			return err
		}
		b, err := w.stack.Pop()
		if err != nil {
			return err
		}
		w.stack.Push(a)
		w.stack.Push(b)
		w.emit(Instruction{Op: OpTable, TableOp: "swap"})
		return nil
	}

	return j2werr.Newf(j2werr.KindUnsupported, "unsupported opcode 0x%02x at offset %d", op, offset).At(w.curLine)
}
