package translate

import (
	"fmt"

	"github.com/jacobin-wasm/j2w/internal/classfile"
	"github.com/jacobin-wasm/j2w/internal/j2werr"
	"github.com/jacobin-wasm/j2w/internal/jvmtype"
	"github.com/jacobin-wasm/j2w/internal/link"
	"github.com/jacobin-wasm/j2w/internal/wasmtype"
)

func isLoadFamily(op byte) bool {
	switch {
	case op == opILoad || op == opLLoad || op == opFLoad || op == opDLoad || op == opALoad:
		return true
	case op >= opILoad0 && op <= opALoad3:
		return true
	}
	return false
}

func isStoreFamily(op byte) bool {
	switch {
	case op == opIStore || op == opLStore || op == opFStore || op == opDStore || op == opAStore:
		return true
	case op >= opIStore0 && op <= opAStore3:
		return true
	}
	return false
}

// loadSlotInfo decodes a load/store opcode into its value type and,
// for the explicit-index forms, consumes the following index byte. The
// _0.._3 shorthand forms encode the slot in the opcode itself.
func loadSlotInfo(op byte, readIndex func() int) (wasmtype.ValueType, int) {
	switch {
	case op == opILoad || op == opIStore:
		return wasmtype.I32, readIndex()
	case op == opLLoad || op == opLStore:
		return wasmtype.I64, readIndex()
	case op == opFLoad || op == opFStore:
		return wasmtype.F32, readIndex()
	case op == opDLoad || op == opDStore:
		return wasmtype.F64, readIndex()
	case op == opALoad || op == opAStore:
		return wasmtype.StructRef, readIndex()
	case op >= opILoad0 && op <= opILoad3:
		return wasmtype.I32, int(op - opILoad0)
	case op >= opLLoad0 && op <= opLLoad3:
		return wasmtype.I64, int(op - opLLoad0)
	case op >= opFLoad0 && op <= opFLoad3:
		return wasmtype.F32, int(op - opFLoad0)
	case op >= opDLoad0 && op <= opDLoad3:
		return wasmtype.F64, int(op - opDLoad0)
	case op >= opALoad0 && op <= opALoad3:
		return wasmtype.StructRef, int(op - opALoad0)
	case op >= opIStore0 && op <= opIStore3:
		return wasmtype.I32, int(op - opIStore0)
	case op >= opLStore0 && op <= opLStore3:
		return wasmtype.I64, int(op - opLStore0)
	case op >= opFStore0 && op <= opFStore3:
		return wasmtype.F32, int(op - opFStore0)
	case op >= opDStore0 && op <= opDStore3:
		return wasmtype.F64, int(op - opDStore0)
	case op >= opAStore0 && op <= opAStore3:
		return wasmtype.StructRef, int(op - opAStore0)
	}
	return wasmtype.I32, 0
}

func (w *walker) load(op byte) error {
	typ, slot := loadSlotInfo(op, func() int { return int(w.u1()) })
	idx := w.locals.Get(slot, typ)
	w.emit(Instruction{Op: OpLocalGet, Type: typ, LocalIdx: idx})
	w.stack.Push(typ)
	return nil
}

func (w *walker) store(op byte) error {
	typ, slot := loadSlotInfo(op, func() int { return int(w.u1()) })
	if err := w.stack.PopExpect(typ); err != nil {
		return err
	}
	idx := w.locals.Get(slot, typ)
	w.emit(Instruction{Op: OpLocalSet, Type: typ, LocalIdx: idx})
	return nil
}

func (w *walker) wide() error {
	sub := w.u1()
	if sub == opIinc {
		slot := int(w.u2())
		delta := int32(w.s2())
		idx := w.locals.Get(slot, wasmtype.I32)
		w.emit(Instruction{Op: OpLocalGet, Type: wasmtype.I32, LocalIdx: idx})
		w.emit(Instruction{Op: OpConst, Type: wasmtype.I32, Const: ConstValue{I32: delta}})
		w.emit(Instruction{Op: OpNumeric, Type: wasmtype.I32, Numeric: NumAdd})
		w.emit(Instruction{Op: OpLocalSet, Type: wasmtype.I32, LocalIdx: idx})
		return nil
	}
	typ, _ := loadSlotInfo(sub, func() int { return 0 })
	slot := int(w.u2())
	switch {
	case isLoadFamily(sub):
		idx := w.locals.Get(slot, typ)
		w.emit(Instruction{Op: OpLocalGet, Type: typ, LocalIdx: idx})
		w.stack.Push(typ)
		return nil
	case isStoreFamily(sub):
		if err := w.stack.PopExpect(typ); err != nil {
			return err
		}
		idx := w.locals.Get(slot, typ)
		w.emit(Instruction{Op: OpLocalSet, Type: typ, LocalIdx: idx})
		return nil
	}
	return j2werr.Newf(j2werr.KindUnsupported, "unsupported wide sub-opcode 0x%02x", sub)
}

// arithmeticOp maps a JVM arithmetic/bitwise opcode to its NumericOp and
// operand type, excluding shifts (whose shift-count operand is always i32
// regardless of the shifted value's width, handled separately in step()).
func arithmeticOp(op byte) (NumericOp, wasmtype.ValueType, bool) {
	table := map[byte]struct {
		n NumericOp
		t wasmtype.ValueType
	}{
		opIAdd: {NumAdd, wasmtype.I32}, opLAdd: {NumAdd, wasmtype.I64}, opFAdd: {NumAdd, wasmtype.F32}, opDAdd: {NumAdd, wasmtype.F64},
		opISub: {NumSub, wasmtype.I32}, opLSub: {NumSub, wasmtype.I64}, opFSub: {NumSub, wasmtype.F32}, opDSub: {NumSub, wasmtype.F64},
		opIMul: {NumMul, wasmtype.I32}, opLMul: {NumMul, wasmtype.I64}, opFMul: {NumMul, wasmtype.F32}, opDMul: {NumMul, wasmtype.F64},
		opIDiv: {NumDiv, wasmtype.I32}, opLDiv: {NumDiv, wasmtype.I64}, opFDiv: {NumDiv, wasmtype.F32}, opDDiv: {NumDiv, wasmtype.F64},
		opIRem: {NumRem, wasmtype.I32}, opLRem: {NumRem, wasmtype.I64}, opFRem: {NumRem, wasmtype.F32}, opDRem: {NumRem, wasmtype.F64},
		opINeg: {NumNeg, wasmtype.I32}, opLNeg: {NumNeg, wasmtype.I64}, opFNeg: {NumNeg, wasmtype.F32}, opDNeg: {NumNeg, wasmtype.F64},
		opIAnd: {NumAnd, wasmtype.I32}, opLAnd: {NumAnd, wasmtype.I64},
		opIOr: {NumOr, wasmtype.I32}, opLOr: {NumOr, wasmtype.I64},
		opIXor: {NumXor, wasmtype.I32}, opLXor: {NumXor, wasmtype.I64},
	}
	e, ok := table[op]
	if !ok {
		return 0, 0, false
	}
	return e.n, e.t, true
}

func isShiftOp(op byte) (NumericOp, wasmtype.ValueType, bool) {
	switch op {
	case opIShl:
		return NumShl, wasmtype.I32, true
	case opLShl:
		return NumShl, wasmtype.I64, true
	case opIShr:
		return NumShr, wasmtype.I32, true
	case opLShr:
		return NumShr, wasmtype.I64, true
	case opIUshr:
		return NumShrU, wasmtype.I32, true
	case opLUshr:
		return NumShrU, wasmtype.I64, true
	}
	return 0, 0, false
}

func convertOp(op byte) (ConvertKind, wasmtype.ValueType, wasmtype.ValueType, bool) {
	table := map[byte]struct {
		k    ConvertKind
		from wasmtype.ValueType
		to   wasmtype.ValueType
	}{
		opI2L: {CvtI2L, wasmtype.I32, wasmtype.I64}, opI2F: {CvtI2F, wasmtype.I32, wasmtype.F32}, opI2D: {CvtI2D, wasmtype.I32, wasmtype.F64},
		opL2I: {CvtL2I, wasmtype.I64, wasmtype.I32}, opL2F: {CvtL2F, wasmtype.I64, wasmtype.F32}, opL2D: {CvtL2D, wasmtype.I64, wasmtype.F64},
		opF2I: {CvtF2I, wasmtype.F32, wasmtype.I32}, opF2L: {CvtF2L, wasmtype.F32, wasmtype.I64}, opF2D: {CvtF2D, wasmtype.F32, wasmtype.F64},
		opD2I: {CvtD2I, wasmtype.F64, wasmtype.I32}, opD2L: {CvtD2L, wasmtype.F64, wasmtype.I64}, opD2F: {CvtD2F, wasmtype.F64, wasmtype.F32},
		opI2B: {CvtI2B, wasmtype.I32, wasmtype.I32}, opI2C: {CvtI2C, wasmtype.I32, wasmtype.I32}, opI2S: {CvtI2S, wasmtype.I32, wasmtype.I32},
	}
	e, ok := table[op]
	if !ok {
		return 0, 0, 0, false
	}
	return e.k, e.from, e.to, true
}

func isCondBranch(op byte) bool {
	switch {
	case op >= opIfEq && op <= opIfLe:
		return true
	case op >= opIfICmpEq && op <= opIfACmpNe:
		return true
	case op == opIfnull || op == opIfnonnull:
		return true
	}
	return false
}

// condBranch handles all single-operand and two-operand comparison
// branches. The JVM fuses a compare and a branch into one opcode; rather
// than splitting that into a separate compare instruction followed by a
// generic br_if, the operands are popped here and the opcode itself is
// carried on the emitted OpBrIf's CondOp so a later stage can pick the
// matching WebAssembly comparison.
func (w *walker) condBranch(op byte, offset int) error {
	target := offset + int(int16(w.u2()))
	switch {
	case op >= opIfEq && op <= opIfLe:
		if err := w.stack.PopExpect(wasmtype.I32); err != nil {
			return err
		}
	case op >= opIfICmpEq && op <= opIfICmpLe:
		if err := w.stack.PopExpect(wasmtype.I32); err != nil {
			return err
		}
		if err := w.stack.PopExpect(wasmtype.I32); err != nil {
			return err
		}
	case op == opIfACmpEq || op == opIfACmpNe:
		if _, err := w.stack.PopExpectRef(); err != nil {
			return err
		}
		if _, err := w.stack.PopExpectRef(); err != nil {
			return err
		}
	case op == opIfnull || op == opIfnonnull:
		if _, err := w.stack.Pop(); err != nil {
			return err
		}
	}
	w.emit(Instruction{Op: OpBrIf, CondOp: op, RawTargets: []int{target}})
	return nil
}

func (w *walker) compare(op byte, kind NumericOp) error {
	var t wasmtype.ValueType
	switch op {
	case opLCmp:
		t = wasmtype.I64
	case opFCmpL, opFCmpG:
		t = wasmtype.F32
	case opDCmpL, opDCmpG:
		t = wasmtype.F64
	}
	if err := w.stack.PopExpect(t); err != nil {
		return err
	}
	if err := w.stack.PopExpect(t); err != nil {
		return err
	}
	w.emit(Instruction{Op: OpNumeric, Type: t, Numeric: kind})
	w.stack.Push(wasmtype.I32)
	return nil
}

func (w *walker) ldc(index int) error {
	e, err := w.cp.Get(uint16(index))
	if err != nil {
		return err
	}
	switch e.Tag {
	case classfile.TagInteger:
		w.emit(Instruction{Op: OpConst, Type: wasmtype.I32, Const: ConstValue{I32: e.Int32}})
		w.stack.Push(wasmtype.I32)
	case classfile.TagFloat:
		w.emit(Instruction{Op: OpConst, Type: wasmtype.F32, Const: ConstValue{F32: e.Float32}})
		w.stack.Push(wasmtype.F32)
	case classfile.TagString:
		idx := w.ctx.Strings.Intern(e.Name)
		w.emit(Instruction{Op: OpConst, Type: wasmtype.StructRef, Const: ConstValue{IsStringRef: true, StringIndex: idx}})
		w.stack.Push(wasmtype.StructRef)
	case classfile.TagClass:
		w.emit(Instruction{Op: OpConst, Type: wasmtype.I32, Const: ConstValue{IsStringRef: false}})
		w.stack.Push(wasmtype.I32)
	default:
		return j2werr.Newf(j2werr.KindDecodeError, "ldc of unsupported constant tag %d", e.Tag)
	}
	return nil
}

func (w *walker) ldc2(index int) error {
	e, err := w.cp.Get(uint16(index))
	if err != nil {
		return err
	}
	switch e.Tag {
	case classfile.TagLong:
		w.emit(Instruction{Op: OpConst, Type: wasmtype.I64, Const: ConstValue{I64: e.Int64}})
		w.stack.Push(wasmtype.I64)
	case classfile.TagDouble:
		w.emit(Instruction{Op: OpConst, Type: wasmtype.F64, Const: ConstValue{F64: e.Float64}})
		w.stack.Push(wasmtype.F64)
	default:
		return j2werr.Newf(j2werr.KindDecodeError, "ldc2_w of unsupported constant tag %d", e.Tag)
	}
	return nil
}

func (w *walker) tableswitch(offset int) error {
	if err := w.stack.PopExpect(wasmtype.I32); err != nil {
		return err
	}
	// pad to 4-byte alignment relative to the start of the method body
	for (w.pos)%4 != 0 {
		w.u1()
	}
	def := offset + int(w.s4())
	low := int(w.s4())
	high := int(w.s4())
	var targets []int
	for k := low; k <= high; k++ {
		targets = append(targets, offset+int(w.s4()))
	}
	targets = append(targets, def)
	w.emit(Instruction{Op: OpBrTable, RawTargets: targets})
	return nil
}

func (w *walker) lookupswitch(offset int) error {
	if err := w.stack.PopExpect(wasmtype.I32); err != nil {
		return err
	}
	for (w.pos)%4 != 0 {
		w.u1()
	}
	def := offset + int(w.s4())
	count := int(w.s4())
	var targets []int
	for i := 0; i < count; i++ {
		w.s4() // match key; the restructurer needs only targets for br_table form
		targets = append(targets, offset+int(w.s4()))
	}
	targets = append(targets, def)
	w.emit(Instruction{Op: OpBrTable, RawTargets: targets})
	return nil
}

func (w *walker) staticField(op byte) error {
	idx := w.u2()
	e, err := w.cp.Get(idx)
	if err != nil {
		return err
	}
	ty, err := jvmtype.ParseFieldType(e.MemberDesc)
	if err != nil {
		return err
	}
	globalID := e.ClassName + "#" + e.MemberName
	wt := wasmtype.LowerKind(ty.Kind)
	if op == opGetStatic {
		w.emit(Instruction{Op: OpGlobalGet, Type: wt, GlobalID: globalID})
		w.stack.Push(wt)
	} else {
		if err := w.stack.PopExpect(wt); err != nil {
			return err
		}
		w.emit(Instruction{Op: OpGlobalSet, Type: wt, GlobalID: globalID})
	}
	return nil
}

func (w *walker) instanceField(op byte) error {
	idx := w.u2()
	e, err := w.cp.Get(idx)
	if err != nil {
		return err
	}
	ty, err := jvmtype.ParseFieldType(e.MemberDesc)
	if err != nil {
		return err
	}
	wt := wasmtype.LowerKind(ty.Kind)
	cls := w.ctx.Types.Lookup(e.ClassName)
	if cls == nil {
		return j2werr.Newf(j2werr.KindLinkError, "field access on unregistered class %s", e.ClassName)
	}
	fieldIdx, err := cls.FieldIndex(e.MemberName)
	if err != nil {
		return err
	}
	if op == opGetField {
		if _, err := w.stack.PopExpectRef(); err != nil {
			return err
		}
		w.emit(Instruction{Op: OpStruct, Type: wt, StructOp: "get", StructClass: cls.Index, StructField: fieldIdx})
		w.stack.Push(wt)
	} else {
		if err := w.stack.PopExpect(wt); err != nil {
			return err
		}
		if _, err := w.stack.PopExpectRef(); err != nil {
			return err
		}
		w.emit(Instruction{Op: OpStruct, Type: wt, StructOp: "set", StructClass: cls.Index, StructField: fieldIdx})
	}
	return nil
}

func (w *walker) newObject() error {
	idx := w.u2()
	e, err := w.cp.Get(idx)
	if err != nil {
		return err
	}
	cls := w.ctx.Types.Lookup(e.Name)
	if cls == nil {
		return j2werr.Newf(j2werr.KindLinkError, "new of unregistered class %s", e.Name)
	}
	w.emit(Instruction{Op: OpStruct, StructOp: "new_default", StructClass: cls.Index})
	w.stack.Push(wasmtype.StructRef)
	return nil
}

func arrayElemValueType(code byte) wasmtype.ValueType {
	switch code {
	case atFloat:
		return wasmtype.F32
	case atDouble:
		return wasmtype.F64
	case atLong:
		return wasmtype.I64
	default:
		return wasmtype.I32
	}
}

func (w *walker) newarray() error {
	code := w.u1()
	if err := w.stack.PopExpect(wasmtype.I32); err != nil {
		return err
	}
	w.emit(Instruction{Op: OpArray, ArrayOp: "new", Type: arrayElemValueType(code)})
	w.stack.Push(wasmtype.ArrayRef)
	return nil
}

func (w *walker) anewarray() error {
	idx := w.u2()
	e, err := w.cp.Get(idx)
	if err != nil {
		return err
	}
	if err := w.stack.PopExpect(wasmtype.I32); err != nil {
		return err
	}
	cls := w.ctx.Types.Lookup(e.Name)
	var classIdx uint32
	if cls != nil {
		classIdx = cls.Index
	}
	w.emit(Instruction{Op: OpArray, ArrayOp: "new", Type: wasmtype.StructRef, ArrayClass: classIdx})
	w.stack.Push(wasmtype.ArrayRef)
	return nil
}

func (w *walker) multianewarray() error {
	idx := w.u2()
	dims := int(w.u1())
	for i := 0; i < dims; i++ {
		if err := w.stack.PopExpect(wasmtype.I32); err != nil {
			return err
		}
	}
	e, err := w.cp.Get(idx)
	if err != nil {
		return err
	}
	cls := w.ctx.Types.Lookup(e.Name)
	var classIdx uint32
	if cls != nil {
		classIdx = cls.Index
	}
	w.emit(Instruction{Op: OpArray, ArrayOp: "new", Type: wasmtype.ArrayRef, ArrayClass: classIdx, StructField: dims})
	w.stack.Push(wasmtype.ArrayRef)
	return nil
}

func arrayOpType(op byte) wasmtype.ValueType {
	switch op {
	case opLALoad, opLAStore:
		return wasmtype.I64
	case opFALoad, opFAStore:
		return wasmtype.F32
	case opDALoad, opDAStore:
		return wasmtype.F64
	case opAALoad, opAAStore:
		return wasmtype.StructRef
	default:
		return wasmtype.I32
	}
}

func (w *walker) arrayLoad(op byte) error {
	if err := w.stack.PopExpect(wasmtype.I32); err != nil {
		return err
	}
	if _, err := w.stack.PopExpectRef(); err != nil {
		return err
	}
	t := arrayOpType(op)
	w.emit(Instruction{Op: OpArray, ArrayOp: "get", Type: t})
	w.stack.Push(t)
	return nil
}

func (w *walker) arrayStore(op byte) error {
	t := arrayOpType(op)
	if err := w.stack.PopExpect(t); err != nil {
		return err
	}
	if err := w.stack.PopExpect(wasmtype.I32); err != nil {
		return err
	}
	if _, err := w.stack.PopExpectRef(); err != nil {
		return err
	}
	w.emit(Instruction{Op: OpArray, ArrayOp: "set", Type: t})
	return nil
}

func (w *walker) popArgs(desc string) ([]*jvmtype.Type, error) {
	params, _, err := jvmtype.ParseMethodSignature(desc)
	if err != nil {
		return nil, err
	}
	for i := len(params) - 1; i >= 0; i-- {
		if err := w.stack.PopExpect(wasmtype.LowerKind(params[i].Kind)); err != nil {
			return nil, err
		}
	}
	return params, nil
}

func (w *walker) pushResult(desc string) error {
	_, result, err := jvmtype.ParseMethodSignature(desc)
	if err != nil {
		return err
	}
	if result.Kind != jvmtype.KindVoid {
		w.stack.Push(wasmtype.LowerKind(result.Kind))
	}
	return nil
}

func (w *walker) invokeStaticLike(op byte) error {
	idx := w.u2()
	e, err := w.cp.Get(idx)
	if err != nil {
		return err
	}
	if _, err := w.popArgs(e.MemberDesc); err != nil {
		return err
	}
	if op == opInvokeSpecial {
		if _, err := w.stack.PopExpectRef(); err != nil {
			return err
		}
	}
	params, result, err := jvmtype.ParseMethodSignature(e.MemberDesc)
	if err != nil {
		return err
	}
	sig := wasmtype.LowerSignature(params, result, op == opInvokeStatic)
	fn := link.FuncName{Class: e.ClassName, Method: e.MemberName, Descriptor: e.MemberDesc}
	entry := w.ctx.Funcs.Register(fn, sig, link.FuncCode)
	w.emit(Instruction{Op: OpCall, CallFunc: fn.String(), CallTypeID: entry.TypeID})
	return w.pushResult(e.MemberDesc)
}

// invokeVirtual lowers invokevirtual/invokeinterface to the vtable-dispatch
// call sequence of spec.md §4.5: the receiver's vtable pointer is loaded via
// struct.get and the target slot's function pointer is invoked through
// call_indirect with the statically resolved function-type id. This stage
// only needs the signature to type-check the stack; the vtable slot is
// filled into StructField later by the compiler's resolveVirtualSlots, and
// the emitter loads the function index straight from that slot, for
// interface calls too (no instanceof-list scan is performed).
func (w *walker) invokeVirtual(op byte) error {
	idx := w.u2()
	e, err := w.cp.Get(idx)
	if err != nil {
		return err
	}
	if op == opInvokeInterface {
		w.u2() // count + 0 trailer, historical
	}
	if _, err := w.popArgs(e.MemberDesc); err != nil {
		return err
	}
	if _, err := w.stack.PopExpectRef(); err != nil {
		return err
	}
	cls := w.ctx.Types.Lookup(e.ClassName)
	var classIdx uint32
	if cls != nil {
		classIdx = cls.Index
	}
	params, result, err := jvmtype.ParseMethodSignature(e.MemberDesc)
	if err != nil {
		return err
	}
	sig := wasmtype.LowerSignature(params, result, false)
	fn := link.FuncName{Class: e.ClassName, Method: e.MemberName, Descriptor: e.MemberDesc}
	entry := w.ctx.Funcs.Register(fn, sig, link.FuncAbstract)
	w.emit(Instruction{
		Op: OpCallIndirect, CallFunc: fn.String(), CallTypeID: entry.TypeID,
		StructClass: classIdx,
	})
	return w.pushResult(e.MemberDesc)
}

func (w *walker) invokeDynamic() error {
	idx := w.u2()
	w.u2() // trailing zero bytes
	e, err := w.cp.Get(idx)
	if err != nil {
		return err
	}
	if e.Tag != classfile.TagInvokeDynamic {
		return j2werr.New(j2werr.KindDecodeError, "invokedynamic does not reference an InvokeDynamic constant")
	}
	site := w.dynSite
	w.dynSite++

	if _, err := w.popArgs(e.DynDesc); err != nil {
		return err
	}
	callFunc := fmt.Sprintf("$dynsite$%d$%s", w.ctx.CallSiteBase+site, e.DynName)
	w.dynSites = append(w.dynSites, DynamicSite{
		CallFunc: callFunc, BootstrapIndex: e.BootstrapIndex, Name: e.DynName, Desc: e.DynDesc,
	})
	w.emit(Instruction{
		Op:       OpCall,
		CallFunc: callFunc,
	})
	return w.pushResult(e.DynDesc)
}

func (w *walker) typeCheck(op byte) error {
	idx := w.u2()
	e, err := w.cp.Get(idx)
	if err != nil {
		return err
	}
	cls := w.ctx.Types.Lookup(e.Name)
	var classIdx uint32
	if cls != nil {
		classIdx = cls.Index
	}
	if _, err := w.stack.PopExpectRef(); err != nil {
		return err
	}
	if op == opCheckcast {
		w.emit(Instruction{Op: OpStruct, StructOp: "checkcast", StructClass: classIdx})
		w.stack.Push(wasmtype.StructRef)
	} else {
		w.emit(Instruction{Op: OpStruct, StructOp: "instanceof", StructClass: classIdx})
		w.stack.Push(wasmtype.I32)
	}
	return nil
}
