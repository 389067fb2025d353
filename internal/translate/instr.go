package translate

import "github.com/jacobin-wasm/j2w/internal/wasmtype"

// Op identifies the shape of an Instruction record (spec.md §3: "Instruction
// record emitted by the translator").
type Op int

const (
	OpConst Op = iota
	OpLocalGet
	OpLocalSet
	OpLocalTee
	OpGlobalGet
	OpGlobalSet
	OpNumeric
	OpConvert
	OpCall
	OpCallIndirect
	OpStruct
	OpArray
	OpMemory
	OpTable
	OpBlock
	OpElse
	OpEnd
	OpBr
	OpBrIf
	OpBrTable
	OpReturn
	OpUnreachable
	OpThrow
	OpRethrow
	OpCatch
	OpDrop
	OpSourceLine
)

// NumericOp names an arithmetic/bitwise/comparison family member; Type on
// the owning Instruction selects the operand width.
type NumericOp int

const (
	NumAdd NumericOp = iota
	NumSub
	NumMul
	NumDiv
	NumRem
	NumNeg
	NumAnd
	NumOr
	NumXor
	NumShl
	NumShr
	NumShrU
	NumCmpL // lcmp/dcmpl/fcmpl-style: NaN/less -> -1
	NumCmpG // fcmpg/dcmpg-style: NaN/greater -> 1
)

// ConvertKind enumerates JVM numeric conversions plus the non-JVM
// bit-reinterpret forms intrinsics use (spec.md §4.3).
type ConvertKind int

const (
	CvtI2L ConvertKind = iota
	CvtI2F
	CvtI2D
	CvtL2I
	CvtL2F
	CvtL2D
	CvtF2I
	CvtF2L
	CvtF2D
	CvtD2I
	CvtD2L
	CvtD2F
	CvtI2B
	CvtI2C
	CvtI2S
	CvtF2IRe // f2i_re: bit-reinterpret f32 as i32
	CvtI2FRe // i2f_re: bit-reinterpret i32 as f32
	CvtD2LRe // d2l_re: bit-reinterpret f64 as i64
	CvtL2DRe // l2d_re: bit-reinterpret i64 as f64
)

// BlockKind distinguishes the structured-control forms C4 produces.
type BlockKind int

const (
	BlockPlain BlockKind = iota
	BlockLoop
	BlockIf
	BlockTry
)

// ConstValue is the literal payload of an OpConst instruction; exactly one
// field is meaningful, selected by the instruction's Type.
type ConstValue struct {
	I32 int32
	I64 int64
	F32 float32
	F64 float64
	// StringIndex is set when this constant is a `ldc` of a string: the
	// allocated index into C6's string table (spec.md §4.3: "ldc of a
	// string pushes a reference whose index is allocated in the string
	// table").
	IsStringRef  bool
	StringIndex  uint32
}

// Instruction is one emitted record. Fields are populated according to Op;
// unused fields are zero.
type Instruction struct {
	Op     Op
	Type   wasmtype.ValueType
	Line   int // source line, 0 if unknown
	Offset int // bytecode offset this instruction was decoded from

	// RawTargets holds absolute bytecode-offset branch targets before
	// internal/control rewrites them into BreakDepth/BrTableTargets
	// (spec.md §4.4: "Input: the flat instruction list with raw branch
	// records carrying absolute bytecode targets"). For OpBr: one
	// unconditional target. For OpBrIf: one target; the fallthrough is the
	// next instruction. For OpBrTable: case targets in key order, default
	// last.
	RawTargets []int

	Const    ConstValue
	LocalIdx uint32
	GlobalID string

	Numeric NumericOp
	Convert ConvertKind

	CallFunc   string // FuncName.String()
	CallTypeID uint32

	StructOp    string // "get" | "set" | "new_default" | "checkcast" | "instanceof"
	StructClass uint32
	StructField int

	ArrayOp    string // "get" | "set" | "new" | "len"
	ArrayClass uint32

	MemoryOp     string
	MemoryOffset uint32
	MemoryAlign  uint32

	TableOp  string
	TableIdx uint32

	BlockKind   BlockKind
	ResultType  wasmtype.ValueType
	HasResult   bool

	// CondOp is the fused compare-and-branch opcode driving an OpBrIf
	// (ifeq..if_acmpne, ifnull/ifnonnull), carried verbatim so the
	// restructurer/emitter can choose the matching WebAssembly comparison.
	CondOp byte

	BreakDepth int

	// BrTableTargets holds the break depths for br_table, default last.
	BrTableTargets []int

	SourceFile string
}
