package translate

import (
	"github.com/jacobin-wasm/j2w/internal/j2werr"
	"github.com/jacobin-wasm/j2w/internal/wasmtype"
)

// OperandStack is the type-tracked operand stack the translator walks the
// bytecode with (spec.md §4.3). It only tracks types, never values: the
// actual value stack is WebAssembly's own at execution time.
type OperandStack struct {
	types []wasmtype.ValueType
}

func (s *OperandStack) Push(t wasmtype.ValueType) { s.types = append(s.types, t) }

func (s *OperandStack) Pop() (wasmtype.ValueType, error) {
	if len(s.types) == 0 {
		return 0, j2werr.New(j2werr.KindTypeError, "operand stack underflow")
	}
	t := s.types[len(s.types)-1]
	s.types = s.types[:len(s.types)-1]
	return t, nil
}

// PopExpect pops and verifies the popped type is want, failing with
// TypeError otherwise (spec.md §7: "TypeError — an operand-stack type
// mismatch the translator cannot reconcile").
func (s *OperandStack) PopExpect(want wasmtype.ValueType) error {
	got, err := s.Pop()
	if err != nil {
		return err
	}
	if got != want {
		return j2werr.Newf(j2werr.KindTypeError, "operand stack type mismatch: want %s, got %s", want, got)
	}
	return nil
}

// PopExpectRef pops and verifies the popped type is some reference kind
// (StructRef or ArrayRef). The JVM's aload/astore family does not
// statically distinguish object references from array references the way
// this stack's type tags do — that distinction is only recovered from
// static descriptors where one is available — so any reference-producing
// instruction (receiver loads, checkcast operands, array operands reached
// through a plain local) must accept either tag here.
func (s *OperandStack) PopExpectRef() (wasmtype.ValueType, error) {
	got, err := s.Pop()
	if err != nil {
		return 0, err
	}
	if got != wasmtype.StructRef && got != wasmtype.ArrayRef {
		return 0, j2werr.Newf(j2werr.KindTypeError, "operand stack type mismatch: want a reference type, got %s", got)
	}
	return got, nil
}

func (s *OperandStack) Peek() (wasmtype.ValueType, bool) {
	if len(s.types) == 0 {
		return 0, false
	}
	return s.types[len(s.types)-1], true
}

func (s *OperandStack) Len() int { return len(s.types) }

// Snapshot returns a copy of the current stack shape, used by the
// restructurer to verify type-preservation across block boundaries
// (spec.md §4.4: "type-preserving").
func (s *OperandStack) Snapshot() []wasmtype.ValueType {
	out := make([]wasmtype.ValueType, len(s.types))
	copy(out, s.types)
	return out
}
