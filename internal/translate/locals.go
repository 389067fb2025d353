package translate

import "github.com/jacobin-wasm/j2w/internal/wasmtype"

// LocalAllocator maps (JVM local slot, value type) pairs to dense
// WebAssembly local indices. long/double values occupy one JVM-visible
// slot pair but get a single WebAssembly local (spec.md §4.3, testable
// property 4): since both halves of the pair are only ever addressed
// through the low slot's opcode (lload/dload/lstore/dstore), keying on the
// low slot index alone naturally collapses them. Distinct types stored
// into the same JVM slot get distinct WebAssembly locals, because the key
// includes the type.
type LocalAllocator struct {
	index map[localKey]uint32
	order []wasmtype.ValueType // WASM local index -> its type
}

type localKey struct {
	slot int
	typ  wasmtype.ValueType
}

func NewLocalAllocator() *LocalAllocator {
	return &LocalAllocator{index: make(map[localKey]uint32)}
}

// Get returns the WebAssembly local index for (slot, t), allocating a new
// one on first use.
func (a *LocalAllocator) Get(slot int, t wasmtype.ValueType) uint32 {
	key := localKey{slot, t}
	if idx, ok := a.index[key]; ok {
		return idx
	}
	idx := uint32(len(a.order))
	a.index[key] = idx
	a.order = append(a.order, t)
	return idx
}

// Types returns the WebAssembly local declarations in allocation order,
// suitable for the code section's run-length-encoded locals list.
func (a *LocalAllocator) Types() []wasmtype.ValueType { return a.order }
