package link

// VMethodTable assigns each virtual method of a class a stable slot index,
// preserving the invariant of spec.md §4.5: "each concrete overriding
// method occupies the same slot offset as the nearest super-class slot it
// overrides". A class inherits its super's assignment wholesale and only
// appends slots for methods its super never declared.
type VMethodTable struct {
	slotOf map[string]int // method simple-name+descriptor -> slot index
	order  []string       // slot index -> key, for serialization
}

// NewVMethodTable builds the table for a class given its super's table
// (nil for java.lang.Object) and the ordered list of virtual methods the
// class itself declares or overrides, identified by "name+descriptor".
func NewVMethodTable(super *VMethodTable, declared []string) *VMethodTable {
	t := &VMethodTable{slotOf: make(map[string]int)}
	if super != nil {
		for key, slot := range super.slotOf {
			t.slotOf[key] = slot
		}
		t.order = append(t.order, super.order...)
	}
	for _, key := range declared {
		if _, overrides := t.slotOf[key]; overrides {
			continue // keeps the inherited slot index
		}
		t.slotOf[key] = len(t.order)
		t.order = append(t.order, key)
	}
	return t
}

// SlotOf returns the vtable slot for a method key ("name+descriptor"),
// and whether it is declared anywhere in the chain.
func (t *VMethodTable) SlotOf(key string) (int, bool) {
	slot, ok := t.slotOf[key]
	return slot, ok
}

// NumSlots is the number of virtual method slots, used as the size of the
// vmethod region of the serialized vtable.
func (t *VMethodTable) NumSlots() int { return len(t.order) }

// Vtable is the fully materialized, per-class metadata block described in
// spec.md §4.5/GLOSSARY: "a name pointer, an array-element-class index, an
// instanceof list, and virtual method function pointers".
type Vtable struct {
	ClassIndex            uint32
	TypeNameOffset        uint32 // byte offset of the class-name string in the string region
	ArrayElementClassIndex uint32
	InstanceofList        []uint32 // ancestor class indices, per ClassInfo.Ancestors
	VMethods              []uint32 // function ids, slot-indexed; 0 for an unfilled abstract slot
}

// Serialize renders the vtable as the fixed little-endian uint32 record
// described in §4.5: [type-name-offset, array-element-class-index,
// instanceof-length, instanceof-class-id0..., vmethod0, vmethod1, ...].
func (v *Vtable) Serialize() []byte {
	words := make([]uint32, 0, 3+len(v.InstanceofList)+len(v.VMethods))
	words = append(words, v.TypeNameOffset, v.ArrayElementClassIndex, uint32(len(v.InstanceofList)))
	words = append(words, v.InstanceofList...)
	words = append(words, v.VMethods...)

	out := make([]byte, len(words)*4)
	for i, w := range words {
		out[i*4+0] = byte(w)
		out[i*4+1] = byte(w >> 8)
		out[i*4+2] = byte(w >> 16)
		out[i*4+3] = byte(w >> 24)
	}
	return out
}

// WordCount is the number of 4-byte words Serialize will produce, used to
// compute the next vtable's starting offset without serializing early.
func (v *Vtable) WordCount() int {
	return 3 + len(v.InstanceofList) + len(v.VMethods)
}
