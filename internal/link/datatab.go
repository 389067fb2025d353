package link

import "github.com/jacobin-wasm/j2w/internal/leb128"

// DataLayout is the single byte stream described in spec.md §4.6:
// "Serializes ... the vtable of every reachable type ... then the
// type-table ... then the string table ... Returns the starting byte
// offset of each region."
type DataLayout struct {
	Bytes []byte

	VtableRegionOffset uint32
	TypeTableOffset     uint32 // array of uint32 vtable offsets, indexed by class-index
	StringTableOffset   uint32

	// VtableOffsetOf maps a class index to the byte offset of its vtable
	// within Bytes, used by the compiler's patchNewDefaultHeaders to seed
	// the vtable-pointer field of `struct.new_default` allocations.
	VtableOffsetOf []uint32
	// StringOffsetOf maps a string-pool index to the byte offset of its
	// length-prefixed UTF-8 payload.
	StringOffsetOf []uint32
}

// BuildDataLayout concatenates the three regions in the mandated order.
// vtables must already be in class-index order (vtables[i].ClassIndex == i).
func BuildDataLayout(vtables []*Vtable, strings *StringPool) *DataLayout {
	var buf []byte

	vtableOffsetOf := make([]uint32, len(vtables))
	for i, v := range vtables {
		vtableOffsetOf[i] = uint32(len(buf))
		buf = append(buf, v.Serialize()...)
	}

	typeTableOffset := uint32(len(buf))
	for _, off := range vtableOffsetOf {
		buf = append(buf, le32(off)...)
	}

	stringTableOffset := uint32(len(buf))
	entries := strings.Entries()
	stringOffsetOf := make([]uint32, len(entries))
	for i, e := range entries {
		stringOffsetOf[i] = uint32(len(buf))
		buf = append(buf, leb128.EncodeUint32(uint32(len(e.Content)))...)
		buf = append(buf, e.Content...)
	}

	return &DataLayout{
		Bytes:               buf,
		VtableRegionOffset:  0,
		TypeTableOffset:     typeTableOffset,
		StringTableOffset:   stringTableOffset,
		VtableOffsetOf:      vtableOffsetOf,
		StringOffsetOf:      stringOffsetOf,
	}
}

func le32(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}
