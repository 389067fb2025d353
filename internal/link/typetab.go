// Package link implements the module linker (spec.md §4.5/§4.6): the
// function and type manager, the vtable/string/class-constant tables, the
// invokedynamic synthesis for lambdas and string concatenation, and the
// on-demand classpath search across library archives.
package link

import (
	"github.com/jacobin-wasm/j2w/internal/j2werr"
	"github.com/jacobin-wasm/j2w/internal/wasmtype"
)

// ClassKind distinguishes how a reference type's vtable/layout behaves.
type ClassKind int

const (
	KindNormal ClassKind = iota
	KindArray
	KindArrayNative
	KindPrimitive
	KindLambda
)

// ClassInfo is the type manager's record for one reference type: its
// stable class index, field layout, and ancestor chain for instanceof
// tests (spec.md §4.2).
type ClassInfo struct {
	Index      uint32
	Name       string
	Kind       ClassKind
	Super      string // "" for java.lang.Object / array root
	Interfaces []string
	Fields     []wasmtype.StructField // includes inherited fields, in layout order
	ArrayElem  *wasmtype.RefType       // for KindArray/KindArrayNative

	// Ancestors is the flattened set of class indices this class is a
	// subtype of (self, super chain, and all interfaces, transitively),
	// used by wasmtype.IsSubtypeOf and by the vtable's instanceof list.
	Ancestors []uint32
}

// TypeTable assigns dense class indices to reference types and materializes
// their field layout (spec.md §4.2: "the very first field is always a
// vtable pointer ... followed by a class-index, followed by declared
// instance fields inherited from the super chain in order").
type TypeTable struct {
	byName  map[string]*ClassInfo
	byIndex []*ClassInfo
}

func NewTypeTable() *TypeTable {
	return &TypeTable{byName: make(map[string]*ClassInfo)}
}

// Lookup returns the ClassInfo for name, or nil if not yet registered.
func (t *TypeTable) Lookup(name string) *ClassInfo { return t.byName[name] }

// Get returns the ClassInfo for a class index.
func (t *TypeTable) Get(index uint32) *ClassInfo {
	if int(index) >= len(t.byIndex) {
		return nil
	}
	return t.byIndex[index]
}

// Len reports how many classes are registered; safe to call while more are
// being appended (spec.md §5: "iterating a manager while appending is
// safe").
func (t *TypeTable) Len() int { return len(t.byIndex) }

// Register assigns a fresh class index to name (idempotent: a second call
// with the same name returns the existing entry) and computes its field
// layout given the already-registered super class, if any.
func (t *TypeTable) Register(name string, kind ClassKind, super string, interfaces []string, ownFields []wasmtype.StructField) (*ClassInfo, error) {
	if existing, ok := t.byName[name]; ok {
		return existing, nil
	}

	var inherited []wasmtype.StructField
	var ancestors []uint32
	if super != "" {
		superInfo, ok := t.byName[super]
		if !ok {
			return nil, j2werr.Newf(j2werr.KindLinkError, "class %q registered before its super class %q", name, super)
		}
		inherited = append(inherited, superInfo.Fields...)
		ancestors = append(ancestors, superInfo.Ancestors...)
	}

	for _, iface := range interfaces {
		ifaceInfo, ok := t.byName[iface]
		if !ok {
			return nil, j2werr.Newf(j2werr.KindLinkError, "class %q registered before its interface %q", name, iface)
		}
		ancestors = append(ancestors, ifaceInfo.Index)
		ancestors = append(ancestors, ifaceInfo.Ancestors...)
	}

	index := uint32(len(t.byIndex))
	ancestors = append(ancestors, index)

	fields := make([]wasmtype.StructField, 0, 2+len(inherited)+len(ownFields))
	fields = append(fields, wasmtype.StructField{Name: "$vtable", Type: wasmtype.I32})
	fields = append(fields, wasmtype.StructField{Name: "$class_index", Type: wasmtype.I32})
	fields = append(fields, inherited...)
	fields = append(fields, ownFields...)

	info := &ClassInfo{
		Index: index, Name: name, Kind: kind, Super: super, Interfaces: interfaces,
		Fields: fields, Ancestors: dedupUint32(ancestors),
	}
	t.byName[name] = info
	t.byIndex = append(t.byIndex, info)
	return info, nil
}

// RegisterArray registers (idempotently) the array type of elem, synthesizing
// a one-field struct per spec.md §3 ("Array type: a struct type whose single
// field is a native array").
func (t *TypeTable) RegisterArray(name string, elem wasmtype.RefType, elemValueType wasmtype.ValueType, mutable bool) (*ClassInfo, error) {
	if existing, ok := t.byName[name]; ok {
		return existing, nil
	}
	info, err := t.Register(name, KindArray, "", nil, []wasmtype.StructField{
		{Name: "$elements", Type: elemValueType, Ref: &elem, Mutable: mutable},
	})
	if err != nil {
		return nil, err
	}
	info.ArrayElem = &elem
	return info, nil
}

// FieldIndex returns the struct slot for a named field, counting the two
// hidden header fields (spec.md §4.3: "struct.get/set indexed by the
// field's position in the class's struct layout").
func (c *ClassInfo) FieldIndex(name string) (int, error) {
	for i, f := range c.Fields {
		if f.Name == name {
			return i, nil
		}
	}
	return 0, j2werr.Newf(j2werr.KindLinkError, "class %q has no field %q", c.Name, name)
}

// IsSubtypeOf implements spec.md §4.2's subtype rule via the flattened
// ancestor list computed at registration time.
func (c *ClassInfo) IsSubtypeOf(super *ClassInfo) bool {
	return wasmtype.IsSubtypeOf(c.Ancestors, super.Index)
}

func dedupUint32(in []uint32) []uint32 {
	seen := make(map[uint32]bool, len(in))
	out := in[:0]
	for _, v := range in {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
