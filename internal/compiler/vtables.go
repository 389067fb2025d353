package compiler

import (
	"github.com/jacobin-wasm/j2w/internal/classfile"
	"github.com/jacobin-wasm/j2w/internal/link"
)

// vmethodKey is the "name+descriptor" identity spec.md §4.5 slots methods
// by: two methods with the same key in a super/sub pair occupy the same
// vtable slot.
func vmethodKey(m *classfile.Method) string { return m.Name + m.Descriptor }

// isVirtual reports whether m participates in virtual dispatch: instance
// methods that are neither constructors nor private (spec.md §4.5 only
// slots overridable methods; constructors and private methods are always
// called directly via invokespecial, never through a vtable).
func isVirtual(m *classfile.Method) bool {
	if m.IsStatic() || m.IsConstructor() || m.IsClinit() {
		return false
	}
	return m.AccessFlags&classfile.AccPrivate == 0
}

// buildVMethodTable constructs cf's VMethodTable given its already-built
// super table (nil for java.lang.Object) and the super's own full,
// slot-ordered key list, preserving inherited slot indices (spec.md
// §4.5: "each concrete overriding method occupies the same slot offset as
// the nearest super-class slot it overrides"). It returns the table
// itself plus this class's full key list (super's, then any keys it adds)
// for the data layout pass to walk without reaching into the table's
// private internals.
func buildVMethodTable(cf *classfile.ClassFile, super *link.VMethodTable, superKeys []string) (*link.VMethodTable, []string) {
	var declared []string
	for _, m := range cf.Methods {
		if isVirtual(m) {
			declared = append(declared, vmethodKey(m))
		}
	}
	vmt := link.NewVMethodTable(super, declared)

	seen := make(map[string]bool, len(superKeys)+len(declared))
	keys := make([]string, 0, len(superKeys)+len(declared))
	for _, k := range superKeys {
		seen[k] = true
		keys = append(keys, k)
	}
	for _, k := range declared {
		if seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, k)
	}
	return vmt, keys
}

// buildVtables assembles one link.Vtable per registered class, in
// class-index order, ready for link.BuildDataLayout. nameOffsetOf maps a
// class's name-string pool index to its final byte offset in the data
// segment's string region; pass nil on the first (sizing) pass, when that
// offset is not yet known, and patch it in on the second.
func (c *Compiler) buildVtables(nameOffsetOf []uint32) []*link.Vtable {
	wasmIdx := c.funcs.WasmIndexTable()
	out := make([]*link.Vtable, c.types.Len())
	for i := 0; i < c.types.Len(); i++ {
		info := c.types.Get(uint32(i))
		vt := &link.Vtable{
			ClassIndex:     info.Index,
			InstanceofList: info.Ancestors,
		}
		if nameOffsetOf != nil {
			vt.TypeNameOffset = nameOffsetOf[c.classNameStringIdx[info.Name]]
		}
		if info.ArrayElem != nil {
			vt.ArrayElementClassIndex = info.ArrayElem.TypeIndex
		}
		if vmt, ok := c.vmethods[info.Name]; ok {
			vt.VMethods = make([]uint32, vmt.NumSlots())
			for _, key := range c.allKeys[info.Name] {
				slot, _ := vmt.SlotOf(key)
				if entry := c.resolveVirtualTarget(info.Name, key); entry != nil {
					vt.VMethods[slot] = wasmIdx[entry.ID]
				}
			}
		}
		out[i] = vt
	}
	return out
}

// resolveVirtualTarget finds the concrete method implementing key
// (name+descriptor) starting at className and walking up the super
// chain, returning the FuncManager entry for the first class that
// declares it.
func (c *Compiler) resolveVirtualTarget(className, key string) *link.FuncEntry {
	for className != "" {
		if decl, ok := c.methodByKey[className+"#"+key]; ok {
			return decl
		}
		info := c.types.Lookup(className)
		if info == nil {
			return nil
		}
		className = info.Super
	}
	return nil
}
