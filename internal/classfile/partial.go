package classfile

// Merge folds the methods and fields of a class annotated @Partial(target)
// into target, rewriting intra-class type references in the source's own
// constant pool entries from the source class name to the target's (spec.md
// §4.1: "@Partial ... merges its methods and fields into the target class,
// rewriting intra-class type references ... A merge adds members that do
// not already exist; existing members are preserved.").
func Merge(target, source *ClassFile) {
	rewritten := rewriteSelfReferences(source.ConstantPool, source.ThisClass, target.ThisClass)

	existingMethods := make(map[string]bool, len(target.Methods))
	for _, m := range target.Methods {
		existingMethods[m.Name+m.Descriptor] = true
	}
	for _, m := range source.Methods {
		if existingMethods[m.Name+m.Descriptor] {
			continue
		}
		target.Methods = append(target.Methods, m)
	}

	existingFields := make(map[string]bool, len(target.Fields))
	for _, f := range target.Fields {
		existingFields[f.Name+f.Descriptor] = true
	}
	for _, f := range source.Fields {
		if existingFields[f.Name+f.Descriptor] {
			continue
		}
		target.Fields = append(target.Fields, f)
	}

	target.ConstantPool = rewritten
}

// rewriteSelfReferences returns a shallow copy of pool with every TagClass
// entry named from equal to to; members merged from source reference their
// own class by name, and once merged they belong to the target class.
func rewriteSelfReferences(pool *Pool, from, to string) *Pool {
	out := &Pool{Entries: make([]Entry, len(pool.Entries))}
	copy(out.Entries, pool.Entries)
	for i, e := range out.Entries {
		if e.Tag == TagClass && e.Name == from {
			out.Entries[i].Name = to
		}
		if (e.Tag == TagFieldref || e.Tag == TagMethodref || e.Tag == TagInterfaceMethodref) && e.ClassName == from {
			out.Entries[i].ClassName = to
		}
	}
	return out
}
