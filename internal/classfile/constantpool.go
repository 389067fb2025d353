package classfile

import (
	"github.com/jacobin-wasm/j2w/internal/j2werr"
)

// Tag identifies the wire-format kind of a raw constant pool slot, per the
// JVM specification (§4.4).
type Tag byte

const (
	TagUTF8               Tag = 1
	TagInteger            Tag = 3
	TagFloat              Tag = 4
	TagLong               Tag = 5
	TagDouble             Tag = 6
	TagClass              Tag = 7
	TagString             Tag = 8
	TagFieldref           Tag = 9
	TagMethodref          Tag = 10
	TagInterfaceMethodref Tag = 11
	TagNameAndType        Tag = 12
	TagMethodHandle       Tag = 15
	TagMethodType         Tag = 16
	TagDynamic            Tag = 17
	TagInvokeDynamic      Tag = 18
	TagModule             Tag = 19
	TagPackage            Tag = 20
)

// Entry is one resolved constant pool slot (spec.md §3). Index 0 and the
// slot following each Long/Double entry are reserved sentinels and have Tag
// == 0.
type Entry struct {
	Tag Tag

	// TagUTF8
	UTF8 string

	// TagInteger / TagFloat / TagLong / TagDouble
	Int32   int32
	Int64   int64
	Float32 float32
	Float64 float64

	// TagClass / TagString / TagMethodType / TagModule / TagPackage:
	// resolved UTF-8 payload (class internal name, string contents,
	// method-type descriptor, module/package name).
	Name string

	// TagFieldref / TagMethodref / TagInterfaceMethodref
	ClassName  string
	MemberName string
	MemberDesc string

	// TagNameAndType
	NATName string
	NATDesc string

	// TagMethodHandle
	RefKind       byte // 1..9, see spec.md §4.1 / JVMS Table 5.3.5-A
	RefClassName  string
	RefMemberName string
	RefMemberDesc string
	RefIsField    bool

	// TagDynamic / TagInvokeDynamic
	BootstrapIndex int
	DynName        string
	DynDesc        string
}

// rawEntry is the wire-format payload before cross references are
// resolved; a slot is "unresolved" while any of its referenced indices
// still points at an unresolved neighbor.
type rawEntry struct {
	tag                      Tag
	nameIndex                uint16 // Class, MethodType, Module, Package
	stringIndex              uint16 // String
	classIndex, natIndex     uint16 // Fieldref/Methodref/InterfaceMethodref
	refKind                  byte   // MethodHandle
	refIndex                 uint16 // MethodHandle -> Fieldref/Methodref/InterfaceMethodref
	descriptorIndex          uint16 // NameAndType
	bootstrapMethodAttrIndex uint16 // Dynamic/InvokeDynamic
	int32Val                 int32
	int64Val                 int64
	float32Val               float32
	float64Val               float64
	utf8Val                  string
	resolved                 bool
}

// Pool is the fully resolved constant pool of a class. Entries are indexed
// 1..len(Entries)-1; Entries[0] is the reserved sentinel.
type Pool struct {
	Entries []Entry
}

// Get returns the entry at index, or a DecodeError if index is out of
// range or a reserved sentinel.
func (p *Pool) Get(index uint16) (*Entry, error) {
	if int(index) <= 0 || int(index) >= len(p.Entries) {
		return nil, j2werr.Newf(j2werr.KindDecodeError, "constant pool index %d out of range (size %d)", index, len(p.Entries))
	}
	e := &p.Entries[index]
	if e.Tag == 0 {
		return nil, j2werr.Newf(j2werr.KindDecodeError, "constant pool index %d is a reserved slot", index)
	}
	return e, nil
}

// UTF8At is a convenience for the common case of dereferencing a UTF8 slot.
func (p *Pool) UTF8At(index uint16) (string, error) {
	e, err := p.Get(index)
	if err != nil {
		return "", err
	}
	if e.Tag != TagUTF8 {
		return "", j2werr.Newf(j2werr.KindDecodeError, "constant pool index %d is not UTF8 (tag %d)", index, e.Tag)
	}
	return e.UTF8, nil
}

// readConstantPool reads the raw constant pool, then resolves cross
// references by fixed-point iteration (spec.md §4.1, testable property 2).
func readConstantPool(r *reader) (*Pool, error) {
	count, err := r.u2()
	if err != nil {
		return nil, err
	}
	raw := make([]rawEntry, count) // index 0 reserved; raw[0].tag == 0
	for i := 1; i < int(count); i++ {
		slot := i
		tag, err := r.u1()
		if err != nil {
			return nil, err
		}
		e := rawEntry{tag: Tag(tag)}
		switch Tag(tag) {
		case TagUTF8:
			length, err := r.u2()
			if err != nil {
				return nil, err
			}
			b, err := r.bytes(int(length))
			if err != nil {
				return nil, err
			}
			e.utf8Val = decodeModifiedUTF8(b)
			e.resolved = true
		case TagInteger:
			v, err := r.u4()
			if err != nil {
				return nil, err
			}
			e.int32Val = int32(v)
			e.resolved = true
		case TagFloat:
			v, err := r.u4()
			if err != nil {
				return nil, err
			}
			e.float32Val = decodeIEEE754Float32(v)
			e.resolved = true
		case TagLong:
			v, err := r.u8()
			if err != nil {
				return nil, err
			}
			e.int64Val = int64(v)
			e.resolved = true
			if i+1 >= int(count) {
				return nil, j2werr.New(j2werr.KindDecodeError, "long constant at the end of the pool has no reserved successor slot")
			}
			i++ // consume the sentinel slot following a long (spec.md §3)
		case TagDouble:
			v, err := r.u8()
			if err != nil {
				return nil, err
			}
			e.float64Val = decodeIEEE754Float64(v)
			e.resolved = true
			if i+1 >= int(count) {
				return nil, j2werr.New(j2werr.KindDecodeError, "double constant at the end of the pool has no reserved successor slot")
			}
			i++
		case TagClass, TagMethodType, TagModule, TagPackage:
			idx, err := r.u2()
			if err != nil {
				return nil, err
			}
			e.nameIndex = idx
		case TagString:
			idx, err := r.u2()
			if err != nil {
				return nil, err
			}
			e.stringIndex = idx
		case TagFieldref, TagMethodref, TagInterfaceMethodref:
			ci, err := r.u2()
			if err != nil {
				return nil, err
			}
			ni, err := r.u2()
			if err != nil {
				return nil, err
			}
			e.classIndex, e.natIndex = ci, ni
		case TagNameAndType:
			ni, err := r.u2()
			if err != nil {
				return nil, err
			}
			di, err := r.u2()
			if err != nil {
				return nil, err
			}
			e.nameIndex, e.descriptorIndex = ni, di
		case TagMethodHandle:
			rk, err := r.u1()
			if err != nil {
				return nil, err
			}
			ri, err := r.u2()
			if err != nil {
				return nil, err
			}
			e.refKind, e.refIndex = rk, ri
		case TagDynamic, TagInvokeDynamic:
			bi, err := r.u2()
			if err != nil {
				return nil, err
			}
			ni, err := r.u2()
			if err != nil {
				return nil, err
			}
			e.bootstrapMethodAttrIndex, e.natIndex = bi, ni
		default:
			return nil, j2werr.Newf(j2werr.KindDecodeError, "unknown constant pool tag %d at index %d", tag, i)
		}
		raw[slot] = e
	}
	return resolvePool(raw)
}

// resolvePool turns the raw, index-linked slots into fully dereferenced
// Entry values by repeated passes until every slot resolves or no slot
// makes progress in a pass (spec.md §4.1: CircularConstantPool).
func resolvePool(raw []rawEntry) (*Pool, error) {
	entries := make([]Entry, len(raw))
	resolved := make([]bool, len(raw))
	for i, e := range raw {
		if e.tag == 0 {
			resolved[i] = true
			continue
		}
		if e.resolved {
			entries[i] = leafEntry(e)
			resolved[i] = true
		}
	}

	remaining := countUnresolved(resolved)
	for remaining > 0 {
		progressed := false
		for i, e := range raw {
			if resolved[i] || e.tag == 0 {
				continue
			}
			ok, entry, err := tryResolve(e, raw, resolved, entries)
			if err != nil {
				return nil, err
			}
			if ok {
				entries[i] = entry
				resolved[i] = true
				progressed = true
			}
		}
		if !progressed {
			return nil, j2werr.New(j2werr.KindCircularConstantPool, "constant pool resolution made no progress with unresolved entries remaining")
		}
		remaining = countUnresolved(resolved)
	}
	return &Pool{Entries: entries}, nil
}

func countUnresolved(resolved []bool) int {
	n := 0
	for _, r := range resolved {
		if !r {
			n++
		}
	}
	return n
}

func leafEntry(e rawEntry) Entry {
	switch e.tag {
	case TagUTF8:
		return Entry{Tag: TagUTF8, UTF8: e.utf8Val}
	case TagInteger:
		return Entry{Tag: TagInteger, Int32: e.int32Val}
	case TagFloat:
		return Entry{Tag: TagFloat, Float32: e.float32Val}
	case TagLong:
		return Entry{Tag: TagLong, Int64: e.int64Val}
	case TagDouble:
		return Entry{Tag: TagDouble, Float64: e.float64Val}
	}
	return Entry{Tag: e.tag}
}

// tryResolve attempts to resolve one raw slot given the entries already
// resolved in this pass; returns ok=false if a dependency is not yet ready.
func tryResolve(e rawEntry, raw []rawEntry, resolved []bool, entries []Entry) (bool, Entry, error) {
	for _, idx := range []int{int(e.nameIndex), int(e.descriptorIndex), int(e.stringIndex), int(e.classIndex), int(e.natIndex), int(e.refIndex)} {
		if idx >= len(resolved) {
			return false, Entry{}, j2werr.Newf(j2werr.KindDecodeError, "constant pool index %d out of range", idx)
		}
	}
	switch e.tag {
	case TagClass:
		if !resolved[e.nameIndex] {
			return false, Entry{}, nil
		}
		name := entries[e.nameIndex].UTF8
		return true, Entry{Tag: TagClass, Name: name}, nil
	case TagMethodType:
		if !resolved[e.nameIndex] {
			return false, Entry{}, nil
		}
		return true, Entry{Tag: TagMethodType, Name: entries[e.nameIndex].UTF8}, nil
	case TagModule, TagPackage:
		if !resolved[e.nameIndex] {
			return false, Entry{}, nil
		}
		return true, Entry{Tag: e.tag, Name: entries[e.nameIndex].UTF8}, nil
	case TagString:
		if !resolved[e.stringIndex] {
			return false, Entry{}, nil
		}
		return true, Entry{Tag: TagString, Name: entries[e.stringIndex].UTF8}, nil
	case TagNameAndType:
		if !resolved[e.nameIndex] || !resolved[e.descriptorIndex] {
			return false, Entry{}, nil
		}
		return true, Entry{Tag: TagNameAndType, NATName: entries[e.nameIndex].UTF8, NATDesc: entries[e.descriptorIndex].UTF8}, nil
	case TagFieldref, TagMethodref, TagInterfaceMethodref:
		if !resolved[e.classIndex] || !resolved[e.natIndex] {
			return false, Entry{}, nil
		}
		cls := entries[e.classIndex]
		nat := entries[e.natIndex]
		if cls.Tag != TagClass || nat.Tag != TagNameAndType {
			return false, Entry{}, j2werr.New(j2werr.KindDecodeError, "ref entry does not point at Class/NameAndType")
		}
		return true, Entry{Tag: e.tag, ClassName: cls.Name, MemberName: nat.NATName, MemberDesc: nat.NATDesc}, nil
	case TagMethodHandle:
		if !resolved[e.refIndex] {
			return false, Entry{}, nil
		}
		ref := entries[e.refIndex]
		isField := ref.Tag == TagFieldref
		if ref.Tag != TagFieldref && ref.Tag != TagMethodref && ref.Tag != TagInterfaceMethodref {
			return false, Entry{}, j2werr.New(j2werr.KindDecodeError, "method handle does not reference a field/method/interface-method ref")
		}
		return true, Entry{
			Tag: TagMethodHandle, RefKind: e.refKind, RefIsField: isField,
			RefClassName: ref.ClassName, RefMemberName: ref.MemberName, RefMemberDesc: ref.MemberDesc,
		}, nil
	case TagDynamic, TagInvokeDynamic:
		if !resolved[e.natIndex] {
			return false, Entry{}, nil
		}
		nat := entries[e.natIndex]
		if nat.Tag != TagNameAndType {
			return false, Entry{}, j2werr.New(j2werr.KindDecodeError, "dynamic entry does not reference NameAndType")
		}
		return true, Entry{Tag: e.tag, BootstrapIndex: int(e.bootstrapMethodAttrIndex), DynName: nat.NATName, DynDesc: nat.NATDesc}, nil
	}
	return false, Entry{}, j2werr.Newf(j2werr.KindDecodeError, "unresolvable tag %d", e.tag)
}
