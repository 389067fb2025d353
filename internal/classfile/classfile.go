// Package classfile decodes JVM class files (JVMS chapter 4) into an
// in-memory representation used by the rest of the compiler. It resolves
// the constant pool, exposes lazily-decoded attributes, and never itself
// interprets bytecode or WebAssembly (spec.md §4.1, component C1).
package classfile

import (
	"io"

	"github.com/jacobin-wasm/j2w/internal/j2werr"
)

const magic uint32 = 0xcafebabe

// ClassFile is the decoded form of a single .class file.
type ClassFile struct {
	MinorVersion, MajorVersion uint16

	ConstantPool *Pool

	AccessFlags uint16
	ThisClass   string
	SuperClass  string // "" for java.lang.Object
	Interfaces  []string

	Fields  []*Field
	Methods []*Method

	Attributes []RawAttribute

	SourceFile string
	Signature  string
	Module     *ModuleInfo
	Bootstrap  []BootstrapMethod
	Partial    string // non-"" if @Partial(target) names a merge target
}

func (c *ClassFile) IsInterface() bool { return c.AccessFlags&AccInterface != 0 }
func (c *ClassFile) IsAbstract() bool  { return c.AccessFlags&AccAbstract != 0 }
func (c *ClassFile) IsFinal() bool     { return c.AccessFlags&AccFinal != 0 }

// Decode reads one class file from r (spec.md §1: "input is one or more
// compiled class files").
func Decode(rd io.Reader) (*ClassFile, error) {
	data, err := ReadAll(rd)
	if err != nil {
		return nil, err
	}
	return DecodeBytes(data)
}

// DecodeBytes decodes an already-loaded class file image. Classpath
// lookup (jar scanning, mmap) lives in internal/link; this package only
// turns bytes into a ClassFile.
func DecodeBytes(data []byte) (*ClassFile, error) {
	r := newReader(data)

	got, err := r.u4()
	if err != nil {
		return nil, err
	}
	if got != magic {
		return nil, j2werr.Newf(j2werr.KindDecodeError, "bad magic %#08x, want %#08x", got, magic)
	}

	minor, err := r.u2()
	if err != nil {
		return nil, err
	}
	major, err := r.u2()
	if err != nil {
		return nil, err
	}

	cp, err := readConstantPool(r)
	if err != nil {
		return nil, err
	}

	accessFlags, err := r.u2()
	if err != nil {
		return nil, err
	}
	thisIdx, err := r.u2()
	if err != nil {
		return nil, err
	}
	thisEntry, err := cp.Get(thisIdx)
	if err != nil {
		return nil, err
	}

	superIdx, err := r.u2()
	if err != nil {
		return nil, err
	}
	var superName string
	if superIdx != 0 {
		superEntry, err := cp.Get(superIdx)
		if err != nil {
			return nil, err
		}
		superName = superEntry.Name
	}

	ifaceCount, err := r.u2()
	if err != nil {
		return nil, err
	}
	interfaces := make([]string, 0, ifaceCount)
	for i := 0; i < int(ifaceCount); i++ {
		idx, err := r.u2()
		if err != nil {
			return nil, err
		}
		e, err := cp.Get(idx)
		if err != nil {
			return nil, err
		}
		interfaces = append(interfaces, e.Name)
	}

	fields, err := readFields(r, cp)
	if err != nil {
		return nil, err
	}
	methods, err := readMethods(r, cp)
	if err != nil {
		return nil, err
	}
	attrs, err := readAttributes(r, cp)
	if err != nil {
		return nil, err
	}

	sourceFile, err := DecodeSourceFile(attrs, cp)
	if err != nil {
		return nil, err
	}
	signature, err := DecodeSignature(attrs, cp)
	if err != nil {
		return nil, err
	}
	module, err := DecodeModule(attrs, cp)
	if err != nil {
		return nil, err
	}
	bootstrap, err := DecodeBootstrapMethods(attrs, cp)
	if err != nil {
		return nil, err
	}

	cf := &ClassFile{
		MinorVersion: minor, MajorVersion: major,
		ConstantPool: cp,
		AccessFlags:  accessFlags,
		ThisClass:    thisEntry.Name, SuperClass: superName, Interfaces: interfaces,
		Fields: fields, Methods: methods, Attributes: attrs,
		SourceFile: sourceFile, Signature: signature, Module: module, Bootstrap: bootstrap,
	}

	annotations, err := DecodeAnnotations(attrs, cp)
	if err != nil {
		return nil, err
	}
	if a := ByType(annotations, "Lorg/jacobinwasm/annotation/Partial;"); a != nil {
		if ev, ok := a.Elements["value"]; ok {
			cf.Partial = ev.ConstString
		}
	}

	return cf, nil
}
