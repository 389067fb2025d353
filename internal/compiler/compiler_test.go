package compiler

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/jacobin-wasm/j2w/internal/classfile"
	"github.com/jacobin-wasm/j2w/internal/link"
	"github.com/jacobin-wasm/j2w/internal/translate"
	"github.com/stretchr/testify/require"
)

func u2b(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}

func u4b(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

// codeAttr builds a minimal Code RawAttribute wrapping the given raw
// bytecode, with no exception table or line/local tables, matching the
// wire shape internal/classfile/attributes_test.go exercises directly.
func codeAttr(code []byte) classfile.RawAttribute {
	var body bytes.Buffer
	body.Write(u2b(4)) // max_stack
	body.Write(u2b(4)) // max_locals
	body.Write(u4b(uint32(len(code))))
	body.Write(code)
	body.Write(u2b(0)) // exception_table_length
	body.Write(u2b(0)) // attributes_count
	return classfile.RawAttribute{Name: "Code", Data: body.Bytes()}
}

// returnVoid is a one-instruction method body: `return`.
var returnVoid = []byte{0xb1}

// annotationSpec is one annotation to encode: its type descriptor plus its
// string-valued element pairs.
type annotationSpec struct {
	typeDesc string
	pairs    map[string]string
}

// annotationsAttr builds a single RuntimeVisibleAnnotations RawAttribute
// carrying every given annotation (classfile.find only ever returns the
// first attribute of a given name, so a method needing more than one
// annotation must pack them all into one attribute), interning every
// name/descriptor/value it needs into cp.
func annotationsAttr(cp *classfile.Pool, specs ...annotationSpec) classfile.RawAttribute {
	intern := func(s string) uint16 {
		cp.Entries = append(cp.Entries, classfile.Entry{Tag: classfile.TagUTF8, UTF8: s})
		return uint16(len(cp.Entries) - 1)
	}

	var body bytes.Buffer
	body.Write(u2b(uint16(len(specs))))
	for _, spec := range specs {
		body.Write(u2b(intern(spec.typeDesc)))
		body.Write(u2b(uint16(len(spec.pairs))))
		for name, value := range spec.pairs {
			body.Write(u2b(intern(name)))
			body.WriteByte('s')
			body.Write(u2b(intern(value)))
		}
	}
	return classfile.RawAttribute{Name: "RuntimeVisibleAnnotations", Data: body.Bytes()}
}

// annotationAttr is annotationsAttr for the common single-annotation case.
func annotationAttr(cp *classfile.Pool, typeDesc string, pairs map[string]string) classfile.RawAttribute {
	return annotationsAttr(cp, annotationSpec{typeDesc: typeDesc, pairs: pairs})
}

func newPool() *classfile.Pool {
	return &classfile.Pool{Entries: []classfile.Entry{{}}} // index 0 sentinel
}

func objectClass() *classfile.ClassFile {
	return &classfile.ClassFile{ThisClass: "java/lang/Object", ConstantPool: newPool()}
}

func TestPrepareRegistersVtableSlotInheritance(t *testing.T) {
	base := &classfile.ClassFile{
		ThisClass:  "test/Base",
		SuperClass: "java/lang/Object",
		ConstantPool: newPool(),
		Methods: []*classfile.Method{
			{Name: "run", Descriptor: "()V", Attributes: []classfile.RawAttribute{codeAttr(returnVoid)}},
		},
	}
	sub := &classfile.ClassFile{
		ThisClass:  "test/Sub",
		SuperClass: "test/Base",
		ConstantPool: newPool(),
		Methods: []*classfile.Method{
			{Name: "run", Descriptor: "()V", Attributes: []classfile.RawAttribute{codeAttr(returnVoid)}},
		},
	}

	c := NewCompiler(nil, nil)
	require.NoError(t, c.prepare([]*classfile.ClassFile{objectClass(), base, sub}))

	baseKeys := c.allKeys["test/Base"]
	subKeys := c.allKeys["test/Sub"]
	require.Equal(t, []string{"run()V"}, baseKeys)
	require.Equal(t, baseKeys, subKeys, "Sub must not allocate a new slot for an override of Base's run()V")

	baseVMT := c.vmethods["test/Base"]
	subVMT := c.vmethods["test/Sub"]
	baseSlot, ok := baseVMT.SlotOf("run()V")
	require.True(t, ok)
	subSlot, ok := subVMT.SlotOf("run()V")
	require.True(t, ok)
	require.Equal(t, baseSlot, subSlot)
}

func TestExportSeedsReachabilityAndCompilesBody(t *testing.T) {
	cp := newPool()
	cls := &classfile.ClassFile{
		ThisClass:    "test/Exported",
		SuperClass:   "java/lang/Object",
		ConstantPool: cp,
		Methods: []*classfile.Method{
			{
				Name: "compute", Descriptor: "()V",
				Attributes: []classfile.RawAttribute{
					codeAttr(returnVoid),
					annotationAttr(cp, descExport, map[string]string{"name": "compute"}),
				},
			},
			{Name: "dead", Descriptor: "()V", Attributes: []classfile.RawAttribute{codeAttr(returnVoid)}},
		},
	}

	c := NewCompiler(nil, nil)
	mod, err := c.Compile([]*classfile.ClassFile{objectClass(), cls})
	require.NoError(t, err)

	entry := c.funcs.Lookup(link.FuncName{Class: "test/Exported", Method: "compute", Descriptor: "()V"})
	require.NotNil(t, entry)
	require.Equal(t, "compute", entry.ExportName)

	_, compiled := mod.Bodies[(link.FuncName{Class: "test/Exported", Method: "compute", Descriptor: "()V"}).String()]
	require.True(t, compiled)

	_, deadCompiled := mod.Bodies[(link.FuncName{Class: "test/Exported", Method: "dead", Descriptor: "()V"}).String()]
	require.False(t, deadCompiled, "an unreferenced, unexported method must never be compiled")
}

func TestReplaceRedirectsBodyToReplacement(t *testing.T) {
	cp := newPool()
	cls := &classfile.ClassFile{
		ThisClass:    "test/Patched",
		SuperClass:   "java/lang/Object",
		ConstantPool: cp,
		Methods: []*classfile.Method{
			{
				Name: "original", Descriptor: "()V",
				Attributes: []classfile.RawAttribute{
					codeAttr(returnVoid),
					annotationAttr(cp, descExport, map[string]string{"name": "original"}),
				},
			},
			{
				Name: "replacement", Descriptor: "()V",
				Attributes: []classfile.RawAttribute{
					codeAttr([]byte{0x03, 0xac}), // iconst_0, ireturn (placeholder body distinct from `return`)
					annotationAttr(cp, descReplace, map[string]string{"target": "test/Patched#original()V"}),
				},
			},
		},
	}

	c := NewCompiler(nil, nil)
	mod, err := c.Compile([]*classfile.ClassFile{objectClass(), cls})
	require.NoError(t, err)

	original := mod.Bodies[(link.FuncName{Class: "test/Patched", Method: "original", Descriptor: "()V"}).String()]
	require.NotNil(t, original)
	require.Len(t, original.Instructions, 2, "replacement body is iconst_0+return (the restructurer never drops instructions)")
}

func TestWasmTextCodeBypassesTranslation(t *testing.T) {
	cp := newPool()
	cls := &classfile.ClassFile{
		ThisClass:    "test/Inline",
		SuperClass:   "java/lang/Object",
		ConstantPool: cp,
		Methods: []*classfile.Method{
			{
				Name: "raw", Descriptor: "()V",
				Attributes: []classfile.RawAttribute{
					codeAttr(returnVoid),
					annotationsAttr(cp,
						annotationSpec{typeDesc: descExport, pairs: map[string]string{"name": "raw"}},
						annotationSpec{typeDesc: descWasmTextCode, pairs: map[string]string{"text": "(nop)"}},
					),
				},
			},
		},
	}

	c := NewCompiler(nil, nil)
	mod, err := c.Compile([]*classfile.ClassFile{objectClass(), cls})
	require.NoError(t, err)

	body := mod.Bodies[(link.FuncName{Class: "test/Inline", Method: "raw", Descriptor: "()V"}).String()]
	require.NotNil(t, body)
	require.Equal(t, "(nop)", body.WasmText)
	require.Empty(t, body.Instructions)
}

func TestSynthesizedStartCallsEveryClinit(t *testing.T) {
	cp := newPool()
	cls := &classfile.ClassFile{
		ThisClass:    "test/WithClinit",
		SuperClass:   "java/lang/Object",
		ConstantPool: cp,
		Methods: []*classfile.Method{
			{Name: "<clinit>", Descriptor: "()V", Attributes: []classfile.RawAttribute{codeAttr(returnVoid)}},
		},
	}

	c := NewCompiler(nil, nil)
	mod, err := c.Compile([]*classfile.ClassFile{objectClass(), cls})
	require.NoError(t, err)

	require.NotEmpty(t, mod.StartFunc)
	start := mod.Bodies[mod.StartFunc]
	require.NotNil(t, start)

	var calls int
	for _, in := range start.Instructions {
		if in.Op == translate.OpCall {
			calls++
			require.Equal(t, (link.FuncName{Class: "test/WithClinit", Method: "<clinit>", Descriptor: "()V"}).String(), in.CallFunc)
		}
	}
	require.Equal(t, 1, calls)
}

func TestCancelStopsFinishEarly(t *testing.T) {
	cp := newPool()
	cls := &classfile.ClassFile{
		ThisClass:    "test/Cancellable",
		SuperClass:   "java/lang/Object",
		ConstantPool: cp,
		Methods: []*classfile.Method{
			{
				Name: "compute", Descriptor: "()V",
				Attributes: []classfile.RawAttribute{
					codeAttr(returnVoid),
					annotationAttr(cp, descExport, map[string]string{"name": "compute"}),
				},
			},
		},
	}

	c := NewCompiler(nil, nil)
	c.Cancel = func() bool { return true }
	_, err := c.Compile([]*classfile.ClassFile{objectClass(), cls})
	require.ErrorIs(t, err, ErrCancelled)
}
