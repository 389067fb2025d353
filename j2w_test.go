package j2w

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jacobin-wasm/j2w/internal/classfile"
)

const descExport = "Lorg/jacobinwasm/annotation/Export;"

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

func codeAttr(code []byte) classfile.RawAttribute {
	var body bytes.Buffer
	body.Write(u2b(4))
	body.Write(u2b(4))
	body.Write(u4b(uint32(len(code))))
	body.Write(code)
	body.Write(u2b(0))
	body.Write(u2b(0))
	return classfile.RawAttribute{Name: "Code", Data: body.Bytes()}
}

var returnVoid = []byte{0xb1}

func newPool() *classfile.Pool {
	return &classfile.Pool{Entries: []classfile.Entry{{}}}
}

func objectClass() *classfile.ClassFile {
	return &classfile.ClassFile{ThisClass: "java/lang/Object", ConstantPool: newPool()}
}

func annotationAttr(cp *classfile.Pool, typeDesc string, pairs map[string]string) classfile.RawAttribute {
	intern := func(s string) uint16 {
		cp.Entries = append(cp.Entries, classfile.Entry{Tag: classfile.TagUTF8, UTF8: s})
		return uint16(len(cp.Entries) - 1)
	}
	var body bytes.Buffer
	body.Write(u2b(1))
	body.Write(u2b(intern(typeDesc)))
	body.Write(u2b(uint16(len(pairs))))
	for name, value := range pairs {
		body.Write(u2b(intern(name)))
		body.WriteByte('s')
		body.Write(u2b(intern(value)))
	}
	return classfile.RawAttribute{Name: "RuntimeVisibleAnnotations", Data: body.Bytes()}
}

// TestCompileEndToEndRendersEverySink exercises the full pipeline this
// package ties together: a class with one exported, no-op method compiles
// to a binary module, a text module, and (since the method carries a
// source line from its own Code attribute — none here, so no source map)
// no source map, and no JS glue (no @Import in this fixture).
func TestCompileEndToEndRendersEverySink(t *testing.T) {
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
		},
	}

	result, err := Compile([]*classfile.ClassFile{objectClass(), cls}, NewConfig(), nil, Options{WithText: true})
	require.NoError(t, err)

	require.NotEmpty(t, result.Binary)
	require.Equal(t, []byte("\x00asm"), result.Binary[:4])

	require.Contains(t, result.Text, "(module\n")
	require.Contains(t, result.Text, `(export "compute"`)

	require.Nil(t, result.JSGlue)
}

func TestCompileWithoutTextSkipsRenderingIt(t *testing.T) {
	result, err := Compile([]*classfile.ClassFile{objectClass()}, nil, nil, Options{})
	require.NoError(t, err)
	require.NotEmpty(t, result.Binary)
	require.Empty(t, result.Text)
}
