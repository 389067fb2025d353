package classfile

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadElementValueAllKinds(t *testing.T) {
	cp := &Pool{Entries: []Entry{
		{},                                    // 0 sentinel
		{Tag: TagInteger, Int32: 7},            // 1
		{Tag: TagUTF8, UTF8: "hello"},          // 2
		{Tag: TagUTF8, UTF8: "Lfoo/Color;"},    // 3
		{Tag: TagUTF8, UTF8: "RED"},            // 4
		{Tag: TagUTF8, UTF8: "Lfoo/Bar;"},      // 5
	}}

	var b bytes.Buffer
	b.WriteByte('I')
	b.Write(u2b(1))
	v, err := readElementValue(newReader(b.Bytes()), cp)
	require.NoError(t, err)
	require.Equal(t, int32(7), v.ConstInt32)

	b.Reset()
	b.WriteByte('s')
	b.Write(u2b(2))
	v, err = readElementValue(newReader(b.Bytes()), cp)
	require.NoError(t, err)
	require.Equal(t, "hello", v.ConstString)

	b.Reset()
	b.WriteByte('e')
	b.Write(u2b(3))
	b.Write(u2b(4))
	v, err = readElementValue(newReader(b.Bytes()), cp)
	require.NoError(t, err)
	require.Equal(t, "Lfoo/Color;", v.EnumTypeName)
	require.Equal(t, "RED", v.EnumConst)

	b.Reset()
	b.WriteByte('c')
	b.Write(u2b(5))
	v, err = readElementValue(newReader(b.Bytes()), cp)
	require.NoError(t, err)
	require.Equal(t, "Lfoo/Bar;", v.ClassDescriptor)

	b.Reset()
	b.WriteByte('[')
	b.Write(u2b(1)) // array of 1 element
	b.WriteByte('I')
	b.Write(u2b(1))
	v, err = readElementValue(newReader(b.Bytes()), cp)
	require.NoError(t, err)
	require.Len(t, v.Array, 1)
	require.Equal(t, int32(7), v.Array[0].ConstInt32)
}

func TestReadAnnotationWithPartialValue(t *testing.T) {
	cp := &Pool{Entries: []Entry{
		{},
		{Tag: TagUTF8, UTF8: "Lorg/jacobinwasm/annotation/Partial;"},
		{Tag: TagUTF8, UTF8: "value"},
		{Tag: TagUTF8, UTF8: "com/example/Target"},
	}}
	var b bytes.Buffer
	b.Write(u2b(1)) // type_index
	b.Write(u2b(1)) // num_element_value_pairs
	b.Write(u2b(2)) // element_name_index "value"
	b.WriteByte('s')
	b.Write(u2b(3))

	a, err := readAnnotation(newReader(b.Bytes()), cp)
	require.NoError(t, err)
	require.Equal(t, "Lorg/jacobinwasm/annotation/Partial;", a.TypeDescriptor)
	require.Equal(t, "com/example/Target", a.Elements["value"].ConstString)
}
