package classfile

import (
	"bytes"
	"encoding/binary"
	"testing"

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

func TestDecodeCodeAttribute(t *testing.T) {
	cp := &Pool{Entries: []Entry{
		{}, // sentinel
	}}

	var body bytes.Buffer
	body.Write(u2b(4)) // max_stack
	body.Write(u2b(1)) // max_locals
	code := []byte{0x2a, 0xb1} // aload_0, return
	body.Write(u4b(uint32(len(code))))
	body.Write(code)
	body.Write(u2b(0)) // exception_table_length
	body.Write(u2b(0)) // attributes_count (no LineNumberTable/LocalVariableTable)

	attrs := []RawAttribute{{Name: "Code", Data: body.Bytes()}}
	c, err := DecodeCode(attrs, cp)
	require.NoError(t, err)
	require.Equal(t, 4, c.MaxStack)
	require.Equal(t, 1, c.MaxLocals)
	require.Equal(t, code, c.Bytes)
	require.Empty(t, c.ExceptionTable)
}

func TestDecodeCodeAttributeAbsent(t *testing.T) {
	c, err := DecodeCode(nil, &Pool{Entries: []Entry{{}}})
	require.NoError(t, err)
	require.Nil(t, c)
}

func TestDecodeExceptionsAttribute(t *testing.T) {
	cp := &Pool{Entries: []Entry{
		{},
		{Tag: TagClass, Name: "java/io/IOException"},
	}}
	var body bytes.Buffer
	body.Write(u2b(1))
	body.Write(u2b(1))
	names, err := DecodeExceptions([]RawAttribute{{Name: "Exceptions", Data: body.Bytes()}}, cp)
	require.NoError(t, err)
	require.Equal(t, []string{"java/io/IOException"}, names)
}

func TestDecodeBootstrapMethods(t *testing.T) {
	cp := &Pool{Entries: []Entry{
		{},
		{Tag: TagMethodHandle, RefKind: 6, RefIsField: false, RefClassName: "java/lang/invoke/LambdaMetafactory", RefMemberName: "metafactory", RefMemberDesc: "(...)Ljava/lang/invoke/CallSite;"},
		{Tag: TagMethodType, Name: "()V"},
	}}
	var body bytes.Buffer
	body.Write(u2b(1)) // num_bootstrap_methods
	body.Write(u2b(1)) // bootstrap_method_ref -> entry 1
	body.Write(u2b(1)) // num_bootstrap_arguments
	body.Write(u2b(2)) // argument -> entry 2

	out, err := DecodeBootstrapMethods([]RawAttribute{{Name: "BootstrapMethods", Data: body.Bytes()}}, cp)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "java/lang/invoke/LambdaMetafactory", out[0].Handle.ClassName)
	require.Len(t, out[0].Args, 1)
}
