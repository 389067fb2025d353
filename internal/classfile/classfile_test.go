package classfile

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// cpBuilder assembles a minimal class file byte stream for tests. It is
// deliberately dumb: callers push exactly the bytes they want and get back
// a reader-ready []byte.
type cpBuilder struct {
	buf bytes.Buffer
}

func (b *cpBuilder) u1(v byte)    { b.buf.WriteByte(v) }
func (b *cpBuilder) u2(v uint16)  { binary.Write(&b.buf, binary.BigEndian, v) }
func (b *cpBuilder) u4(v uint32)  { binary.Write(&b.buf, binary.BigEndian, v) }
func (b *cpBuilder) raw(p []byte) { b.buf.Write(p) }

func (b *cpBuilder) utf8(s string) {
	b.u1(byte(TagUTF8))
	b.u2(uint16(len(s)))
	b.raw([]byte(s))
}

func (b *cpBuilder) class(nameIdx uint16) {
	b.u1(byte(TagClass))
	b.u2(nameIdx)
}

// minimalClassBytes builds: public class Foo extends java.lang.Object,
// no fields, no methods, no attributes.
func minimalClassBytes(t *testing.T) []byte {
	t.Helper()
	var b cpBuilder
	b.u4(magic)
	b.u2(0)  // minor
	b.u2(52) // major (Java 8)

	// constant pool: index 1 = UTF8 "Foo", 2 = Class -> 1,
	// 3 = UTF8 "java/lang/Object", 4 = Class -> 3.
	b.u2(5) // constant_pool_count = highest index + 1
	b.utf8("Foo")
	b.class(1)
	b.utf8("java/lang/Object")
	b.class(3)

	b.u2(AccPublic | AccSuper) // access_flags
	b.u2(2)                    // this_class
	b.u2(4)                    // super_class
	b.u2(0)                    // interfaces_count
	b.u2(0)                    // fields_count
	b.u2(0)                    // methods_count
	b.u2(0)                    // attributes_count
	return b.buf.Bytes()
}

func TestDecodeMinimalClass(t *testing.T) {
	cf, err := DecodeBytes(minimalClassBytes(t))
	require.NoError(t, err)
	require.Equal(t, "Foo", cf.ThisClass)
	require.Equal(t, "java/lang/Object", cf.SuperClass)
	require.Empty(t, cf.Interfaces)
	require.Empty(t, cf.Fields)
	require.Empty(t, cf.Methods)
}

func TestDecodeBadMagic(t *testing.T) {
	data := minimalClassBytes(t)
	data[0] = 0x00
	_, err := DecodeBytes(data)
	require.Error(t, err)
}

func TestDecodeTruncated(t *testing.T) {
	data := minimalClassBytes(t)
	_, err := DecodeBytes(data[:len(data)-10])
	require.Error(t, err)
}

func TestDecodeWithFieldAndMethod(t *testing.T) {
	var b cpBuilder
	b.u4(magic)
	b.u2(0)
	b.u2(52)

	// 1: UTF8 "Foo" 2: Class->1 3: UTF8 "java/lang/Object" 4: Class->3
	// 5: UTF8 "x" 6: UTF8 "I" 7: UTF8 "main" 8: UTF8 "()V"
	b.u2(9)
	b.utf8("Foo")
	b.class(1)
	b.utf8("java/lang/Object")
	b.class(3)
	b.utf8("x")
	b.utf8("I")
	b.utf8("main")
	b.utf8("()V")

	b.u2(AccPublic | AccSuper)
	b.u2(2)
	b.u2(4)
	b.u2(0) // interfaces

	b.u2(1) // fields_count
	b.u2(AccPrivate)
	b.u2(5) // name "x"
	b.u2(6) // desc "I"
	b.u2(0) // attrs

	b.u2(1) // methods_count
	b.u2(AccPublic | AccStatic)
	b.u2(7) // name "main"
	b.u2(8) // desc "()V"
	b.u2(0) // attrs

	b.u2(0) // class attrs

	cf, err := DecodeBytes(b.buf.Bytes())
	require.NoError(t, err)
	require.Len(t, cf.Fields, 1)
	require.Equal(t, "x", cf.Fields[0].Name)
	require.Equal(t, "I", cf.Fields[0].Descriptor)
	require.Len(t, cf.Methods, 1)
	require.Equal(t, "main", cf.Methods[0].Name)
	require.True(t, cf.Methods[0].IsStatic())
	require.False(t, cf.Methods[0].HasNoBody())
}

func TestDecodeLongConstantSentinel(t *testing.T) {
	var b cpBuilder
	b.u4(magic)
	b.u2(0)
	b.u2(52)

	// 1: Long (occupies 1 and reserved 2), 3: UTF8 "Foo", 4: Class->3,
	// 5: UTF8 "java/lang/Object", 6: Class->5
	b.u2(7)
	b.u1(byte(TagLong))
	binary.Write(&b.buf, binary.BigEndian, uint64(123456789))
	b.utf8("Foo")
	b.class(3)
	b.utf8("java/lang/Object")
	b.class(5)

	b.u2(AccPublic | AccSuper)
	b.u2(4)
	b.u2(6)
	b.u2(0)
	b.u2(0)
	b.u2(0)
	b.u2(0)

	cf, err := DecodeBytes(b.buf.Bytes())
	require.NoError(t, err)
	require.Equal(t, "Foo", cf.ThisClass)
	longEntry, err := cf.ConstantPool.Get(1)
	require.NoError(t, err)
	require.Equal(t, int64(123456789), longEntry.Int64)
	_, err = cf.ConstantPool.Get(2)
	require.Error(t, err) // reserved sentinel slot
}
