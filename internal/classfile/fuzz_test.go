package classfile

import "testing"

// FuzzDecode exercises the decoder against arbitrary byte soups, grounded
// on saferwall-pe's binary-format fuzz targets: a malformed class file must
// produce an error (DecodeError/CircularConstantPool), never a panic.
func FuzzDecode(f *testing.F) {
	f.Add(minimalClassBytesForFuzz())
	f.Add([]byte{0xca, 0xfe, 0xba, 0xbe})
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, data []byte) {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("DecodeBytes panicked: %v", r)
			}
		}()
		_, _ = DecodeBytes(data)
	})
}

func minimalClassBytesForFuzz() []byte {
	var b cpBuilder
	b.u4(magic)
	b.u2(0)
	b.u2(52)
	b.u2(5)
	b.utf8("Foo")
	b.class(1)
	b.utf8("java/lang/Object")
	b.class(3)
	b.u2(AccPublic | AccSuper)
	b.u2(2)
	b.u2(4)
	b.u2(0)
	b.u2(0)
	b.u2(0)
	b.u2(0)
	return b.buf.Bytes()
}
