package link

import (
	"archive/zip"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func u2(v uint16) []byte { b := make([]byte, 2); binary.BigEndian.PutUint16(b, v); return b }
func u4(v uint32) []byte { b := make([]byte, 4); binary.BigEndian.PutUint32(b, v); return b }

// minimalClassBytes mirrors internal/classfile's test helper of the same
// shape: public class Foo extends java.lang.Object, no members.
func minimalClassBytes() []byte {
	var b []byte
	b = append(b, u4(0xcafebabe)...)
	b = append(b, u2(0)...)
	b = append(b, u2(52)...)
	b = append(b, u2(5)...) // constant_pool_count

	utf8 := func(s string) []byte {
		out := []byte{1}
		out = append(out, u2(uint16(len(s)))...)
		out = append(out, s...)
		return out
	}
	b = append(b, utf8("Foo")...)
	b = append(b, append([]byte{7}, u2(1)...)...) // Class -> 1
	b = append(b, utf8("java/lang/Object")...)
	b = append(b, append([]byte{7}, u2(3)...)...) // Class -> 3

	b = append(b, u2(0x0021)...) // access flags: public | super
	b = append(b, u2(2)...)      // this_class
	b = append(b, u2(4)...)      // super_class
	b = append(b, u2(0)...)      // interfaces_count
	b = append(b, u2(0)...)      // fields_count
	b = append(b, u2(0)...)      // methods_count
	b = append(b, u2(0)...)      // attributes_count
	return b
}

func writeTestJar(t *testing.T, dir, name string, entries map[string][]byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	zw := zip.NewWriter(f)
	for entryName, data := range entries {
		w, err := zw.Create(entryName)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return path
}

func TestArchiveFindClass(t *testing.T) {
	dir := t.TempDir()
	path := writeTestJar(t, dir, "lib.jar", map[string][]byte{
		"com/example/Foo.class": minimalClassBytes(),
	})

	a, err := OpenArchive(path)
	require.NoError(t, err)
	defer a.Close()

	cf, err := a.FindClass("com/example/Foo")
	require.NoError(t, err)
	require.NotNil(t, cf)
	require.Equal(t, "Foo", cf.ThisClass)
	require.Empty(t, a.Signer())
}

func TestArchiveFindClassMissing(t *testing.T) {
	dir := t.TempDir()
	path := writeTestJar(t, dir, "lib.jar", map[string][]byte{})

	a, err := OpenArchive(path)
	require.NoError(t, err)
	defer a.Close()

	cf, err := a.FindClass("com/example/Missing")
	require.NoError(t, err)
	require.Nil(t, cf)
}

func TestClasspathSearchOrder(t *testing.T) {
	dir := t.TempDir()
	first := writeTestJar(t, dir, "first.jar", map[string][]byte{})
	second := writeTestJar(t, dir, "second.jar", map[string][]byte{
		"com/example/Foo.class": minimalClassBytes(),
	})

	cp, err := NewClasspath([]string{first, second})
	require.NoError(t, err)
	defer cp.Close()

	cf, err := cp.Find("com/example/Foo")
	require.NoError(t, err)
	require.NotNil(t, cf)
	require.Empty(t, cp.Warnings)
}
