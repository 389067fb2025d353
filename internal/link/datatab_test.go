package link

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildDataLayoutRegionOrder(t *testing.T) {
	v0 := &Vtable{TypeNameOffset: 0, InstanceofList: []uint32{0}}
	v1 := &Vtable{TypeNameOffset: 4, InstanceofList: []uint32{0, 1}}

	sp := NewStringPool()
	sp.Intern("hello")
	sp.Intern("world")

	layout := BuildDataLayout([]*Vtable{v0, v1}, sp)

	require.Equal(t, uint32(0), layout.VtableRegionOffset)
	require.Len(t, layout.VtableOffsetOf, 2)
	require.Equal(t, uint32(0), layout.VtableOffsetOf[0])
	require.Equal(t, uint32(v0.WordCount()*4), layout.VtableOffsetOf[1])

	require.Equal(t, layout.VtableOffsetOf[1]+uint32(v1.WordCount()*4), layout.TypeTableOffset)
	require.Equal(t, layout.TypeTableOffset+uint32(2*4), layout.StringTableOffset)
	require.Len(t, layout.StringOffsetOf, 2)
}

func TestStringPoolDedup(t *testing.T) {
	sp := NewStringPool()
	a := sp.Intern("foo")
	b := sp.Intern("foo")
	c := sp.Intern("bar")
	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
	require.Equal(t, 2, sp.Len())
}
