package link

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jacobin-wasm/j2w/internal/wasmtype"
)

func TestRegisterFieldLayoutInheritance(t *testing.T) {
	tt := NewTypeTable()
	obj, err := tt.Register("java/lang/Object", KindNormal, "", nil, nil)
	require.NoError(t, err)
	require.Equal(t, uint32(0), obj.Index)
	require.Len(t, obj.Fields, 2) // vtable + class-index, no declared fields

	sub, err := tt.Register("com/example/Point", KindNormal, "java/lang/Object", nil,
		[]wasmtype.StructField{{Name: "x", Type: wasmtype.I32}, {Name: "y", Type: wasmtype.I32}})
	require.NoError(t, err)
	require.Equal(t, uint32(1), sub.Index)
	require.Len(t, sub.Fields, 4)
	idx, err := sub.FieldIndex("y")
	require.NoError(t, err)
	require.Equal(t, 3, idx)
}

func TestRegisterIdempotent(t *testing.T) {
	tt := NewTypeTable()
	a, _ := tt.Register("Foo", KindNormal, "", nil, nil)
	b, _ := tt.Register("Foo", KindNormal, "", nil, nil)
	require.Same(t, a, b)
}

func TestRegisterUnknownSuperFails(t *testing.T) {
	tt := NewTypeTable()
	_, err := tt.Register("Sub", KindNormal, "Missing", nil, nil)
	require.Error(t, err)
}

func TestIsSubtypeOf(t *testing.T) {
	tt := NewTypeTable()
	obj, _ := tt.Register("java/lang/Object", KindNormal, "", nil, nil)
	iface, _ := tt.Register("java/lang/Runnable", KindNormal, "", nil, nil)
	sub, err := tt.Register("com/example/Task", KindNormal, "java/lang/Object", []string{"java/lang/Runnable"}, nil)
	require.NoError(t, err)

	require.True(t, sub.IsSubtypeOf(obj))
	require.True(t, sub.IsSubtypeOf(iface))
	require.True(t, sub.IsSubtypeOf(sub))
	require.False(t, obj.IsSubtypeOf(sub))
}
