package link

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVMethodTableInheritsSlots(t *testing.T) {
	base := NewVMethodTable(nil, []string{"run()V", "name()Ljava/lang/String;"})
	runSlot, ok := base.SlotOf("run()V")
	require.True(t, ok)
	require.Equal(t, 0, runSlot)

	sub := NewVMethodTable(base, []string{"run()V", "extra()I"})
	subRunSlot, ok := sub.SlotOf("run()V")
	require.True(t, ok)
	require.Equal(t, runSlot, subRunSlot) // overriding keeps the same slot

	extraSlot, ok := sub.SlotOf("extra()I")
	require.True(t, ok)
	require.Equal(t, 2, extraSlot) // appended after the two inherited slots
	require.Equal(t, 3, sub.NumSlots())
}

func TestVtableSerializeLayout(t *testing.T) {
	v := &Vtable{
		TypeNameOffset:         100,
		ArrayElementClassIndex: 0,
		InstanceofList:         []uint32{0, 3},
		VMethods:               []uint32{7},
	}
	out := v.Serialize()
	require.Len(t, out, v.WordCount()*4)
	require.Equal(t, uint32(100), binary.LittleEndian.Uint32(out[0:4]))
	require.Equal(t, uint32(0), binary.LittleEndian.Uint32(out[4:8]))
	require.Equal(t, uint32(2), binary.LittleEndian.Uint32(out[8:12])) // instanceof-length
	require.Equal(t, uint32(0), binary.LittleEndian.Uint32(out[12:16]))
	require.Equal(t, uint32(3), binary.LittleEndian.Uint32(out[16:20]))
	require.Equal(t, uint32(7), binary.LittleEndian.Uint32(out[20:24])) // vmethod0
}
