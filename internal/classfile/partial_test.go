package classfile

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMergeAddsNewMembersAndRewritesSelfRefs(t *testing.T) {
	target := &ClassFile{
		ThisClass: "com/example/Target",
		Methods:   []*Method{{Name: "existing", Descriptor: "()V"}},
		Fields:    []*Field{{Name: "existingField", Descriptor: "I"}},
	}
	source := &ClassFile{
		ThisClass: "com/example/Source",
		Methods: []*Method{
			{Name: "existing", Descriptor: "()V"},     // already present, skipped
			{Name: "newMethod", Descriptor: "()I"},     // added
		},
		Fields: []*Field{
			{Name: "newField", Descriptor: "J"},
		},
		ConstantPool: &Pool{Entries: []Entry{
			{},
			{Tag: TagClass, Name: "com/example/Source"},
			{Tag: TagMethodref, ClassName: "com/example/Source", MemberName: "newMethod", MemberDesc: "()I"},
		}},
	}

	Merge(target, source)

	require.Len(t, target.Methods, 2)
	require.Equal(t, "newMethod", target.Methods[1].Name)
	require.Len(t, target.Fields, 2)
	require.Equal(t, "newField", target.Fields[1].Name)

	require.Equal(t, "com/example/Target", target.ConstantPool.Entries[1].Name)
	require.Equal(t, "com/example/Target", target.ConstantPool.Entries[2].ClassName)
}
