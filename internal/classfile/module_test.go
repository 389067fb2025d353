package classfile

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeModuleVersion(t *testing.T) {
	cases := map[string]string{
		"11.0.2":  "v11.0.2",
		"1.8":     "v1.8.0",
		"3":       "v3.0.0",
		"":        "",
		"bogus!!": "",
	}
	for in, want := range cases {
		require.Equal(t, want, normalizeModuleVersion(in), in)
	}
}

func TestDecodeModuleAttribute(t *testing.T) {
	cp := &Pool{Entries: []Entry{
		{},
		{Tag: TagModule, Name: "com.example.app"},
		{Tag: TagUTF8, UTF8: "1.2.3"},
		{Tag: TagModule, Name: "java.base"},
		{Tag: TagUTF8, UTF8: "17"},
	}}
	var body []byte
	body = append(body, u2b(1)...) // module_name_index
	body = append(body, u2b(0)...) // module_flags
	body = append(body, u2b(2)...) // module_version_index
	body = append(body, u2b(1)...) // requires_count
	body = append(body, u2b(3)...) // requires_index
	body = append(body, u2b(0)...) // requires_flags
	body = append(body, u2b(4)...) // requires_version_index

	m, err := DecodeModule([]RawAttribute{{Name: "Module", Data: body}}, cp)
	require.NoError(t, err)
	require.Equal(t, "com.example.app", m.Name)
	require.Equal(t, "1.2.3", m.Version)
	require.Equal(t, "v1.2.3", m.NormalizedVersion)
	require.Len(t, m.Requires, 1)
	require.Equal(t, "java.base", m.Requires[0].Name)
	require.Equal(t, "v17.0.0", m.Requires[0].NormalizedVersion)
}
