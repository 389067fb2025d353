package sourcemap

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jacobin-wasm/j2w/internal/wasmbin"
)

func TestWriteVLQ(t *testing.T) {
	for _, c := range []struct {
		input    int
		expected string
	}{
		{input: 0, expected: "A"},
		{input: 1, expected: "C"},
		{input: -1, expected: "D"},
		{input: 16, expected: "gB"},
		{input: -16, expected: "hB"},
	} {
		var buf bytes.Buffer
		writeVLQ(&buf, c.input)
		require.Equal(t, c.expected, buf.String())
	}
}

func TestBuildDedupesSourcesAndDeltaEncodesColumns(t *testing.T) {
	mappings := []wasmbin.Mapping{
		{CodeOffset: 0, File: "Main.java", Line: 10},
		{CodeOffset: 5, File: "Main.java", Line: 11},
		{CodeOffset: 9, File: "Helper.java", Line: 3},
	}
	m := Build(mappings, "src/")
	require.Equal(t, 3, m.Version)
	require.Equal(t, []string{"src/Main.java", "src/Helper.java"}, m.Sources)
	require.Equal(t, []string{}, m.Names)
	require.Equal(t, "AAUA,KACA,ICRA", m.Mappings)
}

func TestMarshalFixedFieldOrder(t *testing.T) {
	m := Build(nil, "")
	out, err := Marshal(m)
	require.NoError(t, err)
	require.JSONEq(t, `{"version":3,"sources":[],"names":[],"mappings":""}`, string(out))
}
