package jsglue

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jacobin-wasm/j2w/internal/compiler"
	"github.com/jacobin-wasm/j2w/internal/link"
)

func TestRenderGroupsByModuleInEncounterOrder(t *testing.T) {
	strings := link.NewStringPool()
	strings.Intern("hello")
	strings.Intern("world")

	mod := &compiler.Module{
		Strings: strings,
		JSImports: []compiler.JSImport{
			{Module: "j2w/rt", Name: "structGetNum", Body: "(r,i)=>r.f[i]"},
			{Module: "env", Name: "log", Body: "(x)=>console.log(x)"},
			{Module: "j2w/rt", Name: "structSetNum", Body: "(r,i,v)=>{r.f[i]=v}"},
		},
	}

	out, err := Render(mod)
	require.NoError(t, err)
	src := string(out)

	require.Contains(t, src, `const __strings = [`)
	require.Contains(t, src, `"hello",`)
	require.Contains(t, src, `"world",`)
	require.Contains(t, src, `module.exports = {`)
	require.Contains(t, src, `"j2w/rt": {`)
	require.Contains(t, src, `"structGetNum": (r,i)=>r.f[i],`)
	require.Contains(t, src, `"env": {`)
	require.Contains(t, src, `"log": (x)=>console.log(x),`)

	rtIdx := indexOf(src, `"j2w/rt": {`)
	envIdx := indexOf(src, `"env": {`)
	require.True(t, rtIdx < envIdx, "modules should render in first-seen order")
}

func TestHasJSImports(t *testing.T) {
	require.False(t, HasJSImports(&compiler.Module{}))
	require.True(t, HasJSImports(&compiler.Module{JSImports: []compiler.JSImport{{Module: "env", Name: "log"}}}))
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
