package link

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jacobin-wasm/j2w/internal/classfile"
)

func TestSynthesizeLambdaSite(t *testing.T) {
	bsm := classfile.BootstrapMethod{
		Handle: classfile.MethodHandleRef{ClassName: lambdaMetafactoryClass, Name: "metafactory"},
		Args: []classfile.Entry{
			{Tag: classfile.TagMethodType, Name: "()V"},
			{Tag: classfile.TagMethodHandle, RefClassName: "com/example/Main", RefMemberName: "lambda$main$0", RefMemberDesc: "(I)V"},
			{Tag: classfile.TagMethodType, Name: "()V"},
		},
	}
	tt := NewTypeTable()
	fm := NewFuncManager()

	lambda, concat, err := SynthesizeDynamic(bsm, "run", "(I)Ljava/lang/Runnable;", tt, fm, 0)
	require.NoError(t, err)
	require.Nil(t, concat)
	require.NotNil(t, lambda)
	require.Equal(t, "com/example/Main", lambda.ImplFunc.Class)
	require.Equal(t, "lambda$main$0", lambda.ImplFunc.Method)
	require.Len(t, lambda.StructType.Fields, 3) // vtable + class-index + 1 captured int
}

func TestSynthesizeConcatSite(t *testing.T) {
	bsm := classfile.BootstrapMethod{
		Handle: classfile.MethodHandleRef{ClassName: stringConcatClass, Name: "makeConcatWithConstants"},
		Args: []classfile.Entry{
			{Tag: classfile.TagString, Name: " says "},
		},
	}
	fm := NewFuncManager()
	_, concat, err := SynthesizeDynamic(bsm, "concat", "(Ljava/lang/String;I)Ljava/lang/String;", nil, fm, 0)
	require.NoError(t, err)
	require.Equal(t, " says ", concat.Recipe)
	require.Equal(t, "concat0", concat.Func.Method)
}

func TestUnsupportedDynamicFactory(t *testing.T) {
	bsm := classfile.BootstrapMethod{Handle: classfile.MethodHandleRef{ClassName: "some/other/Factory", Name: "bootstrap"}}
	_, _, err := SynthesizeDynamic(bsm, "x", "()V", nil, NewFuncManager(), 0)
	require.Error(t, err)
}
