package jvmtype

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseMethodSignatureRoundTrip(t *testing.T) {
	for _, descriptor := range []string{
		"()V",
		"(II)I",
		"(Ljava/lang/String;)V",
		"([I)V",
		"([[Ljava/lang/Object;I)Z",
		"(JD)Lfoo/Bar;",
	} {
		params, result, err := ParseMethodSignature(descriptor)
		require.NoError(t, err, descriptor)

		var rebuilt string
		rebuilt += "("
		for _, p := range params {
			rebuilt += p.String()
		}
		rebuilt += ")" + result.String()
		require.Equal(t, descriptor, rebuilt)
	}
}

func TestParseFieldType(t *testing.T) {
	ty, err := ParseFieldType("[Ljava/lang/String;")
	require.NoError(t, err)
	require.Equal(t, KindArray, ty.Kind)
	require.Equal(t, KindClass, ty.Element.Kind)
	require.Equal(t, "java.lang.String", ty.Element.ClassName)
	require.Equal(t, "[Ljava/lang/String;", ty.String())
}

func TestClassNameNormalization(t *testing.T) {
	ty, err := ParseFieldType("Ljava/util/HashMap;")
	require.NoError(t, err)
	require.Equal(t, "java.util.HashMap", ty.ClassName)
}

func TestNextAfterReturnTypeYieldsNil(t *testing.T) {
	p := NewParser("(I)V")
	_, err := p.Next() // param I
	require.NoError(t, err)
	_, err = p.Next() // nil: end of args
	require.NoError(t, err)
	result, err := p.Next() // return V
	require.NoError(t, err)
	require.Equal(t, KindVoid, result.Kind)
	last, err := p.Next()
	require.NoError(t, err)
	require.Nil(t, last)
}

func TestUnterminatedClassType(t *testing.T) {
	_, err := ParseFieldType("Ljava/lang/String")
	require.Error(t, err)
}

func TestUnknownDescriptorChar(t *testing.T) {
	_, err := ParseFieldType("Q")
	require.Error(t, err)
}
