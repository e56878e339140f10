package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIRValueSealed(t *testing.T) {
	var _ IRValue = IRNull{}
	var _ IRValue = IRString("test")
	var _ IRValue = IRInt(42)
	var _ IRValue = IRBool(true)
	var _ IRValue = IRArray{IRString("a"), IRInt(1)}
	var _ IRValue = IRObject{"key": IRString("value")}
}

func TestIRObjectSortedKeys(t *testing.T) {
	obj := IRObject{
		"zebra":  IRString("z"),
		"apple":  IRString("a"),
		"banana": IRString("b"),
	}

	assert.Equal(t, []string{"apple", "banana", "zebra"}, obj.SortedKeys())
}

func TestIRObjectSortedKeysRFC8785Order(t *testing.T) {
	obj := IRObject{
		"a":  IRInt(1),
		"A":  IRInt(2),
		"aa": IRInt(3),
		"aA": IRInt(4),
		"Aa": IRInt(5),
		"AA": IRInt(6),
	}

	// 'A' = 65, 'a' = 97
	assert.Equal(t, []string{"A", "AA", "Aa", "a", "aA", "aa"}, obj.SortedKeys())
}

func TestFromGo(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want IRValue
	}{
		{"nil", nil, IRNull{}},
		{"string", "Ada", IRString("Ada")},
		{"int", 7, IRInt(7)},
		{"int64", int64(-3), IRInt(-3)},
		{"bool", true, IRBool(true)},
		{"ir value passthrough", IRString("x"), IRString("x")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromGo(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromGo_RejectsFloats(t *testing.T) {
	_, err := FromGo(1.5)
	assert.Error(t, err)

	_, err = FromGo(struct{}{})
	assert.Error(t, err)
}

func TestLexical(t *testing.T) {
	assert.Equal(t, "Ada", Lexical(IRString("Ada")))
	assert.Equal(t, "42", Lexical(IRInt(42)))
	assert.Equal(t, "false", Lexical(IRBool(false)))
	assert.Equal(t, "", Lexical(IRNull{}))
	assert.Equal(t, "", Lexical(nil))
	assert.Equal(t, `["a",1]`, Lexical(IRArray{IRString("a"), IRInt(1)}))
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(IRString("a"), IRString("a")))
	assert.False(t, Equal(IRString("1"), IRInt(1)))
	assert.True(t, Equal(IRArray{IRInt(1), IRString("b")}, IRArray{IRInt(1), IRString("b")}))
	assert.False(t, Equal(IRArray{IRInt(1)}, IRArray{IRInt(1), IRInt(2)}))
	assert.True(t, Equal(IRObject{"k": IRBool(true)}, IRObject{"k": IRBool(true)}))
	assert.False(t, Equal(IRObject{"k": IRBool(true)}, IRObject{"j": IRBool(true)}))
}

func TestMarshalIRValue(t *testing.T) {
	data, err := MarshalIRValue(IRObject{
		"b": IRArray{IRInt(1), IRNull{}},
		"a": IRString("<x>"),
	})
	require.NoError(t, err)
	assert.Equal(t, `{"a":"<x>","b":[1,null]}`, string(data))
}

func TestUnmarshalIRValue(t *testing.T) {
	v, err := UnmarshalIRValue([]byte(`{"name":"Ada","age":36,"tags":["x",true],"nick":null}`))
	require.NoError(t, err)

	obj, ok := v.(IRObject)
	require.True(t, ok)
	assert.Equal(t, IRString("Ada"), obj["name"])
	assert.Equal(t, IRInt(36), obj["age"])
	assert.Equal(t, IRArray{IRString("x"), IRBool(true)}, obj["tags"])
	assert.Equal(t, IRNull{}, obj["nick"])
}

func TestUnmarshalIRValue_RejectsFloats(t *testing.T) {
	_, err := UnmarshalIRValue([]byte(`{"score":1.5}`))
	assert.Error(t, err)

	_, err = UnmarshalIRValue([]byte(`1e3`))
	assert.Error(t, err)
}
