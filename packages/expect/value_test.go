package expect

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestValueOf(t *testing.T) {
	type payload struct {
		ID   int      `json:"id"`
		Tags []string `json:"tags"`
	}

	tests := []struct {
		name string
		in   any
		typ  Type
		repr string
	}{
		{"nil", nil, TypeNull, "null"},
		{"bool", true, TypeBool, "true"},
		{"int", 42, TypeNumber, "42"},
		{"uint8", uint8(7), TypeNumber, "7"},
		{"float", 1.5, TypeNumber, "1.5"},
		{"json number", json.Number("10"), TypeNumber, "10"},
		{"string", "hi", TypeString, `"hi"`},
		{"bytes", []byte("raw"), TypeString, `"raw"`},
		{"slice", []any{1, "a", nil}, TypeList, `[1,"a",null]`},
		{"typed slice", []int{3, 4}, TypeList, "[3,4]"},
		{"nil slice", []any(nil), TypeNull, "null"},
		{"nil typed slice", []string(nil), TypeNull, "null"},
		{"empty slice", []any{}, TypeList, "[]"},
		{"nil map", map[string]any(nil), TypeNull, "null"},
		{"nil typed map", map[string]int(nil), TypeNull, "null"},
		{"map", map[string]any{"b": 2, "a": 1}, TypeMap, `{"a":1,"b":2}`},
		{"struct", payload{ID: 1, Tags: []string{"x"}}, TypeMap, `{"id":1,"tags":["x"]}`},
		{"pointer", &payload{ID: 2}, TypeMap, `{"id":2,"tags":null}`},
		{"gjson", gjson.Parse(`[true]`), TypeList, "[true]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := ValueOf(tt.in)
			assert.Equal(t, tt.typ, v.Type())
			assert.Equal(t, tt.repr, v.Repr())
		})
	}
}

func TestFromJSON_PreservesKeyOrder(t *testing.T) {
	v := FromJSON([]byte(`{"z":1,"a":{"nested":[1,2]},"m":null}`))
	require.Equal(t, TypeMap, v.Type())
	assert.Equal(t, []string{"z", "a", "m"}, v.Keys())

	nested, ok := v.Get("a")
	require.True(t, ok)
	inner, _ := nested.Get("nested")
	assert.Len(t, inner.Items(), 2)

	m, ok := v.Get("m")
	assert.True(t, ok)
	assert.True(t, m.IsNull())
}

func TestFromJSON_InvalidBecomesString(t *testing.T) {
	v := FromJSON([]byte("not json"))
	assert.Equal(t, TypeString, v.Type())
	assert.Equal(t, "not json", v.String())
}

func TestValueString(t *testing.T) {
	assert.Equal(t, "plain", String("plain").String())
	assert.Equal(t, "null", Null().String())
	assert.Equal(t, "3", Number(3).String())
	assert.Equal(t, `["a"]`, List(String("a")).String())
}

func TestValueInterface(t *testing.T) {
	v := FromJSON([]byte(`{"a":[1,"x",false,null]}`))
	assert.Equal(t, map[string]any{"a": []any{1.0, "x", false, nil}}, v.Interface())
}

func TestValueEqual(t *testing.T) {
	a := FromJSON([]byte(`{"a":1,"b":[1,2]}`))
	b := FromJSON([]byte(`{"b":[1,2],"a":1.0}`))
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(FromJSON([]byte(`{"a":1,"b":[2,1]}`))))
	assert.False(t, Number(0).Equal(Bool(false)))
	assert.False(t, String("").Equal(Null()))
}
