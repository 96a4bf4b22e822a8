package builtin

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Call(t *testing.T) {
	r := NewRegistry()

	v, ok := r.Call("uuid()")
	require.True(t, ok)
	_, err := uuid.Parse(v.(string))
	assert.NoError(t, err)

	v, ok = r.Call(`base64("hello")`)
	require.True(t, ok)
	assert.Equal(t, "aGVsbG8=", v)

	v, ok = r.Call("urlEncode('a b&c')")
	require.True(t, ok)
	assert.Equal(t, "a+b%26c", v)

	v, ok = r.Call("random(5, 5)")
	require.True(t, ok)
	assert.Equal(t, 5, v)

	v, ok = r.Call("randomString(12)")
	require.True(t, ok)
	assert.Len(t, v.(string), 12)

	_, ok = r.Call("nope()")
	assert.False(t, ok)
	_, ok = r.Call("not a call")
	assert.False(t, ok)
}

func TestRegistry_Has(t *testing.T) {
	r := NewRegistry()
	assert.True(t, r.Has("timestamp()"))
	assert.False(t, r.Has("missing()"))

	r.Register("answer", func([]string) any { return 42 })
	assert.True(t, r.Has("answer()"))
}

func TestSplitArgs(t *testing.T) {
	assert.Nil(t, splitArgs(""))
	assert.Equal(t, []string{"a", "b, c", "d"}, splitArgs(`a, "b, c", d`))
}
