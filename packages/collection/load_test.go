package collection

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCollection = `
name: Shop API
auth:
  type: bearer
  token: "{{token}}"
headers:
  - key: Accept
    value: application/json
variables:
  - key: baseUrl
    value: https://shop.example.com
items:
  - name: Users
    preScript: console.log("users")
    items:
      - name: List users
        request:
          method: get
          url: "{{baseUrl}}/users"
          params:
            - key: page
              value: "1"
        headers:
          - key: X-Debug
            value: "1"
            enabled: false
        checks:
          - name: status ok
            subject: status
            assert: equal
            args: [200]
        captures:
          - name: firstUserId
            from: body[0].id
  - name: Health
    auth:
      type: none
    request:
      url: "{{baseUrl}}/health"
`

func TestParse(t *testing.T) {
	tree, err := Parse([]byte(sampleCollection))
	require.NoError(t, err)
	assert.Equal(t, "Shop API", tree.Name)

	items := tree.Items()
	require.Len(t, items, 2)

	list, ok := tree.Item(items[0])
	require.True(t, ok)
	assert.Equal(t, "GET", list.Method)
	assert.Equal(t, "{{baseUrl}}/users", list.URL)
	assert.Equal(t, AuthInherit, list.Auth.Type)
	require.Len(t, list.Headers, 1)
	assert.False(t, list.Headers[0].Enabled)
	require.Len(t, list.Params, 1)
	assert.True(t, list.Params[0].Enabled)
	require.Len(t, list.Checks, 1)
	assert.Equal(t, "equal", list.Checks[0].Assert)
	assert.Equal(t, []any{200}, list.Checks[0].Args)
	assert.Equal(t, []Capture{{Name: "firstUserId", Subject: "body[0].id"}}, list.Captures)

	chain := tree.Ancestors(items[0])
	require.Len(t, chain, 2)
	root, ok := chain[0].(*Group)
	require.True(t, ok)
	assert.Equal(t, AuthBearer, root.Auth.Type)
	assert.Equal(t, "{{token}}", root.Auth.Token)
	assert.Equal(t, "Users", chain[1].NodeName())

	health, ok := tree.Item(items[1])
	require.True(t, ok)
	assert.Equal(t, AuthNone, health.Auth.Type)
	assert.Equal(t, "GET", health.Method)
}

func TestParse_RequestWithItems(t *testing.T) {
	_, err := Parse([]byte(`
name: bad
items:
  - name: broken
    request:
      url: http://x
    items:
      - name: nested
        request:
          url: http://y
`))
	assert.Error(t, err)
}

func TestParse_CaptureNeedsSubject(t *testing.T) {
	_, err := Parse([]byte(`
name: bad
items:
  - name: login
    request:
      url: http://x
    captures:
      - name: token
`))
	assert.ErrorContains(t, err, "captures need a name")
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "api.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleCollection), 0644))

	tree, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 4, tree.Len())

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
