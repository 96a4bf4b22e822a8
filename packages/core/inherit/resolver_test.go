package inherit

import (
	"testing"

	"github.com/abdul-hamid-achik/restbench/packages/collection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hdr(k, v string) collection.Header {
	return collection.Header{Key: k, Value: v, Enabled: true}
}

// foreignNode is a node kind the resolver does not understand.
type foreignNode struct{}

func (foreignNode) NodeName() string { return "folder-shortcut" }

func TestResolve_Auth(t *testing.T) {
	tests := []struct {
		name     string
		chain    []collection.AuthSpec
		own      collection.AuthSpec
		expected collection.AuthSpec
	}{
		{
			name:     "explicit none on outer blocks inheritance",
			chain:    []collection.AuthSpec{collection.NoAuth(), {}},
			own:      collection.AuthSpec{},
			expected: collection.NoAuth(),
		},
		{
			name:     "only outer entry explicit",
			chain:    []collection.AuthSpec{collection.Bearer("outer"), {}, {}},
			own:      collection.AuthSpec{},
			expected: collection.Bearer("outer"),
		},
		{
			name:     "nearest ancestor wins",
			chain:    []collection.AuthSpec{collection.Bearer("outer"), collection.Basic("u", "p")},
			own:      collection.AuthSpec{},
			expected: collection.Basic("u", "p"),
		},
		{
			name:     "inner none wins over outer bearer",
			chain:    []collection.AuthSpec{collection.Bearer("outer"), collection.NoAuth()},
			own:      collection.AuthSpec{},
			expected: collection.NoAuth(),
		},
		{
			name:     "item auth kept",
			chain:    []collection.AuthSpec{collection.Bearer("outer")},
			own:      collection.Basic("me", "secret"),
			expected: collection.Basic("me", "secret"),
		},
		{
			name:     "item none kept",
			chain:    []collection.AuthSpec{collection.Bearer("outer")},
			own:      collection.NoAuth(),
			expected: collection.NoAuth(),
		},
		{
			name:     "nothing explicit stays inherit",
			chain:    []collection.AuthSpec{{}, {}},
			own:      collection.AuthSpec{},
			expected: collection.AuthSpec{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var chain []collection.Node
			for i, a := range tt.chain {
				chain = append(chain, &collection.Group{Name: string(rune('A' + i)), Auth: a})
			}
			got := Resolve(&collection.Item{Name: "R", Auth: tt.own}, chain)
			assert.Equal(t, tt.expected, got.Auth)
		})
	}
}

func TestResolve_HeadersKeepFirstPosition(t *testing.T) {
	a := &collection.Group{Name: "A", Headers: []collection.Header{hdr("X", "1"), hdr("Y", "2")}}
	b := &collection.Group{Name: "B", Headers: []collection.Header{hdr("x", "3")}}
	item := &collection.Item{Name: "R", Headers: []collection.Header{hdr("X", "4"), hdr("Z", "5")}}

	got := Resolve(item, []collection.Node{a, b})

	require.Len(t, got.Headers, 3)
	assert.Equal(t, []collection.Header{hdr("X", "4"), hdr("Y", "2"), hdr("Z", "5")}, got.Headers)

	v, ok := got.Header("x")
	assert.True(t, ok)
	assert.Equal(t, "4", v)
}

func TestResolve_HeaderCaseOfWinnerPreserved(t *testing.T) {
	a := &collection.Group{Name: "A", Headers: []collection.Header{hdr("content-type", "text/plain")}}
	item := &collection.Item{Name: "R", Headers: []collection.Header{hdr("Content-Type", "application/json")}}

	got := Resolve(item, []collection.Node{a})

	require.Len(t, got.Headers, 1)
	assert.Equal(t, "Content-Type", got.Headers[0].Key)
	assert.Equal(t, "application/json", got.Headers[0].Value)
}

func TestResolve_DisabledHeaderOverrides(t *testing.T) {
	a := &collection.Group{Name: "A", Headers: []collection.Header{hdr("X-Trace", "on")}}
	item := &collection.Item{Name: "R", Headers: []collection.Header{{Key: "X-Trace", Value: "off", Enabled: false}}}

	got := Resolve(item, []collection.Node{a})

	require.Len(t, got.Headers, 1)
	assert.False(t, got.Headers[0].Enabled)
	_, ok := got.Header("X-Trace")
	assert.False(t, ok)
}

func TestResolve_Variables(t *testing.T) {
	a := &collection.Group{Name: "A", Variables: []collection.Variable{{Key: "host", Value: "a"}, {Key: "port", Value: "80"}}}
	b := &collection.Group{Name: "B", Variables: []collection.Variable{{Key: "user", Value: "bob"}, {Key: "host", Value: "b"}}}

	got := Resolve(&collection.Item{Name: "R"}, []collection.Node{a, b})

	assert.Equal(t, []collection.Variable{
		{Key: "host", Value: "b"},
		{Key: "port", Value: "80"},
		{Key: "user", Value: "bob"},
	}, got.Variables)
	assert.Equal(t, map[string]any{"host": "b", "port": "80", "user": "bob"}, got.VariableMap())

	v, ok := got.Variable("user")
	assert.True(t, ok)
	assert.Equal(t, "bob", v)
}

func TestResolve_ScriptOrder(t *testing.T) {
	a := &collection.Group{Name: "A", PreScript: "preA", PostScript: "postA"}
	b := &collection.Group{Name: "B", PreScript: "preB", PostScript: "postB"}
	item := &collection.Item{Name: "R", PreScript: "preR", PostScript: "postR"}

	got := Resolve(item, []collection.Node{a, b})

	assert.Equal(t, []ScriptSegment{
		{Source: "group A", Text: "preA"},
		{Source: "group B", Text: "preB"},
		{Source: "request R", Text: "preR"},
	}, got.PreScripts)
	assert.Equal(t, []ScriptSegment{
		{Source: "request R", Text: "postR"},
		{Source: "group B", Text: "postB"},
		{Source: "group A", Text: "postA"},
	}, got.PostScripts)

	assert.Equal(t, "// --- group A ---\npreA\n// --- group B ---\npreB\n// --- request R ---\npreR", got.PreScript())
	assert.Equal(t, "// --- request R ---\npostR\n// --- group B ---\npostB\n// --- group A ---\npostA", got.PostScript())
}

func TestResolve_SkipsEmptyScripts(t *testing.T) {
	a := &collection.Group{Name: "A", PreScript: "  \n"}
	b := &collection.Group{Name: "B", PostScript: "postB"}

	got := Resolve(&collection.Item{Name: "R"}, []collection.Node{a, b})

	assert.Empty(t, got.PreScripts)
	assert.Equal(t, []ScriptSegment{{Source: "group B", Text: "postB"}}, got.PostScripts)
}

func TestResolve_SkipsMalformedAncestors(t *testing.T) {
	var nilGroup *collection.Group
	a := &collection.Group{Name: "A", Auth: collection.Bearer("tok"), Headers: []collection.Header{hdr("X", "1")}}

	got := Resolve(&collection.Item{Name: "R"}, []collection.Node{nil, foreignNode{}, a, nilGroup, &collection.Item{Name: "stray"}})

	assert.Equal(t, collection.Bearer("tok"), got.Auth)
	assert.Equal(t, []collection.Header{hdr("X", "1")}, got.Headers)
}

func TestResolve_DoesNotMutateInputs(t *testing.T) {
	a := &collection.Group{Name: "A", Auth: collection.Basic("u", "p"), Headers: []collection.Header{hdr("X", "1")}}
	item := &collection.Item{
		Name:    "R",
		Headers: []collection.Header{hdr("X", "2")},
		Checks:  []collection.Check{{Name: "c", Args: []any{1}}},
	}

	got := Resolve(item, []collection.Node{a})
	got.Headers[0].Value = "changed"
	got.Checks[0].Args[0] = 99

	assert.Equal(t, collection.AuthSpec{}, item.Auth)
	assert.Equal(t, "2", item.Headers[0].Value)
	assert.Equal(t, "1", a.Headers[0].Value)
	assert.Equal(t, 1, item.Checks[0].Args[0])
}

func TestResolve_NilItem(t *testing.T) {
	got := Resolve(nil, nil)
	require.NotNil(t, got)
	assert.Equal(t, collection.AuthInherit, got.Auth.Type)
}

func TestResolveInTree(t *testing.T) {
	tree := collection.NewTree("api")
	root, _ := tree.AddGroup(collection.Root, &collection.Group{Name: "root", Auth: collection.Bearer("t")})
	id, _ := tree.AddItem(root, &collection.Item{Name: "ping", Method: "GET", URL: "http://x"})

	got, err := ResolveInTree(tree, id)
	require.NoError(t, err)
	assert.Equal(t, "ping", got.Name)
	assert.Equal(t, collection.Bearer("t"), got.Auth)

	_, err = ResolveInTree(tree, root)
	assert.Error(t, err)
}

func TestEffectiveRequest_Clone(t *testing.T) {
	orig := &EffectiveRequest{Name: "R", Headers: []collection.Header{hdr("A", "1")}}
	c := orig.Clone()
	c.Headers[0].Value = "2"
	assert.Equal(t, "1", orig.Headers[0].Value)
	assert.Nil(t, (*EffectiveRequest)(nil).Clone())
}
