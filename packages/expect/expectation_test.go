package expect

import (
	"math"
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireFailure(t *testing.T, err error, kind Kind) *AssertionError {
	t.Helper()
	require.Error(t, err)
	ae, ok := AsAssertionError(err)
	require.True(t, ok, "expected *AssertionError, got %T", err)
	assert.Equal(t, kind, ae.Kind)
	return ae
}

func TestNegation(t *testing.T) {
	requireFailure(t, That(5).Not().Equal(5), KindEqual)
	assert.NoError(t, That(5).Not().Not().Equal(5))
	assert.NoError(t, That(5).Not().Equal(6))

	base := That(5)
	negated := base.Not()
	assert.False(t, base.Negated())
	assert.True(t, negated.Negated())
	assert.NoError(t, base.Equal(5))
}

func TestChainingWordsAreNoOps(t *testing.T) {
	e := That([]int{1, 2, 3})
	chained := e.To().Be().Been().Is().That().Which().And().Has().Have().With().At().Of().Same().Does().Still()
	assert.Equal(t, e, chained)
	assert.NoError(t, e.To().Have().Length(3))
}

func TestEqual(t *testing.T) {
	assert.NoError(t, That(200).To().Equal(200.0))
	assert.NoError(t, That(map[string]any{"a": []any{1, "x"}}).To().Eql(map[string]any{"a": []any{1.0, "x"}}))
	assert.NoError(t, That(nil).To().Equal(nil))
	assert.NoError(t, That(math.NaN()).To().Equal(math.NaN()))

	ae := requireFailure(t, That("200").To().Equal(200), KindEqual)
	assert.Equal(t, 200.0, ae.Expected)
	assert.Equal(t, "200", ae.Actual)
	assert.Equal(t, `expected "200" to equal 200`, ae.Message)

	ae = requireFailure(t, That(1).Not().Equal(1), KindEqual)
	assert.True(t, ae.Negated)
	assert.Equal(t, "expected 1 to not equal 1", ae.Message)
}

func TestInclude(t *testing.T) {
	assert.NoError(t, That("hello world").To().Include("world"))
	assert.NoError(t, That([]any{1, 2, 3}).To().Include(2))
	assert.NoError(t, That(12345).To().Include(234))
	requireFailure(t, That("hello").To().Include("bye"), KindInclude)
	requireFailure(t, That("hello").Not().To().Include("ell"), KindInclude)
}

func TestProperty(t *testing.T) {
	obj := FromJSON([]byte(`{"id":1,"name":"ann"}`))
	assert.NoError(t, Of(obj).To().Have().Property("id"))
	assert.NoError(t, Of(obj).Not().To().Have().Property("email"))
	requireFailure(t, Of(obj).To().Have().Property("email"), KindProperty)

	requireFailure(t, That("id").To().Have().Property("id"), KindTypeMismatch)
	requireFailure(t, That("id").Not().To().Have().Property("id"), KindTypeMismatch)
}

func TestMatch(t *testing.T) {
	assert.NoError(t, That("order-123").To().Match(regexp.MustCompile(`\d+`)))
	assert.NoError(t, That("order-123").To().MatchLiteral(`/^order-\d+$/i`))
	assert.NoError(t, That("a/b").To().MatchLiteral(`a/b`))
	assert.NoError(t, That(404).To().MatchLiteral(`^4\d\d$`))
	requireFailure(t, That("order").To().MatchLiteral(`/\d+/g`), KindMatch)
	requireFailure(t, That("order").Not().To().MatchLiteral("ord"), KindMatch)

	requireFailure(t, That("x").To().MatchLiteral("/([/"), KindInvalidPattern)
	requireFailure(t, That("x").Not().To().MatchLiteral("("), KindInvalidPattern)
	requireFailure(t, That("x").To().Match(nil), KindInvalidPattern)
}

func TestStripSlashes(t *testing.T) {
	tests := map[string]string{
		"/abc/":    "abc",
		"/a/b/gi":  "a/b",
		"abc":      "abc",
		"/":        "/",
		"/nofinal": "/nofinal",
		"":         "",
	}
	for in, want := range tests {
		assert.Equal(t, want, stripSlashes(in), in)
	}
}

func TestNumericComparisons(t *testing.T) {
	assert.NoError(t, That(7).To().Be().Above(5))
	assert.NoError(t, That(3).To().Be().Below(5))
	assert.NoError(t, That(5).To().Be().At().Least(5))
	assert.NoError(t, That(5).To().Be().At().Most(5))
	assert.NoError(t, That(5).To().Be().Within(1, 5))
	assert.NoError(t, That(5).Not().To().Be().Above(5))

	ae := requireFailure(t, That(5).To().Be().Above(5), KindCompare)
	assert.Equal(t, "expected 5 to be above 5", ae.Message)
	requireFailure(t, That(0).To().Be().Within(1, 5), KindCompare)
}

func TestNumericComparisons_TypeMismatchIgnoresPolarity(t *testing.T) {
	ae := requireFailure(t, That("x").To().Be().Above(5), KindTypeMismatch)
	assert.Contains(t, ae.Message, "to be a number")

	requireFailure(t, That("x").Not().To().Be().Above(5), KindTypeMismatch)
	requireFailure(t, That(nil).Not().To().Be().Below(5), KindTypeMismatch)
	requireFailure(t, That(true).Not().To().Be().Within(0, 1), KindTypeMismatch)
}

func TestLength(t *testing.T) {
	assert.NoError(t, That([]int{1, 2, 3}).To().Have().Length(3))
	assert.NoError(t, That("héllo").To().Have().Length(5))
	assert.NoError(t, That(map[string]int{"a": 1}).To().Have().Length(1))

	ae := requireFailure(t, That("ab").To().Have().Length(3), KindLength)
	assert.Equal(t, 3, ae.Expected)
	assert.Equal(t, 2, ae.Actual)

	requireFailure(t, That(42).To().Have().Length(2), KindTypeMismatch)
}

func TestOk(t *testing.T) {
	falsy := []any{nil, false, 0, math.NaN(), "", []any{}, map[string]any{}}
	for _, v := range falsy {
		assert.Error(t, That(v).To().Be().Ok(), "%#v", v)
		assert.NoError(t, That(v).Not().To().Be().Ok(), "%#v", v)
	}
	truthy := []any{true, 1, -1, "0", []any{0}, map[string]any{"a": nil}}
	for _, v := range truthy {
		assert.NoError(t, That(v).To().Be().Ok(), "%#v", v)
	}
}

func TestExistAndNull(t *testing.T) {
	assert.NoError(t, That(0).To().Exist())
	requireFailure(t, That(nil).To().Exist(), KindExist)
	assert.NoError(t, That(nil).To().Be().Null())
	assert.NoError(t, That(nil).To().Be().Undefined())
	requireFailure(t, That("").To().Be().Null(), KindNull)
	var p *int
	assert.NoError(t, That(p).To().Be().Null())
}

func TestEmpty(t *testing.T) {
	assert.NoError(t, That("").To().Be().Empty())
	assert.NoError(t, That([]any{}).To().Be().Empty())
	assert.NoError(t, That(map[string]any{}).To().Be().Empty())
	assert.NoError(t, That(nil).To().Be().Empty())
	assert.NoError(t, That("x").Not().To().Be().Empty())
	requireFailure(t, That(nil).Not().To().Be().Empty(), KindEmpty)
	requireFailure(t, That(0).To().Be().Empty(), KindTypeMismatch)
}

func TestTypeNames(t *testing.T) {
	tests := []struct {
		actual any
		name   string
	}{
		{nil, "null"},
		{"s", "string"},
		{1.5, "number"},
		{true, "Boolean"},
		{[]any{}, "array"},
		{map[string]any{}, "OBJECT"},
	}
	for _, tt := range tests {
		assert.NoError(t, That(tt.actual).To().Be().A(tt.name), tt.name)
	}
	assert.NoError(t, That([]string{"a"}).To().Be().An("array"))
	ae := requireFailure(t, That(1).To().Be().A("string"), KindType)
	assert.Equal(t, "number", ae.Actual)
}

func TestBooleansAndNaN(t *testing.T) {
	assert.NoError(t, That(true).To().Be().True())
	assert.NoError(t, That(false).To().Be().False())
	requireFailure(t, That(1).To().Be().True(), KindBoolean)
	requireFailure(t, That("").To().Be().False(), KindBoolean)

	assert.NoError(t, That(math.NaN()).To().Be().NaN())
	requireFailure(t, That("NaN").To().Be().NaN(), KindNaN)
	assert.NoError(t, That(1).Not().To().Be().NaN())
}

func TestOneOf(t *testing.T) {
	assert.NoError(t, That(201).To().Be().OneOf(200, 201, 204))
	requireFailure(t, That(500).To().Be().OneOf(200, 201), KindOneOf)
	assert.NoError(t, That("b").Not().To().Be().OneOf("a", "c"))
}

func TestJSONSchema(t *testing.T) {
	schema := `{
		"type": "object",
		"required": ["id", "name"],
		"properties": {"id": {"type": "integer"}, "name": {"type": "string"}}
	}`
	assert.NoError(t, Of(FromJSON([]byte(`{"id":1,"name":"ann"}`))).To().JSONSchema(schema))

	ae := requireFailure(t, Of(FromJSON([]byte(`{"id":"1"}`))).To().JSONSchema(schema), KindSchema)
	assert.Contains(t, ae.Message, "name")

	assert.NoError(t, Of(FromJSON([]byte(`{"id":"1"}`))).Not().To().JSONSchema(schema))
	requireFailure(t, That(1).Not().JSONSchema(`{"type": 12}`), KindSchema)
}

func TestConcurrentEvaluation(t *testing.T) {
	e := Of(FromJSON([]byte(`{"items":[1,2,3],"ok":true}`)))
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				assert.NoError(t, e.To().Have().Property("items"))
			} else {
				assert.NoError(t, e.Not().To().Be().Empty())
			}
		}(i)
	}
	wg.Wait()
	assert.False(t, e.Negated())
}
