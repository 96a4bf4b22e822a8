package env

import (
	"fmt"
	"sync"
	"testing"

	"github.com/abdul-hamid-achik/restbench/packages/collection"
	"github.com/abdul-hamid-achik/restbench/packages/core/inherit"
	"github.com/stretchr/testify/assert"
)

func TestResolver_Resolve(t *testing.T) {
	t.Setenv("RESTBENCH_TEST_SECRET", "s3cr3t")

	r := NewResolver()
	r.SetVariables(map[string]any{"host": "api.local", "port": 8080})

	assert.Equal(t, "http://api.local:8080/x", r.Resolve("http://{{host}}:{{ port }}/x"))
	assert.Equal(t, "s3cr3t", r.Resolve("{{$RESTBENCH_TEST_SECRET}}"))
	assert.Equal(t, "aGk=", r.Resolve(`{{base64("hi")}}`))
	assert.Equal(t, "no braces", r.Resolve("no braces"))
}

func TestResolver_EnvironmentShadowsVariables(t *testing.T) {
	r := NewResolver()
	r.SetVariable("host", "from-group")
	r.SetEnvironmentVariables([]collection.Variable{{Key: "host", Value: "from-env"}})

	assert.Equal(t, "from-env", r.Resolve("{{host}}"))
}

func TestResolver_UnresolvedWarns(t *testing.T) {
	var warnings []string
	r := NewResolver()
	r.SetWarnFunc(func(format string, args ...any) {
		warnings = append(warnings, fmt.Sprintf(format, args...))
	})

	out := r.Resolve("{{missing}} {{$RESTBENCH_DEFINITELY_UNSET}} {{nofunc()}}")

	assert.Equal(t, "{{missing}} {{$RESTBENCH_DEFINITELY_UNSET}} {{nofunc()}}", out)
	assert.Equal(t, []string{
		"unresolved variable: missing",
		"unresolved environment variable: $RESTBENCH_DEFINITELY_UNSET",
		"unresolved function call: nofunc()",
	}, warnings)
}

func TestResolverHasUnresolved(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		variables map[string]any
		expected  bool
	}{
		{name: "no variables", input: "hello world", expected: false},
		{name: "resolved variable", input: "{{foo}}", variables: map[string]any{"foo": "bar"}, expected: false},
		{name: "unresolved variable", input: "{{foo}}", expected: true},
		{name: "mixed", input: "{{foo}} and {{bar}}", variables: map[string]any{"foo": "x"}, expected: true},
		{name: "known function", input: "{{uuid()}}", expected: false},
		{name: "unknown function", input: "{{nope()}}", expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver()
			r.SetVariables(tt.variables)
			assert.Equal(t, tt.expected, r.HasUnresolved(tt.input))
		})
	}
}

func TestResolver_Apply(t *testing.T) {
	r := NewResolver()
	r.SetEnvironment(map[string]any{"token": "env-token"})

	req := &inherit.EffectiveRequest{
		Method:    "POST",
		URL:       "{{base}}/users",
		Body:      `{"name":"{{user}}"}`,
		Auth:      collection.Bearer("{{token}}"),
		Headers:   []collection.Header{{Key: "X-User", Value: "{{user}}", Enabled: true}},
		Params:    []collection.Param{{Key: "q", Value: "{{user}}", Enabled: true}},
		Variables: []collection.Variable{{Key: "base", Value: "http://h"}, {Key: "user", Value: "ann"}},
	}

	out := r.Apply(req)

	assert.Equal(t, "http://h/users", out.URL)
	assert.Equal(t, `{"name":"ann"}`, out.Body)
	assert.Equal(t, "env-token", out.Auth.Token)
	assert.Equal(t, "ann", out.Headers[0].Value)
	assert.Equal(t, "ann", out.Params[0].Value)

	// the source request and the shared resolver are untouched
	assert.Equal(t, "{{base}}/users", req.URL)
	assert.Equal(t, "{{user}}", req.Headers[0].Value)
	_, ok := r.GetVariable("user")
	assert.False(t, ok)
}

func TestResolver_ConcurrentApply(t *testing.T) {
	r := NewResolver()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := &inherit.EffectiveRequest{
				URL:       "{{n}}",
				Variables: []collection.Variable{{Key: "n", Value: fmt.Sprint(i)}},
			}
			out := r.Apply(req)
			assert.Equal(t, fmt.Sprint(i), out.URL)
		}(i)
	}
	wg.Wait()
}
