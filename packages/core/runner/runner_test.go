package runner

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/restbench/packages/collection"
	"github.com/abdul-hamid-achik/restbench/packages/core/env"
	"github.com/abdul-hamid-achik/restbench/packages/ingest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAPIServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users":
			if r.Header.Get("Authorization") != "Bearer secret" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status": "ok", "items": [1, 2, 3], "page": "` + r.URL.Query().Get("page") + `"}`))
		case "/health":
			if r.Header.Get("Authorization") != "" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			_, _ = w.Write([]byte("ok"))
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func parseTree(t *testing.T, yaml string) *collection.Tree {
	t.Helper()
	tree, err := collection.Parse([]byte(yaml))
	require.NoError(t, err)
	return tree
}

func collectionYAML(baseURL string) string {
	return `
name: Shop
auth:
  type: bearer
  token: "{{token}}"
variables:
  - key: baseUrl
    value: ` + baseURL + `
items:
  - name: Users
    variables:
      - key: page
        value: "2"
    items:
      - name: List users
        request:
          url: "{{baseUrl}}/users"
          params:
            - key: page
              value: "{{page}}"
        checks:
          - subject: status
            assert: equal
            args: [200]
          - subject: body.items
            assert: length
            args: [3]
          - subject: body.page
            assert: equal
            args: ["2"]
  - name: Health
    auth:
      type: none
    request:
      url: "{{baseUrl}}/health"
`
}

func TestNewRunner(t *testing.T) {
	t.Run("with nil config", func(t *testing.T) {
		r := NewRunner(nil)
		assert.NotNil(t, r)
		assert.NotNil(t, r.client)
		assert.NotNil(t, r.resolver)
		assert.NotNil(t, r.ingestor)
	})

	t.Run("with custom config", func(t *testing.T) {
		cfg := &Config{
			Environment: "test",
			Verbose:     true,
			Parallel:    true,
			Concurrency: 10,
		}
		r := NewRunner(cfg)
		assert.Equal(t, "test", r.config.Environment)
		assert.True(t, r.config.Verbose)
	})
}

func TestRunner_RunCollection(t *testing.T) {
	server := newAPIServer(t)
	resolver := env.NewResolver()
	resolver.SetEnvironment(map[string]any{"token": "secret"})

	r := NewRunner(&Config{}, WithResolver(resolver))
	result, err := r.RunCollection(context.Background(), parseTree(t, collectionYAML(server.URL)))

	require.NoError(t, err)
	assert.Equal(t, "Shop", result.Collection)
	require.Len(t, result.Results, 2)
	assert.Equal(t, 2, result.Passed)
	assert.Equal(t, 0, result.Failed)

	users := result.Results[0]
	assert.Equal(t, "List users", users.Name)
	assert.Equal(t, "Shop / Users / List users", users.Path)
	assert.Len(t, users.Tests, 3)
	assert.Equal(t, server.URL+"/users", users.Request.URL)
	assert.Equal(t, "secret", users.Request.Auth.Token)
	assert.Equal(t, 1, users.Attempts)

	health := result.Results[1]
	assert.True(t, health.Passed)
	assert.Equal(t, "ok", health.Response.Body)
	assert.Empty(t, health.Tests)
}

func TestRunner_FailingCheck(t *testing.T) {
	server := newAPIServer(t)
	tree := parseTree(t, `
name: Failing
items:
  - name: Missing
    request:
      url: `+server.URL+`/missing
    checks:
      - subject: status
        assert: equal
        args: [200]
  - name: Also missing
    request:
      url: `+server.URL+`/missing
`)

	result, err := NewRunner(nil).RunCollection(context.Background(), tree)

	require.NoError(t, err)
	assert.Equal(t, 0, result.Passed)
	assert.Equal(t, 2, result.Failed)
	require.Len(t, result.Results[0].Tests, 1)
	assert.Equal(t, "expected 404 to equal 200", result.Results[0].Tests[0].Message)
}

func TestRunner_Captures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
			w.Header().Set("X-Request-Id", "req-9")
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"token": "secret", "user": {"id": 7}}`))
		case "/users/7":
			if r.Header.Get("Authorization") != "Bearer secret" || r.Header.Get("X-Trace") != "req-9" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)

	tree := parseTree(t, `
name: Chained
items:
  - name: Login
    request:
      method: post
      url: `+server.URL+`/login
    captures:
      - name: token
        from: body.token
      - name: userId
        from: body.user.id
      - name: trace
        from: header X-Request-Id
      - name: nothing
        from: body.missing
  - name: Profile
    auth:
      type: bearer
      token: "{{token}}"
    headers:
      - key: X-Trace
        value: "{{trace}}"
    request:
      url: `+server.URL+`/users/{{userId}}
    checks:
      - subject: status
        assert: equal
        args: [200]
`)

	r := NewRunner(nil)
	result, err := r.RunCollection(context.Background(), tree)
	require.NoError(t, err)
	require.Len(t, result.Results, 2)

	login := result.Results[0]
	assert.Equal(t, map[string]any{"token": "secret", "userId": float64(7), "trace": "req-9"}, login.Captures)

	profile := result.Results[1]
	assert.Equal(t, server.URL+"/users/7", profile.Request.URL)
	assert.True(t, profile.Passed, "captured values feed later requests")

	v, ok := r.resolver.GetVariable("token")
	require.True(t, ok)
	assert.Equal(t, "secret", v)
}

func TestRunner_Bail(t *testing.T) {
	server := newAPIServer(t)
	tree := parseTree(t, `
name: Bail
items:
  - name: First
    request:
      url: `+server.URL+`/missing
  - name: Second
    request:
      url: `+server.URL+`/ok
`)

	result, err := NewRunner(&Config{Bail: true}).RunCollection(context.Background(), tree)

	require.NoError(t, err)
	assert.Len(t, result.Results, 1)
	assert.Equal(t, 1, result.Failed)
}

func TestRunner_NameFilter(t *testing.T) {
	server := newAPIServer(t)
	resolver := env.NewResolver()
	resolver.SetEnvironment(map[string]any{"token": "secret"})

	r := NewRunner(&Config{NameFilter: "List*"}, WithResolver(resolver))
	result, err := r.RunCollection(context.Background(), parseTree(t, collectionYAML(server.URL)))

	require.NoError(t, err)
	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, "filtered out", result.Results[0].SkipReason)
}

func TestRunner_Parallel(t *testing.T) {
	var inFlight, peak atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	var sb strings.Builder
	sb.WriteString("name: Parallel\nitems:\n")
	for i := 0; i < 8; i++ {
		sb.WriteString("  - name: req\n    request:\n      url: " + server.URL + "/x\n")
	}

	queue := NewResultQueue()
	r := NewRunner(&Config{Parallel: true, Concurrency: 2}, WithQueue(queue))
	result, err := r.RunCollection(context.Background(), parseTree(t, sb.String()))

	require.NoError(t, err)
	assert.Equal(t, 8, result.Passed)
	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Equal(t, int64(8), queue.Pushed())
	assert.Len(t, queue.Drain(100), 8)
}

func TestRunner_Retry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	tree := parseTree(t, "name: Retry\nitems:\n  - name: flaky\n    request:\n      url: "+server.URL+"\n")
	r := NewRunner(&Config{Retries: 3, RetryDelay: time.Millisecond, RetryOn: []int{503}})

	result, err := r.RunCollection(context.Background(), tree)

	require.NoError(t, err)
	assert.True(t, result.Results[0].Passed)
	assert.Equal(t, 3, result.Results[0].Attempts)
}

func TestRunner_CancelledContextSkipsRemaining(t *testing.T) {
	server := newAPIServer(t)
	tree := parseTree(t, "name: C\nitems:\n  - name: a\n    request:\n      url: "+server.URL+"/ok\n  - name: b\n    request:\n      url: "+server.URL+"/ok\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := NewRunner(nil).RunCollection(ctx, tree)

	require.NoError(t, err)
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, "cancelled", result.Results[1].SkipReason)
}

func TestRunner_LargeBodyGoesToTempFile(t *testing.T) {
	payload := strings.Repeat("a", 4096)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(payload))
	}))
	defer server.Close()

	in := ingest.NewIngestor(
		ingest.WithLimits(ingest.Limits{InlineBytes: 1024, HardBytes: 1 << 20}),
		ingest.WithTempDir(t.TempDir()),
	)
	tree := parseTree(t, `
name: Large
items:
  - name: big
    request:
      url: `+server.URL+`
    checks:
      - subject: size
        assert: equal
        args: [4096]
      - subject: body
        assert: length
        args: [4096]
`)

	result, err := NewRunner(nil, WithIngestor(in)).RunCollection(context.Background(), tree)

	require.NoError(t, err)
	res := result.Results[0]
	assert.True(t, res.Passed)
	assert.Equal(t, ingest.BodyFile, res.Response.BodyKind)
	assert.Equal(t, ingest.LimitInline, res.Response.Limit)

	require.NoError(t, in.Cleanup())
	files, _ := in.TempFiles()
	assert.Empty(t, files)
}

func TestRunner_RunFile(t *testing.T) {
	server := newAPIServer(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shop.yaml"), []byte(collectionYAML(server.URL)), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("token=secret\n"), 0o644))

	result, err := NewRunner(nil).RunFile(context.Background(), filepath.Join(dir, "shop.yaml"))

	require.NoError(t, err)
	assert.Equal(t, 2, result.Passed)
}

func TestRunner_Scripts(t *testing.T) {
	server := newAPIServer(t)
	dir := t.TempDir()
	tree := parseTree(t, `
name: Scripts
preScript: echo outer >> trace.txt
postScript: echo "outer $RB_STATUS" >> trace.txt
items:
  - name: ping
    preScript: echo inner >> trace.txt
    postScript: test "$RB_BODY" = ok
    request:
      url: `+server.URL+`/health
  - name: broken
    preScript: exit 3
    request:
      url: `+server.URL+`/health
`)

	r := NewRunner(&Config{RunScripts: true, BaseDir: dir})
	result, err := r.RunCollection(context.Background(), tree)
	require.NoError(t, err)

	ping := result.Results[0]
	assert.True(t, ping.Passed)
	require.Len(t, ping.Tests, 2)
	assert.Equal(t, "post-script request ping", ping.Tests[0].Name)
	assert.Equal(t, "post-script group Scripts", ping.Tests[1].Name)

	trace, err := os.ReadFile(filepath.Join(dir, "trace.txt"))
	require.NoError(t, err)
	assert.Equal(t, "outer\ninner\nouter 200\nouter\n", string(trace))

	broken := result.Results[1]
	assert.False(t, broken.Passed)
	require.Error(t, broken.Error)
	assert.Contains(t, broken.Error.Error(), "pre-script failed")
}

func TestRunner_WaitFor(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	tree := parseTree(t, "name: W\n")
	r := NewRunner(&Config{WaitFor: &WaitFor{URL: server.URL, Interval: time.Millisecond, Timeout: 5 * time.Second}})
	_, err := r.RunCollection(context.Background(), tree)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, calls.Load(), int32(3))

	r = NewRunner(&Config{WaitFor: &WaitFor{URL: server.URL, Status: 418, Interval: time.Millisecond, Timeout: 20 * time.Millisecond}})
	_, err = r.RunCollection(context.Background(), tree)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 418")
}

func TestMatchesPattern(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		want    bool
	}{
		{"anything", "", true},
		{"List users", "List users", true},
		{"List users", "List*", true},
		{"List users", "*users", true},
		{"List users", "*st us*", true},
		{"List users", "Get*", false},
		{"List users", "*", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matchesPattern(tt.name, tt.pattern), "%s / %s", tt.name, tt.pattern)
	}
}
