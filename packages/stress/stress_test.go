package stress

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/restbench/packages/collection"
	"github.com/abdul-hamid-achik/restbench/packages/core/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func silentReporter(buf *bytes.Buffer) *Reporter {
	return NewReporter(WithWriter(buf), WithNoProgress(true), WithNoColor(true))
}

func writeCollection(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "load.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRunnerIntegration(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status": "ok"}`))
	}))
	defer server.Close()

	path := writeCollection(t, `
name: Load
variables:
  - key: baseUrl
    value: `+server.URL+`
items:
  - name: Health
    request:
      url: "{{baseUrl}}/health"
    checks:
      - subject: status
        assert: equal
        args: [200]
      - subject: body.status
        assert: equal
        args: ["ok"]
`)

	cfg := &Config{Mode: RateMode, Duration: time.Second, Rate: 20, MaxInFlight: 5}
	var out bytes.Buffer
	r := NewRunner(cfg, runner.NewRunner(nil), WithReporter(silentReporter(&out)))
	require.NoError(t, r.LoadFile(path))

	result, err := r.Run(context.Background())
	require.NoError(t, err)

	s := result.Summary
	assert.Greater(t, s.TotalRequests, int64(5))
	assert.Equal(t, s.TotalRequests, s.SuccessCount)
	assert.Zero(t, s.ErrorCount)
	assert.Zero(t, s.CheckFailures)
	assert.Equal(t, hits.Load(), s.TotalRequests, "every executed request is drained into metrics")
	assert.True(t, result.Passed)
	assert.Contains(t, out.String(), "STRESS TEST SUMMARY")
	assert.Contains(t, out.String(), "restbench stress")
}

func TestRunnerCheckFailuresAndErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	tree, err := collection.Parse([]byte(`
name: Load
items:
  - name: Broken
    request:
      url: ` + server.URL + `/fail
  - name: Unreachable
    request:
      url: http://127.0.0.1:1/nothing
`))
	require.NoError(t, err)

	cfg := &Config{Mode: RateMode, Duration: 500 * time.Millisecond, Rate: 20, MaxInFlight: 5}
	cfg.Thresholds, err = ParseThresholds("errors<1%,checks<1%")
	require.NoError(t, err)

	var out bytes.Buffer
	r := NewRunner(cfg, runner.NewRunner(nil), WithReporter(silentReporter(&out)))
	require.NoError(t, r.Load(tree))

	result, err := r.Run(context.Background())
	require.NoError(t, err)

	s := result.Summary
	assert.Zero(t, s.SuccessCount)
	assert.Equal(t, s.TotalRequests, s.ErrorCount+s.CheckFailures)
	assert.False(t, result.Passed)
	require.Len(t, result.Thresholds, 2)
	assert.Contains(t, out.String(), "Some thresholds failed!")
}

func TestRunnerWorkerMode(t *testing.T) {
	var inFlight, peak atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
	}))
	defer server.Close()

	tree, err := collection.Parse([]byte(`
name: Load
items:
  - name: Slow
    request:
      url: ` + server.URL + `/slow
`))
	require.NoError(t, err)

	cfg := &Config{Mode: WorkerMode, Duration: 500 * time.Millisecond, Workers: 3, MaxInFlight: 10}
	var out bytes.Buffer
	r := NewRunner(cfg, runner.NewRunner(nil), WithReporter(silentReporter(&out)))
	require.NoError(t, r.Load(tree))

	result, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Greater(t, result.Summary.TotalRequests, int64(3))
	assert.LessOrEqual(t, peak.Load(), int32(3), "worker count bounds concurrency")
}

func TestRunnerWeightedItems(t *testing.T) {
	var heavy, light atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/heavy":
			heavy.Add(1)
		case "/light":
			light.Add(1)
		case "/never":
			t.Error("item with negative weight was executed")
		}
	}))
	defer server.Close()

	tree, err := collection.Parse([]byte(`
name: Load
items:
  - name: Heavy
    weight: 9
    request:
      url: ` + server.URL + `/heavy
  - name: Light
    request:
      url: ` + server.URL + `/light
  - name: Excluded
    weight: -1
    request:
      url: ` + server.URL + `/never
`))
	require.NoError(t, err)

	cfg := &Config{Mode: WorkerMode, Duration: 500 * time.Millisecond, Workers: 4, MaxInFlight: 4}
	var out bytes.Buffer
	r := NewRunner(cfg, runner.NewRunner(nil), WithReporter(silentReporter(&out)))
	require.NoError(t, r.Load(tree))
	assert.Equal(t, 2, r.scheduler.Len())

	_, err = r.Run(context.Background())
	require.NoError(t, err)

	require.Greater(t, light.Load(), int64(0))
	assert.Greater(t, heavy.Load(), 3*light.Load())
}

func TestRunnerNameFilter(t *testing.T) {
	tree, err := collection.Parse([]byte(`
name: Load
items:
  - name: List users
    request:
      url: http://localhost/users
  - name: Health
    request:
      url: http://localhost/health
`))
	require.NoError(t, err)

	r := NewRunner(DefaultConfig(), nil, WithNameFilter("*users*"), WithReporter(silentReporter(&bytes.Buffer{})))
	require.NoError(t, r.Load(tree))
	targets := r.scheduler.Targets()
	require.Len(t, targets, 1)
	assert.Equal(t, "List users", targets[0].Name)

	r = NewRunner(DefaultConfig(), nil, WithNameFilter("nothing"), WithReporter(silentReporter(&bytes.Buffer{})))
	assert.Error(t, r.Load(tree))
}

func TestRunnerRequiresCollection(t *testing.T) {
	r := NewRunner(DefaultConfig(), nil, WithReporter(silentReporter(&bytes.Buffer{})))
	_, err := r.Run(context.Background())
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.Duration = 0
	r = NewRunner(cfg, nil, WithReporter(silentReporter(&bytes.Buffer{})))
	_, err = r.Run(context.Background())
	assert.ErrorContains(t, err, "invalid config")
}

func TestRunnerGracefulShutdown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(100 * time.Millisecond):
		}
	}))
	defer server.Close()

	tree, err := collection.Parse([]byte(`
name: Load
items:
  - name: Slow
    request:
      url: ` + server.URL + `/slow
`))
	require.NoError(t, err)

	cfg := &Config{Mode: RateMode, Duration: 10 * time.Second, Rate: 5, MaxInFlight: 5}
	var out bytes.Buffer
	r := NewRunner(cfg, runner.NewRunner(nil), WithReporter(silentReporter(&out)))
	require.NoError(t, r.Load(tree))

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	start := time.Now()
	result, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 3*time.Second, "should stop when the context ends")
	assert.NotNil(t, result.Summary)
}

func TestReporterJSONSummary(t *testing.T) {
	m := NewMetrics()
	m.Start()
	m.Record(okResult("a", 200, 12*time.Millisecond))
	m.Stop()
	s := m.Summary()

	var out bytes.Buffer
	rep := silentReporter(&out)
	require.NoError(t, rep.JSONSummary(s, []ThresholdResult{{Name: "p95", Passed: true, Expected: "< 1s", Actual: "12ms"}}))

	body := out.String()
	assert.Contains(t, body, `"total": 1`)
	assert.Contains(t, body, `"200": 1`)
	assert.Contains(t, body, `"name": "p95"`)
	assert.Contains(t, body, `"p50": 12`)
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "999", formatNumber(999))
	assert.Equal(t, "1,000", formatNumber(1000))
	assert.Equal(t, "1,234,567", formatNumber(1234567))
	assert.Equal(t, "-12,345", formatNumber(-12345))

	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.5 KB", formatBytes(1536))
	assert.Equal(t, "2.0 MB", formatBytes(2*1024*1024))

	assert.Equal(t, "500ms", formatDuration(500*time.Millisecond))
	assert.Equal(t, "1m 05s", formatDuration(65*time.Second))
	assert.Equal(t, "250μs", formatLatency(250*time.Microsecond))
}
