package metrics

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/restbench/packages/core/inherit"
	"github.com/abdul-hamid-achik/restbench/packages/core/runner"
	"github.com/abdul-hamid-achik/restbench/packages/expect"
	"github.com/abdul-hamid-achik/restbench/packages/ingest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRun() *runner.RunResult {
	return &runner.RunResult{
		Collection: "Shop",
		Results: []*runner.RequestResult{
			{
				Name:     "List users",
				Path:     "Shop / Users / List users",
				Passed:   true,
				Request:  &inherit.EffectiveRequest{Method: "GET", URL: "http://x/users"},
				Response: &ingest.Response{StatusCode: 200, BodySize: 100, Duration: 10 * time.Millisecond},
				Tests:    []expect.TestResult{{Name: "status", Passed: true}},
			},
			{
				Name:     "Create user",
				Path:     "Shop / Users / Create user",
				Response: &ingest.Response{StatusCode: 500, BodySize: 20, Duration: 30 * time.Millisecond},
				Tests:    []expect.TestResult{{Name: "status", Passed: false}, {Name: "body", Passed: true}},
			},
			{Name: "Down", Path: "Shop / Down", Duration: 5 * time.Millisecond, Error: errors.New("refused")},
			{Name: "Later", Path: "Shop / Later", Skipped: true},
		},
	}
}

func TestFromResult(t *testing.T) {
	run := sampleRun()
	m := FromResult("Shop", run.Results[1])
	assert.Equal(t, "Create user", m.TestName)
	assert.Equal(t, 500, m.StatusCode)
	assert.Equal(t, 30.0, m.DurationMs, "response duration wins over pipeline duration")
	assert.Equal(t, 2, m.AssertionCount)
	assert.Equal(t, 1, m.FailedCount)
	assert.False(t, m.Errored)

	down := FromResult("Shop", run.Results[2])
	assert.True(t, down.Errored)
	assert.Equal(t, 5.0, down.DurationMs)
}

func TestCollectorAggregate(t *testing.T) {
	c := NewCollector()
	c.RecordRun(sampleRun())
	a := c.GetAggregate()

	assert.Equal(t, int64(4), a.TotalRequests)
	assert.Equal(t, int64(1), a.SuccessCount)
	assert.Equal(t, int64(1), a.FailureCount)
	assert.Equal(t, int64(1), a.ErrorCount)
	assert.Equal(t, int64(1), a.SkippedCount)
	assert.Equal(t, int64(120), a.BytesReceived)
	assert.Equal(t, 5.0, a.MinDurationMs)
	assert.Equal(t, 30.0, a.MaxDurationMs)
	assert.Equal(t, 15.0, a.AvgDurationMs)
	assert.Equal(t, 10.0, a.P50DurationMs)
	assert.Equal(t, 30.0, a.P99DurationMs)
	assert.Equal(t, map[int]int64{200: 1, 500: 1}, a.StatusCodes)
	require.Len(t, a.ByTest, 3, "skipped requests have no breakdown")
	assert.Equal(t, int64(1), a.ByTest["Shop / Users / Create user"].FailureCount)
}

func TestPercentile(t *testing.T) {
	assert.Zero(t, percentile(nil, 50))
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.Equal(t, 5.0, percentile(values, 50))
	assert.Equal(t, 10.0, percentile(values, 95))
	assert.Equal(t, 1.0, percentile(values, 0))
}

func TestPrometheusExporter(t *testing.T) {
	var buf bytes.Buffer
	exp, err := NewExporter("prometheus", &buf, "dev", map[string]string{"environment": "staging"})
	require.NoError(t, err)

	c := NewCollector(exp)
	c.RecordRun(sampleRun())
	require.NoError(t, c.Flush())
	require.NoError(t, c.Close())

	out := buf.String()
	assert.Contains(t, out, "# TYPE restbench_requests_total counter")
	assert.Contains(t, out, `restbench_requests_total{environment="staging",outcome="passed"} 1`)
	assert.Contains(t, out, `restbench_requests_total{environment="staging",outcome="skipped"} 1`)
	assert.Contains(t, out, `restbench_requests_by_status_total{environment="staging",status="500"} 1`)
	assert.Contains(t, out, `restbench_request_duration_ms{environment="staging",quantile="max"} 30.00`)
	assert.Contains(t, out, `restbench_test_requests_total{environment="staging",test="Shop / Down"} 1`)
	assert.Contains(t, out, `restbench_response_bytes_total{environment="staging"} 120`)
}

func TestSanitizeLabel(t *testing.T) {
	assert.Equal(t, `say \"hi\"\n`, sanitizeLabel("say \"hi\"\n"))
	assert.Equal(t, `a\\b`, sanitizeLabel(`a\b`))
}

func TestJSONExporter(t *testing.T) {
	var buf bytes.Buffer
	exp, err := NewExporter("json", &buf, "1.2.3", nil)
	require.NoError(t, err)

	c := NewCollector(exp)
	c.RecordRun(sampleRun())
	require.NoError(t, c.Flush())

	var out JSONMetricsOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "1.2.3", out.Metadata.Version)
	assert.Equal(t, int64(4), out.Summary.TotalRequests)
	require.Len(t, out.TestResults, 4)
	assert.Equal(t, "GET", out.TestResults[0].RequestMethod)
}

func TestNewExporter_Unknown(t *testing.T) {
	_, err := NewExporter("datadog", &bytes.Buffer{}, "", nil)
	assert.ErrorContains(t, err, "unknown metrics format")
}
