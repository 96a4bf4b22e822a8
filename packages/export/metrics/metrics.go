// Package metrics exports the results of collection runs as Prometheus text
// or JSON, for CI jobs that feed dashboards.
package metrics

import (
	"fmt"
	"io"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/restbench/packages/core/runner"
)

// TestMetrics is one executed request.
type TestMetrics struct {
	Collection     string    `json:"collection"`
	TestName       string    `json:"test_name"`
	Path           string    `json:"path,omitempty"`
	RequestMethod  string    `json:"request_method,omitempty"`
	RequestURL     string    `json:"request_url,omitempty"`
	StatusCode     int       `json:"status_code,omitempty"`
	DurationMs     float64   `json:"duration_ms"`
	BodySize       int64     `json:"body_size"`
	Passed         bool      `json:"passed"`
	Skipped        bool      `json:"skipped,omitempty"`
	Errored        bool      `json:"errored,omitempty"`
	AssertionCount int       `json:"assertion_count"`
	FailedCount    int       `json:"failed_count"`
	Timestamp      time.Time `json:"timestamp"`
}

// AggregateMetrics summarises every recorded request. Skipped requests are
// counted but do not contribute durations.
type AggregateMetrics struct {
	TotalRequests   int64                     `json:"total_requests"`
	SuccessCount    int64                     `json:"success_count"`
	FailureCount    int64                     `json:"failure_count"`
	ErrorCount      int64                     `json:"error_count"`
	SkippedCount    int64                     `json:"skipped_count"`
	BytesReceived   int64                     `json:"bytes_received"`
	TotalDurationMs float64                   `json:"total_duration_ms"`
	MinDurationMs   float64                   `json:"min_duration_ms"`
	MaxDurationMs   float64                   `json:"max_duration_ms"`
	AvgDurationMs   float64                   `json:"avg_duration_ms"`
	P50DurationMs   float64                   `json:"p50_duration_ms"`
	P95DurationMs   float64                   `json:"p95_duration_ms"`
	P99DurationMs   float64                   `json:"p99_duration_ms"`
	StatusCodes     map[int]int64             `json:"status_codes"`
	ByTest          map[string]*TestAggregate `json:"by_test"`
}

// TestAggregate is the per-request breakdown, keyed by tree path.
type TestAggregate struct {
	Name          string  `json:"name"`
	TotalRequests int64   `json:"total_requests"`
	SuccessCount  int64   `json:"success_count"`
	FailureCount  int64   `json:"failure_count"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
	MinDurationMs float64 `json:"min_duration_ms"`
	MaxDurationMs float64 `json:"max_duration_ms"`
}

// Exporter writes a finished aggregate somewhere.
type Exporter interface {
	Export(aggregate *AggregateMetrics, results []*TestMetrics) error
	Close() error
}

// Formats lists the names NewExporter accepts.
var Formats = []string{"prometheus", "json"}

// NewExporter returns the exporter for format, writing to w. Labels only
// apply to the Prometheus format.
func NewExporter(format string, w io.Writer, version string, labels map[string]string) (Exporter, error) {
	switch format {
	case "", "prometheus", "prom":
		return NewPrometheusExporter(WithPrometheusWriter(w), WithPrometheusLabels(labels)), nil
	case "json":
		return NewJSONExporter(WithJSONWriter(w), WithJSONVersion(version)), nil
	default:
		return nil, fmt.Errorf("unknown metrics format %q (want one of %v)", format, Formats)
	}
}

// Collector gathers request results and hands the aggregate to its
// exporters on Flush. It is safe for concurrent use.
type Collector struct {
	mu        sync.Mutex
	metrics   []*TestMetrics
	durations []float64
	aggregate *AggregateMetrics
	exporters []Exporter
}

func NewCollector(exporters ...Exporter) *Collector {
	return &Collector{
		exporters: exporters,
		aggregate: &AggregateMetrics{
			StatusCodes: make(map[int]int64),
			ByTest:      make(map[string]*TestAggregate),
		},
	}
}

// FromResult converts one runner result.
func FromResult(collection string, r *runner.RequestResult) *TestMetrics {
	m := &TestMetrics{
		Collection:     collection,
		TestName:       r.Name,
		Path:           r.Path,
		DurationMs:     float64(r.Duration.Microseconds()) / 1000,
		Passed:         r.Passed,
		Skipped:        r.Skipped,
		Errored:        r.Error != nil,
		AssertionCount: len(r.Tests),
		Timestamp:      time.Now(),
	}
	if r.Request != nil {
		m.RequestMethod = r.Request.Method
		m.RequestURL = r.Request.URL
	}
	if r.Response != nil {
		m.StatusCode = r.Response.StatusCode
		m.BodySize = r.Response.BodySize
		if r.Response.Duration > 0 {
			m.DurationMs = float64(r.Response.Duration.Microseconds()) / 1000
		}
	}
	for _, t := range r.Tests {
		if !t.Passed {
			m.FailedCount++
		}
	}
	return m
}

// RecordRun records every result of a collection run.
func (c *Collector) RecordRun(res *runner.RunResult) {
	for _, r := range res.Results {
		c.Record(FromResult(res.Collection, r))
	}
}

func (c *Collector) Record(m *TestMetrics) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.metrics = append(c.metrics, m)
	c.updateAggregate(m)
}

func (c *Collector) updateAggregate(m *TestMetrics) {
	a := c.aggregate
	a.TotalRequests++
	switch {
	case m.Skipped:
		a.SkippedCount++
		return
	case m.Errored:
		a.ErrorCount++
	case m.Passed:
		a.SuccessCount++
	default:
		a.FailureCount++
	}

	a.BytesReceived += m.BodySize
	a.TotalDurationMs += m.DurationMs
	c.durations = append(c.durations, m.DurationMs)
	if len(c.durations) == 1 {
		a.MinDurationMs = m.DurationMs
		a.MaxDurationMs = m.DurationMs
	} else {
		a.MinDurationMs = math.Min(a.MinDurationMs, m.DurationMs)
		a.MaxDurationMs = math.Max(a.MaxDurationMs, m.DurationMs)
	}
	a.AvgDurationMs = a.TotalDurationMs / float64(len(c.durations))
	if m.StatusCode > 0 {
		a.StatusCodes[m.StatusCode]++
	}

	key := m.Path
	if key == "" {
		key = m.TestName
	}
	ta, ok := a.ByTest[key]
	if !ok {
		ta = &TestAggregate{Name: key, MinDurationMs: m.DurationMs, MaxDurationMs: m.DurationMs}
		a.ByTest[key] = ta
	}
	ta.TotalRequests++
	if m.Passed {
		ta.SuccessCount++
	} else {
		ta.FailureCount++
	}
	ta.MinDurationMs = math.Min(ta.MinDurationMs, m.DurationMs)
	ta.MaxDurationMs = math.Max(ta.MaxDurationMs, m.DurationMs)
	ta.AvgDurationMs = (ta.AvgDurationMs*float64(ta.TotalRequests-1) + m.DurationMs) / float64(ta.TotalRequests)
}

// GetAggregate returns the aggregate with percentiles filled in.
func (c *Collector) GetAggregate() *AggregateMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	sorted := slices.Clone(c.durations)
	slices.Sort(sorted)
	c.aggregate.P50DurationMs = percentile(sorted, 50)
	c.aggregate.P95DurationMs = percentile(sorted, 95)
	c.aggregate.P99DurationMs = percentile(sorted, 99)
	return c.aggregate
}

// Flush exports the aggregate to every exporter.
func (c *Collector) Flush() error {
	aggregate := c.GetAggregate()
	c.mu.Lock()
	results := slices.Clone(c.metrics)
	c.mu.Unlock()

	for _, exp := range c.exporters {
		if err := exp.Export(aggregate, results); err != nil {
			return err
		}
	}
	return nil
}

func (c *Collector) Close() error {
	for _, exp := range c.exporters {
		if err := exp.Close(); err != nil {
			return err
		}
	}
	return nil
}

// percentile uses the nearest-rank method on sorted values.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(p / 100 * float64(len(sorted))))
	return sorted[max(rank-1, 0)]
}
