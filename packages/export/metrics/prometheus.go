package metrics

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
)

// PrometheusExporter writes the text exposition format. The output carries
// no timestamps so it can be dropped into a node_exporter textfile
// directory.
type PrometheusExporter struct {
	writer io.Writer
	labels map[string]string
}

type PrometheusOption func(*PrometheusExporter)

func WithPrometheusWriter(w io.Writer) PrometheusOption {
	return func(p *PrometheusExporter) {
		p.writer = w
	}
}

// WithPrometheusLabels adds constant labels to every sample, such as the
// environment name.
func WithPrometheusLabels(labels map[string]string) PrometheusOption {
	return func(p *PrometheusExporter) {
		p.labels = labels
	}
}

func NewPrometheusExporter(opts ...PrometheusOption) *PrometheusExporter {
	p := &PrometheusExporter{writer: io.Discard}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *PrometheusExporter) Export(a *AggregateMetrics, _ []*TestMetrics) error {
	var b strings.Builder

	family(&b, "restbench_requests_total", "counter", "Requests executed, by outcome")
	for _, o := range []struct {
		name  string
		count int64
	}{
		{"passed", a.SuccessCount},
		{"failed", a.FailureCount},
		{"error", a.ErrorCount},
		{"skipped", a.SkippedCount},
	} {
		fmt.Fprintf(&b, "restbench_requests_total%s %d\n", p.labelSet("outcome", o.name), o.count)
	}
	b.WriteString("\n")

	family(&b, "restbench_response_bytes_total", "counter", "Response body bytes received")
	fmt.Fprintf(&b, "restbench_response_bytes_total%s %d\n\n", p.labelSet(), a.BytesReceived)

	family(&b, "restbench_request_duration_ms", "gauge", "Request duration in milliseconds")
	for _, q := range []struct {
		name  string
		value float64
	}{
		{"min", a.MinDurationMs},
		{"avg", a.AvgDurationMs},
		{"0.5", a.P50DurationMs},
		{"0.95", a.P95DurationMs},
		{"0.99", a.P99DurationMs},
		{"max", a.MaxDurationMs},
	} {
		fmt.Fprintf(&b, "restbench_request_duration_ms%s %.2f\n", p.labelSet("quantile", q.name), q.value)
	}
	b.WriteString("\n")

	if len(a.StatusCodes) > 0 {
		family(&b, "restbench_requests_by_status_total", "counter", "Requests by HTTP status code")
		for _, code := range slices.Sorted(maps.Keys(a.StatusCodes)) {
			fmt.Fprintf(&b, "restbench_requests_by_status_total%s %d\n", p.labelSet("status", fmt.Sprint(code)), a.StatusCodes[code])
		}
		b.WriteString("\n")
	}

	if len(a.ByTest) > 0 {
		names := slices.Sorted(maps.Keys(a.ByTest))
		family(&b, "restbench_test_requests_total", "counter", "Requests per collection item")
		for _, name := range names {
			fmt.Fprintf(&b, "restbench_test_requests_total%s %d\n", p.labelSet("test", name), a.ByTest[name].TotalRequests)
		}
		b.WriteString("\n")

		family(&b, "restbench_test_duration_avg_ms", "gauge", "Average request duration per collection item")
		for _, name := range names {
			fmt.Fprintf(&b, "restbench_test_duration_avg_ms%s %.2f\n", p.labelSet("test", name), a.ByTest[name].AvgDurationMs)
		}
	}

	if _, err := io.WriteString(p.writer, b.String()); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}

func (p *PrometheusExporter) Close() error {
	return nil
}

func family(b *strings.Builder, name, kind, help string) {
	fmt.Fprintf(b, "# HELP %s %s\n# TYPE %s %s\n", name, help, name, kind)
}

// labelSet renders the constant labels plus the given name/value pairs.
func (p *PrometheusExporter) labelSet(pairs ...string) string {
	var parts []string
	for _, k := range slices.Sorted(maps.Keys(p.labels)) {
		parts = append(parts, fmt.Sprintf(`%s="%s"`, k, sanitizeLabel(p.labels[k])))
	}
	for i := 0; i+1 < len(pairs); i += 2 {
		parts = append(parts, fmt.Sprintf(`%s="%s"`, pairs[i], sanitizeLabel(pairs[i+1])))
	}
	if len(parts) == 0 {
		return ""
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// sanitizeLabel escapes a Prometheus label value.
func sanitizeLabel(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}
