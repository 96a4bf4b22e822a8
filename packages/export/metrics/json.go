package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// JSONExporter writes the aggregate and every request as one document.
type JSONExporter struct {
	writer    io.Writer
	pretty    bool
	version   string
	startTime time.Time
}

type JSONOption func(*JSONExporter)

func WithJSONWriter(w io.Writer) JSONOption {
	return func(j *JSONExporter) {
		j.writer = w
	}
}

func WithJSONPretty(pretty bool) JSONOption {
	return func(j *JSONExporter) {
		j.pretty = pretty
	}
}

func WithJSONVersion(version string) JSONOption {
	return func(j *JSONExporter) {
		j.version = version
	}
}

func NewJSONExporter(opts ...JSONOption) *JSONExporter {
	j := &JSONExporter{
		writer:    io.Discard,
		startTime: time.Now(),
		pretty:    true,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

type JSONMetricsOutput struct {
	Metadata    JSONMetadata      `json:"metadata"`
	Summary     *AggregateMetrics `json:"summary"`
	TestResults []*TestMetrics    `json:"test_results"`
}

type JSONMetadata struct {
	GeneratedAt string `json:"generated_at"`
	StartTime   string `json:"start_time"`
	Duration    string `json:"duration"`
	Version     string `json:"version,omitempty"`
}

func (j *JSONExporter) Export(a *AggregateMetrics, results []*TestMetrics) error {
	endTime := time.Now()
	out := JSONMetricsOutput{
		Metadata: JSONMetadata{
			GeneratedAt: endTime.Format(time.RFC3339),
			StartTime:   j.startTime.Format(time.RFC3339),
			Duration:    endTime.Sub(j.startTime).String(),
			Version:     j.version,
		},
		Summary:     a,
		TestResults: results,
	}

	var data []byte
	var err error
	if j.pretty {
		data, err = json.MarshalIndent(out, "", "  ")
	} else {
		data, err = json.Marshal(out)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	if _, err := j.writer.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}

func (j *JSONExporter) Close() error {
	return nil
}
