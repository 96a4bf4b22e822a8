package output

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/restbench/packages/core/runner"
	"github.com/abdul-hamid-achik/restbench/packages/expect"
)

// JSONOutput represents the complete JSON output structure
type JSONOutput struct {
	Summary  JSONSummary   `json:"summary"`
	Requests []JSONRequest `json:"requests"`
	Duration float64       `json:"duration"`
	Time     string        `json:"time"`
}

// JSONSummary represents the run summary
type JSONSummary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// JSONRequest represents a single request result
type JSONRequest struct {
	Name       string         `json:"name"`
	Path       string         `json:"path,omitempty"`
	Collection string         `json:"collection"`
	Passed     bool           `json:"passed"`
	Skipped    bool           `json:"skipped,omitempty"`
	SkipReason string         `json:"skipReason,omitempty"`
	Attempts   int            `json:"attempts,omitempty"`
	Duration   float64        `json:"duration"`
	Error      string         `json:"error,omitempty"`
	Method     string         `json:"method,omitempty"`
	URL        string         `json:"url,omitempty"`
	Response   *JSONResponse  `json:"response,omitempty"`
	Tests      []JSONTest     `json:"tests,omitempty"`
	Captures   map[string]any `json:"captures,omitempty"`
}

// JSONResponse represents response details
type JSONResponse struct {
	StatusCode  int                 `json:"statusCode"`
	Status      string              `json:"status"`
	ContentType string              `json:"contentType,omitempty"`
	Category    string              `json:"category"`
	Headers     map[string][]string `json:"headers,omitempty"`
	BodySize    int64               `json:"bodySize"`
	File        string              `json:"file,omitempty"`
	Notice      string              `json:"notice,omitempty"`
	Duration    float64             `json:"duration"`
}

// JSONTest represents one check result
type JSONTest struct {
	Name     string  `json:"name"`
	Passed   bool    `json:"passed"`
	Message  string  `json:"message,omitempty"`
	Kind     string  `json:"kind,omitempty"`
	Expected any     `json:"expected,omitempty"`
	Actual   any     `json:"actual,omitempty"`
	Duration float64 `json:"duration"`
}

// JSONFormatter formats run results as JSON
type JSONFormatter struct {
	writer  io.Writer
	results []JSONRequest
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer:  os.Stdout,
		results: make([]JSONRequest, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

func (f *JSONFormatter) FormatResult(result *runner.RunResult) {
	for _, r := range result.Results {
		req := JSONRequest{
			Name:       r.Name,
			Path:       r.Path,
			Collection: result.Collection,
			Passed:     r.Passed,
			Skipped:    r.Skipped,
			Attempts:   r.Attempts,
			Duration:   float64(r.Duration.Milliseconds()),
			Captures:   r.Captures,
		}

		if r.SkipReason != "" && r.SkipReason != "filtered out" {
			req.SkipReason = r.SkipReason
		}

		if r.Error != nil {
			req.Error = r.Error.Error()
		}

		if r.Request != nil {
			req.Method = r.Request.Method
			req.URL = r.Request.URL
		}

		if resp := r.Response; resp != nil {
			req.Response = &JSONResponse{
				StatusCode:  resp.StatusCode,
				Status:      resp.Status,
				ContentType: resp.ContentType,
				Category:    resp.Category.String(),
				Headers:     resp.Headers,
				BodySize:    resp.BodySize,
				File:        resp.FilePath,
				Notice:      resp.Notice,
				Duration:    float64(resp.Duration.Milliseconds()),
			}
		}

		for _, t := range r.Tests {
			jt := JSONTest{
				Name:     t.Name,
				Passed:   t.Passed,
				Message:  t.Message,
				Duration: float64(t.Duration.Microseconds()) / 1000,
			}
			if t.Failure != nil {
				jt.Kind = t.Failure.Kind.String()
				jt.Expected = jsonValue(t.Failure.Expected)
				jt.Actual = jsonValue(t.Failure.Actual)
			}
			req.Tests = append(req.Tests, jt)
		}

		f.results = append(f.results, req)
	}
}

func (f *JSONFormatter) FormatError(err error) {
	// Errors are included in individual request results
}

func (f *JSONFormatter) FormatHeader(version string) {
	// No header needed for JSON output
}

// Flush writes the accumulated JSON output
func (f *JSONFormatter) Flush(totalDuration time.Duration) error {
	var passed, failed, skipped int
	for _, r := range f.results {
		if r.Skipped {
			skipped++
		} else if r.Passed {
			passed++
		} else {
			failed++
		}
	}

	output := JSONOutput{
		Summary: JSONSummary{
			Total:   len(f.results),
			Passed:  passed,
			Failed:  failed,
			Skipped: skipped,
		},
		Requests: f.results,
		Duration: float64(totalDuration.Milliseconds()),
		Time:     time.Now().Format(time.RFC3339),
	}

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

// jsonValue unwraps check values into plain Go values. Values JSON cannot
// carry, such as NaN, fall back to their text form.
func jsonValue(v any) any {
	val, ok := v.(expect.Value)
	if !ok {
		if _, err := json.Marshal(v); err != nil {
			return formatValue(v, 200)
		}
		return v
	}
	plain := val.Interface()
	if _, err := json.Marshal(plain); err != nil {
		return val.Repr()
	}
	return plain
}
