package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/restbench/packages/core/runner"
	"gopkg.in/yaml.v3"
)

// TAPFormatter formats run results in TAP (Test Anything Protocol) format
type TAPFormatter struct {
	writer    io.Writer
	testCount int
	results   []tapResult
}

type tapResult struct {
	number     int
	name       string
	passed     bool
	skipped    bool
	skipReason string
	diag       *tapDiagnostic
}

// tapDiagnostic is the YAML block written under a failing test point.
type tapDiagnostic struct {
	Message  string   `yaml:"message,omitempty"`
	Severity string   `yaml:"severity"`
	Status   int      `yaml:"status,omitempty"`
	Failures []string `yaml:"failures,omitempty"`
}

type TAPOption func(*TAPFormatter)

func NewTAPFormatter(opts ...TAPOption) *TAPFormatter {
	f := &TAPFormatter{
		writer:  os.Stdout,
		results: make([]tapResult, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func TAPWithWriter(w io.Writer) TAPOption {
	return func(f *TAPFormatter) {
		f.writer = w
	}
}

func (f *TAPFormatter) FormatResult(result *runner.RunResult) {
	for _, r := range result.Results {
		f.testCount++
		name := r.Path
		if name == "" {
			name = r.Name
		}
		tr := tapResult{
			number:     f.testCount,
			name:       name,
			passed:     r.Passed,
			skipped:    r.Skipped,
			skipReason: r.SkipReason,
		}

		switch {
		case r.Skipped:
		case r.Error != nil:
			tr.diag = &tapDiagnostic{Message: r.Error.Error(), Severity: "error"}
		case !r.Passed:
			tr.diag = &tapDiagnostic{Severity: "fail"}
			if r.Response != nil {
				tr.diag.Status = r.Response.StatusCode
			}
			for _, t := range failedTests(r) {
				tr.diag.Failures = append(tr.diag.Failures, t.Name+": "+t.Message)
			}
		}

		f.results = append(f.results, tr)
	}
}

func (f *TAPFormatter) FormatError(err error) {
	// Errors are included in individual test results
}

func (f *TAPFormatter) FormatHeader(version string) {
	// Header is written in Flush
}

// Flush writes the accumulated TAP output
func (f *TAPFormatter) Flush(totalDuration time.Duration) error {
	fmt.Fprintf(f.writer, "TAP version 13\n")
	fmt.Fprintf(f.writer, "1..%d\n", f.testCount)

	for _, r := range f.results {
		if r.skipped {
			reason := r.skipReason
			if reason == "" || reason == "filtered out" {
				reason = "SKIP"
			}
			fmt.Fprintf(f.writer, "ok %d - %s # SKIP %s\n", r.number, r.name, reason)
			continue
		}

		if r.passed {
			fmt.Fprintf(f.writer, "ok %d - %s\n", r.number, r.name)
			continue
		}

		fmt.Fprintf(f.writer, "not ok %d - %s\n", r.number, r.name)
		if r.diag != nil {
			if err := f.writeDiagnostic(r.diag); err != nil {
				return err
			}
		}
	}

	fmt.Fprintf(f.writer, "# time %dms\n", totalDuration.Milliseconds())
	return nil
}

func (f *TAPFormatter) writeDiagnostic(d *tapDiagnostic) error {
	data, err := yaml.Marshal(d)
	if err != nil {
		return fmt.Errorf("encoding TAP diagnostic: %w", err)
	}
	fmt.Fprintf(f.writer, "  ---\n")
	for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		fmt.Fprintf(f.writer, "  %s\n", line)
	}
	fmt.Fprintf(f.writer, "  ...\n")
	return nil
}
