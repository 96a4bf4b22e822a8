package output

import (
	"fmt"
	"io"
	"time"

	"github.com/abdul-hamid-achik/restbench/packages/core/runner"
	"github.com/abdul-hamid-achik/restbench/packages/expect"
)

// Formatter interface for all output formatters
type Formatter interface {
	FormatResult(result *runner.RunResult)
	FormatError(err error)
	FormatHeader(version string)
}

// Flushable interface for formatters that need to flush output
type Flushable interface {
	Flush(totalDuration time.Duration) error
}

// Names lists the accepted formatter names.
var Names = []string{"console", "json", "junit", "tap"}

// New returns the formatter registered under name.
func New(name string, w io.Writer, verbose, noColor bool) (Formatter, error) {
	switch name {
	case "", "console":
		return NewConsoleFormatter(WithWriter(w), WithVerbose(verbose), WithNoColor(noColor)), nil
	case "json":
		return NewJSONFormatter(JSONWithWriter(w)), nil
	case "junit":
		return NewJUnitFormatter(JUnitWithWriter(w)), nil
	case "tap":
		return NewTAPFormatter(TAPWithWriter(w)), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want one of %v)", name, Names)
	}
}

// formatValue formats a value for display, truncating or summarizing large values
func formatValue(v any, maxLen int) string {
	var str string
	switch val := v.(type) {
	case nil:
		return "null"
	case expect.Value:
		n, _ := val.Len()
		switch val.Type() {
		case expect.TypeList:
			return fmt.Sprintf("[array with %d items]", n)
		case expect.TypeMap:
			return fmt.Sprintf("{object with %d keys}", n)
		}
		str = val.Repr()
	case []any:
		return fmt.Sprintf("[array with %d items]", len(val))
	case map[string]any:
		return fmt.Sprintf("{object with %d keys}", len(val))
	default:
		str = fmt.Sprintf("%v", v)
	}
	if len(str) > maxLen {
		return str[:maxLen] + "..."
	}
	return str
}

// failedTests returns the failing checks of r.
func failedTests(r *runner.RequestResult) []expect.TestResult {
	var out []expect.TestResult
	for _, t := range r.Tests {
		if !t.Passed {
			out = append(out, t)
		}
	}
	return out
}
