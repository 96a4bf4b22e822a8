package output

import (
	"fmt"
	"io"
	"maps"
	"os"
	"slices"

	"github.com/abdul-hamid-achik/restbench/packages/core/runner"
	"github.com/abdul-hamid-achik/restbench/packages/ingest"
	"github.com/fatih/color"
)

type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	noColor bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

func (f *ConsoleFormatter) FormatResult(result *runner.RunResult) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	fmt.Fprintf(f.writer, "\n%s\n", bold("Running: "+result.Collection))
	fmt.Fprintf(f.writer, "\n")

	for _, r := range result.Results {
		name := r.Name
		if f.verbose && r.Path != "" {
			name = r.Path
		}

		if r.Skipped {
			fmt.Fprintf(f.writer, "  %s %s", yellow("-"), name)
			if r.SkipReason != "" && r.SkipReason != "filtered out" {
				fmt.Fprintf(f.writer, " (%s)", r.SkipReason)
			}
			fmt.Fprintf(f.writer, "\n")
			continue
		}

		if r.Error != nil {
			fmt.Fprintf(f.writer, "  %s %s %s\n", red("x"), name, red(fmt.Sprintf("(%v)", r.Error)))
			continue
		}

		symbol := green("✓")
		if !r.Passed {
			symbol = red("✗")
		}

		status := ""
		if r.Response != nil {
			status = fmt.Sprintf(" %d", r.Response.StatusCode)
		}
		fmt.Fprintf(f.writer, "  %s %s%s %s\n", symbol, name, status, cyan(fmt.Sprintf("(%dms)", r.Duration.Milliseconds())))

		if resp := r.Response; resp != nil {
			if resp.Notice != "" {
				fmt.Fprintf(f.writer, "    %s\n", yellow(resp.Notice))
			}
			if resp.BodyKind == ingest.BodyFile && resp.FilePath != "" {
				fmt.Fprintf(f.writer, "    %s %s\n", dim("saved to"), resp.FilePath)
			}
			if f.verbose {
				fmt.Fprintf(f.writer, "    %s %s, %d bytes\n", dim(resp.Category.String()), resp.ContentType, resp.BodySize)
				if r.Attempts > 1 {
					fmt.Fprintf(f.writer, "    %s\n", dim(fmt.Sprintf("%d attempts", r.Attempts)))
				}
			}
		}

		for _, t := range failedTests(r) {
			fmt.Fprintf(f.writer, "    %s %s\n", red("→"), t.Name)
			if t.Failure != nil {
				fmt.Fprintf(f.writer, "      Expected: %s\n", formatValue(t.Failure.Expected, 100))
				fmt.Fprintf(f.writer, "      Actual:   %s\n", formatValue(t.Failure.Actual, 100))
			}
			if t.Message != "" {
				fmt.Fprintf(f.writer, "      %s\n", t.Message)
			}
		}

		if f.verbose {
			for _, t := range r.Tests {
				if t.Passed {
					fmt.Fprintf(f.writer, "    %s %s\n", green("·"), dim(t.Name))
				}
			}
			for _, name := range slices.Sorted(maps.Keys(r.Captures)) {
				fmt.Fprintf(f.writer, "    %s %s = %s\n", dim("captured"), name, formatValue(r.Captures[name], 60))
			}
		}
	}

	fmt.Fprintf(f.writer, "\n")
	fmt.Fprintf(f.writer, "Requests: ")
	if result.Passed > 0 {
		fmt.Fprintf(f.writer, "%s, ", green(fmt.Sprintf("%d passed", result.Passed)))
	}
	if result.Failed > 0 {
		fmt.Fprintf(f.writer, "%s, ", red(fmt.Sprintf("%d failed", result.Failed)))
	}
	if result.Skipped > 0 {
		fmt.Fprintf(f.writer, "%s, ", yellow(fmt.Sprintf("%d skipped", result.Skipped)))
	}
	total := result.Passed + result.Failed + result.Skipped
	fmt.Fprintf(f.writer, "%d total\n", total)
	fmt.Fprintf(f.writer, "Time:     %dms\n", result.Duration.Milliseconds())
	fmt.Fprintf(f.writer, "\n")
}

func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "%s %s\n", bold("restbench"), version)
}
