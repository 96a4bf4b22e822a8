package stress

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/restbench/packages/core/runner"
	"github.com/fatih/color"
)

// Reporter prints progress and the final summary of a stress run.
type Reporter struct {
	writer     io.Writer
	noColor    bool
	noProgress bool
	verbose    bool
	version    string

	green  *color.Color
	red    *color.Color
	yellow *color.Color
	cyan   *color.Color
	bold   *color.Color
	dim    *color.Color
	plain  *color.Color
}

type ReporterOption func(*Reporter)

func WithWriter(w io.Writer) ReporterOption {
	return func(r *Reporter) {
		r.writer = w
	}
}

func WithNoColor(noColor bool) ReporterOption {
	return func(r *Reporter) {
		r.noColor = noColor
	}
}

// WithNoProgress disables the live progress block.
func WithNoProgress(noProgress bool) ReporterOption {
	return func(r *Reporter) {
		r.noProgress = noProgress
	}
}

// WithVerbose prints failed requests as they are drained and the per-item
// breakdown in the summary.
func WithVerbose(verbose bool) ReporterOption {
	return func(r *Reporter) {
		r.verbose = verbose
	}
}

func WithVersion(version string) ReporterOption {
	return func(r *Reporter) {
		r.version = version
	}
}

func NewReporter(opts ...ReporterOption) *Reporter {
	r := &Reporter{writer: os.Stdout}
	for _, opt := range opts {
		opt(r)
	}

	r.green = color.New(color.FgGreen)
	r.red = color.New(color.FgRed)
	r.yellow = color.New(color.FgYellow)
	r.cyan = color.New(color.FgCyan)
	r.bold = color.New(color.Bold)
	r.dim = color.New(color.Faint)
	r.plain = color.New()
	if r.noColor {
		for _, c := range []*color.Color{r.green, r.red, r.yellow, r.cyan, r.bold, r.dim, r.plain} {
			c.DisableColor()
		}
	}
	return r
}

func (r *Reporter) Header(source string, config *Config) {
	fmt.Fprintln(r.writer)
	r.bold.Fprintf(r.writer, "restbench stress %s\n", r.version)
	fmt.Fprintln(r.writer)
	r.cyan.Fprintf(r.writer, "Stress testing: %s\n", source)

	var details []string
	if config.Mode == WorkerMode {
		details = append(details, fmt.Sprintf("Workers: %d", config.Workers))
		if config.ThinkTime > 0 {
			details = append(details, fmt.Sprintf("Think: %s", config.ThinkTime))
		}
	} else {
		details = append(details, fmt.Sprintf("Target: %s req/s", formatFloat(config.Rate)))
	}
	details = append(details, fmt.Sprintf("Duration: %s", config.Duration))
	details = append(details, fmt.Sprintf("Max in flight: %d", config.MaxInFlight))
	if config.RampUp > 0 {
		details = append(details, fmt.Sprintf("Ramp-up: %s", config.RampUp))
	}
	fmt.Fprintln(r.writer, strings.Join(details, " | "))
	fmt.Fprintln(r.writer)
}

// Batch receives each drained batch of results. Only failures are shown,
// and only in verbose mode.
func (r *Reporter) Batch(batch []*runner.RequestResult) {
	if !r.verbose {
		return
	}
	for _, res := range batch {
		switch Classify(res) {
		case OutcomeError:
			fmt.Fprint(r.writer, "\r\033[K")
			r.red.Fprintf(r.writer, "  ✗ %s: %v\n", res.Name, res.Error)
		case OutcomeCheckFailed:
			fmt.Fprint(r.writer, "\r\033[K")
			r.yellow.Fprintf(r.writer, "  ✗ %s: %s\n", res.Name, firstFailure(res))
		}
	}
}

func firstFailure(res *runner.RequestResult) string {
	for _, t := range res.Tests {
		if !t.Passed {
			return t.Message
		}
	}
	if res.Response != nil {
		return fmt.Sprintf("status %d", res.Response.StatusCode)
	}
	return "failed"
}

func (r *Reporter) Progress(stats CurrentStats, duration time.Duration) {
	if r.noProgress {
		return
	}
	fmt.Fprint(r.writer, "\r\033[K")

	progress := min(float64(stats.Elapsed)/float64(duration), 1)
	const barWidth = 30
	filled := int(progress * barWidth)
	bar := strings.Repeat("━", filled) + strings.Repeat("─", barWidth-filled)
	fmt.Fprintf(r.writer, "Progress %s %s / %s\n", bar, formatDuration(stats.Elapsed), formatDuration(duration))

	fmt.Fprint(r.writer, "Requests: ")
	r.bold.Fprint(r.writer, formatNumber(stats.Total))
	fmt.Fprint(r.writer, " total | ")
	r.green.Fprint(r.writer, formatNumber(stats.Success))
	fmt.Fprint(r.writer, " ok | ")
	r.countColor(stats.Failures, r.yellow).Fprint(r.writer, formatNumber(stats.Failures))
	fmt.Fprint(r.writer, " failed checks | ")
	r.countColor(stats.Errors, r.red).Fprint(r.writer, formatNumber(stats.Errors))
	fmt.Fprintf(r.writer, " errors (%.2f%%)\n", stats.ErrorRate*100)

	fmt.Fprint(r.writer, "Rate: ")
	r.cyan.Fprintf(r.writer, "%.1f", stats.RPS)
	fmt.Fprintf(r.writer, " req/s | In flight: %d\n", stats.InFlight)

	fmt.Fprintf(r.writer, "Latency: p50: %s | p95: %s | p99: %s | max: %s\n",
		formatLatency(stats.P50), formatLatency(stats.P95), formatLatency(stats.P99), formatLatency(stats.Max))

	fmt.Fprint(r.writer, "\033[4A")
}

func (r *Reporter) ClearProgress() {
	if r.noProgress {
		return
	}
	fmt.Fprint(r.writer, "\033[4B\r\033[K\033[A\r\033[K\033[A\r\033[K\033[A\r\033[K")
}

func (r *Reporter) countColor(n int64, c *color.Color) *color.Color {
	if n > 0 {
		return c
	}
	return r.plain
}

func (r *Reporter) Summary(summary *Summary, thresholds []ThresholdResult) {
	fmt.Fprintln(r.writer)
	r.bold.Fprintln(r.writer, "STRESS TEST SUMMARY")
	fmt.Fprintln(r.writer, strings.Repeat("─", 40))

	fmt.Fprintf(r.writer, "Duration:   %s\n", formatDuration(summary.Duration))
	fmt.Fprint(r.writer, "Total:      ")
	r.bold.Fprint(r.writer, formatNumber(summary.TotalRequests))
	fmt.Fprintf(r.writer, " requests (%.1f req/s)\n", summary.RPS)

	fmt.Fprint(r.writer, "Success:    ")
	r.green.Fprint(r.writer, formatNumber(summary.SuccessCount))
	fmt.Fprintf(r.writer, " (%.1f%%)\n", summary.SuccessRate*100)

	fmt.Fprint(r.writer, "Checks:     ")
	r.countColor(summary.CheckFailures, r.yellow).Fprint(r.writer, formatNumber(summary.CheckFailures))
	fmt.Fprintf(r.writer, " failed (%.1f%%)\n", summary.CheckFailRate*100)

	fmt.Fprint(r.writer, "Errors:     ")
	r.countColor(summary.ErrorCount, r.red).Fprint(r.writer, formatNumber(summary.ErrorCount))
	fmt.Fprintf(r.writer, " (%.1f%%)\n", summary.ErrorRate*100)

	if summary.Cancelled > 0 {
		fmt.Fprint(r.writer, "Cancelled:  ")
		r.dim.Fprintln(r.writer, formatNumber(summary.Cancelled))
	}
	fmt.Fprintf(r.writer, "Received:   %s\n", formatBytes(summary.BytesReceived))

	if len(summary.StatusCodes) > 0 {
		codes := make([]int, 0, len(summary.StatusCodes))
		for code := range summary.StatusCodes {
			codes = append(codes, code)
		}
		sort.Ints(codes)
		parts := make([]string, len(codes))
		for i, code := range codes {
			parts[i] = fmt.Sprintf("%d×%s", code, formatNumber(summary.StatusCodes[code]))
		}
		fmt.Fprintf(r.writer, "Statuses:   %s\n", strings.Join(parts, "  "))
	}

	fmt.Fprintln(r.writer)
	r.bold.Fprintln(r.writer, "LATENCY (ms)")
	fmt.Fprintf(r.writer, "  p50: %-6s | p95: %-6s | p99: %-6s | max: %s\n",
		formatLatencyMs(summary.P50), formatLatencyMs(summary.P95), formatLatencyMs(summary.P99), formatLatencyMs(summary.Max))
	fmt.Fprintf(r.writer, "  min: %-6s | mean: %-5s | stddev: %s\n",
		formatLatencyMs(summary.Min), formatLatencyMs(summary.Mean), formatLatencyMs(summary.StdDev))

	if r.verbose && len(summary.Items) > 0 {
		fmt.Fprintln(r.writer)
		r.bold.Fprintln(r.writer, "PER-REQUEST BREAKDOWN")
		for _, path := range summary.ItemPaths() {
			is := summary.Items[path]
			fmt.Fprintf(r.writer, "  %s:\n", path)
			fmt.Fprintf(r.writer, "    Total: %s | Success: %s | Failed checks: %s | Errors: %s\n",
				formatNumber(is.Total), formatNumber(is.Success), formatNumber(is.CheckFailures), formatNumber(is.Errors))
			fmt.Fprintf(r.writer, "    p50: %s | p95: %s | p99: %s\n",
				formatLatency(is.P50), formatLatency(is.P95), formatLatency(is.P99))
		}
	}

	if len(thresholds) > 0 {
		fmt.Fprintln(r.writer)
		r.bold.Fprintln(r.writer, "THRESHOLDS")
		allPassed := true
		for _, tr := range thresholds {
			if tr.Passed {
				r.green.Fprint(r.writer, "  ✓ ")
			} else {
				r.red.Fprint(r.writer, "  ✗ ")
				allPassed = false
			}
			fmt.Fprintf(r.writer, "%s %s    (actual: %s)\n", tr.Name, tr.Expected, tr.Actual)
		}
		fmt.Fprintln(r.writer)
		if allPassed {
			r.green.Fprintln(r.writer, "All thresholds passed!")
		} else {
			r.red.Fprintln(r.writer, "Some thresholds failed!")
		}
	}
	fmt.Fprintln(r.writer)
}

type jsonSummary struct {
	Duration   string                     `json:"duration"`
	Requests   jsonCounts                 `json:"requests"`
	Rates      jsonRates                  `json:"rates"`
	Latency    jsonLatency                `json:"latency"`
	Statuses   map[string]int64           `json:"statuses,omitempty"`
	Thresholds []jsonThreshold            `json:"thresholds,omitempty"`
	Items      map[string]jsonItemSummary `json:"items,omitempty"`
}

type jsonCounts struct {
	Total         int64 `json:"total"`
	Success       int64 `json:"success"`
	Errors        int64 `json:"errors"`
	CheckFailures int64 `json:"checkFailures"`
	Cancelled     int64 `json:"cancelled"`
	Bytes         int64 `json:"bytes"`
}

type jsonRates struct {
	RPS           float64 `json:"rps"`
	SuccessRate   float64 `json:"successRate"`
	ErrorRate     float64 `json:"errorRate"`
	CheckFailRate float64 `json:"checkFailRate"`
}

// jsonLatency values are milliseconds.
type jsonLatency struct {
	P50    float64 `json:"p50"`
	P95    float64 `json:"p95"`
	P99    float64 `json:"p99"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
}

type jsonThreshold struct {
	Name     string `json:"name"`
	Passed   bool   `json:"passed"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

type jsonItemSummary struct {
	Name          string  `json:"name"`
	Total         int64   `json:"total"`
	Success       int64   `json:"success"`
	Errors        int64   `json:"errors"`
	CheckFailures int64   `json:"checkFailures"`
	P50           float64 `json:"p50"`
	P95           float64 `json:"p95"`
	P99           float64 `json:"p99"`
	Mean          float64 `json:"mean"`
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

// JSONSummary writes the summary as indented JSON.
func (r *Reporter) JSONSummary(summary *Summary, thresholds []ThresholdResult) error {
	out := jsonSummary{
		Duration: summary.Duration.String(),
		Requests: jsonCounts{
			Total:         summary.TotalRequests,
			Success:       summary.SuccessCount,
			Errors:        summary.ErrorCount,
			CheckFailures: summary.CheckFailures,
			Cancelled:     summary.Cancelled,
			Bytes:         summary.BytesReceived,
		},
		Rates: jsonRates{
			RPS:           summary.RPS,
			SuccessRate:   summary.SuccessRate,
			ErrorRate:     summary.ErrorRate,
			CheckFailRate: summary.CheckFailRate,
		},
		Latency: jsonLatency{
			P50:    ms(summary.P50),
			P95:    ms(summary.P95),
			P99:    ms(summary.P99),
			Min:    ms(summary.Min),
			Max:    ms(summary.Max),
			Mean:   ms(summary.Mean),
			StdDev: ms(summary.StdDev),
		},
	}
	if len(summary.StatusCodes) > 0 {
		out.Statuses = make(map[string]int64, len(summary.StatusCodes))
		for code, n := range summary.StatusCodes {
			out.Statuses[strconv.Itoa(code)] = n
		}
	}
	for _, tr := range thresholds {
		out.Thresholds = append(out.Thresholds, jsonThreshold(tr))
	}
	if len(summary.Items) > 0 {
		out.Items = make(map[string]jsonItemSummary, len(summary.Items))
		for path, is := range summary.Items {
			out.Items[path] = jsonItemSummary{
				Name:          is.Name,
				Total:         is.Total,
				Success:       is.Success,
				Errors:        is.Errors,
				CheckFailures: is.CheckFailures,
				P50:           ms(is.P50),
				P95:           ms(is.P95),
				P99:           ms(is.P99),
				Mean:          ms(is.Mean),
			}
		}
	}

	enc := json.NewEncoder(r.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func (r *Reporter) Error(format string, args ...any) {
	r.red.Fprintf(r.writer, "Error: "+format+"\n", args...)
}

func (r *Reporter) Info(format string, args ...any) {
	fmt.Fprintf(r.writer, format+"\n", args...)
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	if seconds == 0 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dm %02ds", minutes, seconds)
}

func formatLatency(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dμs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatLatencyMs(d time.Duration) string {
	v := ms(d)
	switch {
	case v < 1:
		return fmt.Sprintf("%.2f", v)
	case v < 10:
		return fmt.Sprintf("%.1f", v)
	default:
		return fmt.Sprintf("%.0f", v)
	}
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}

// formatNumber groups digits with commas.
func formatNumber(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	if len(s) <= 3 {
		if neg {
			return "-" + s
		}
		return s
	}
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	head := len(s) % 3
	if head == 0 {
		head = 3
	}
	b.WriteString(s[:head])
	for i := head; i < len(s); i += 3 {
		b.WriteByte(',')
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
