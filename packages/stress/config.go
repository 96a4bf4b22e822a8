// Package stress replays collection items under load. Items are picked by
// weight and executed through the same pipeline as a normal run; results
// flow through a runner.ResultQueue into latency and outcome metrics that
// are checked against thresholds at the end.
package stress

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Mode selects how load is generated.
type Mode int

const (
	// RateMode starts requests at a fixed rate per second.
	RateMode Mode = iota
	// WorkerMode runs a fixed number of workers back to back, pausing
	// ThinkTime between requests.
	WorkerMode
)

func (m Mode) String() string {
	if m == WorkerMode {
		return "workers"
	}
	return "rate"
}

// ParseMode accepts "rate" and "workers" (or "vu").
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "", "rate":
		return RateMode, nil
	case "workers", "worker", "vu", "vus":
		return WorkerMode, nil
	default:
		return RateMode, fmt.Errorf("unknown stress mode %q", s)
	}
}

type Config struct {
	Mode     Mode
	Duration time.Duration
	// Rate is requests per second in RateMode.
	Rate float64
	// Workers is the worker count in WorkerMode.
	Workers int
	// MaxInFlight caps concurrent requests in both modes.
	MaxInFlight int
	ThinkTime   time.Duration
	// RampUp grows the rate or the worker count linearly from zero.
	RampUp time.Duration
	// BatchSize bounds how many results the consumer takes per drain.
	BatchSize  int
	Thresholds Thresholds
}

func DefaultConfig() *Config {
	return &Config{
		Mode:        RateMode,
		Duration:    30 * time.Second,
		Rate:        10,
		Workers:     10,
		MaxInFlight: 100,
		BatchSize:   256,
	}
}

func (c *Config) Validate() error {
	if c.Duration <= 0 {
		return fmt.Errorf("duration must be positive")
	}
	if c.Mode == RateMode && c.Rate <= 0 {
		return fmt.Errorf("rate must be positive in rate mode")
	}
	if c.Mode == WorkerMode && c.Workers <= 0 {
		return fmt.Errorf("workers must be positive in worker mode")
	}
	if c.MaxInFlight < 1 {
		return fmt.Errorf("maxInFlight must be at least 1")
	}
	if c.RampUp < 0 {
		return fmt.Errorf("rampUp cannot be negative")
	}
	if c.RampUp > c.Duration {
		return fmt.Errorf("rampUp cannot exceed duration")
	}
	return nil
}

// Metric names a value a threshold can bound.
type Metric string

const (
	MetricP50    Metric = "p50"
	MetricP95    Metric = "p95"
	MetricP99    Metric = "p99"
	MetricMax    Metric = "max"
	MetricErrors Metric = "errors"
	// MetricChecks bounds the share of responses that failed a check.
	MetricChecks Metric = "checks"
	MetricRPS    Metric = "rps"
)

var metricAliases = map[string]Metric{
	"p50":        MetricP50,
	"p95":        MetricP95,
	"p99":        MetricP99,
	"max":        MetricMax,
	"maxlatency": MetricMax,
	"errors":     MetricErrors,
	"error":      MetricErrors,
	"errorrate":  MetricErrors,
	"checks":     MetricChecks,
	"failures":   MetricChecks,
	"rps":        MetricRPS,
	"rate":       MetricRPS,
}

func (m Metric) isLatency() bool {
	return m == MetricP50 || m == MetricP95 || m == MetricP99 || m == MetricMax
}

func (m Metric) isLowerBound() bool {
	return m == MetricRPS
}

// Threshold is one pass/fail criterion. Latency metrics use Latency; rates
// and ratios use Value, with ratios stored as fractions.
type Threshold struct {
	Metric  Metric
	Latency time.Duration
	Value   float64
}

func (t Threshold) String() string {
	op := "<"
	if t.Metric.isLowerBound() {
		op = ">"
	}
	switch {
	case t.Metric.isLatency():
		return string(t.Metric) + op + t.Latency.String()
	case t.Metric == MetricRPS:
		return string(t.Metric) + op + formatFloat(t.Value)
	default:
		return string(t.Metric) + op + formatPercent(t.Value)
	}
}

type Thresholds []Threshold

func (t Thresholds) HasThresholds() bool {
	return len(t) > 0
}

var thresholdPattern = regexp.MustCompile(`^(\w+)\s*([<>]=?)\s*(.+)$`)

// ParseThresholds parses a comma separated list such as
// "p95<200ms,errors<0.1%,checks<1%,rps>50".
func ParseThresholds(s string) (Thresholds, error) {
	var out Thresholds
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		t, err := parseThreshold(part)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func parseThreshold(part string) (Threshold, error) {
	m := thresholdPattern.FindStringSubmatch(part)
	if m == nil {
		return Threshold{}, fmt.Errorf("invalid threshold format: %s", part)
	}
	metric, ok := metricAliases[strings.ToLower(m[1])]
	if !ok {
		return Threshold{}, fmt.Errorf("unknown threshold metric: %s", m[1])
	}
	op, raw := m[2], strings.TrimSpace(m[3])

	upper := op == "<" || op == "<="
	if metric.isLowerBound() == upper {
		want := "< or <="
		if metric.isLowerBound() {
			want = "> or >="
		}
		return Threshold{}, fmt.Errorf("%s threshold must use %s", metric, want)
	}

	t := Threshold{Metric: metric}
	switch {
	case metric.isLatency():
		d, err := time.ParseDuration(raw)
		if err != nil {
			return Threshold{}, fmt.Errorf("invalid duration for %s: %s", metric, raw)
		}
		t.Latency = d
	case metric == MetricRPS:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Threshold{}, fmt.Errorf("invalid RPS: %s", raw)
		}
		t.Value = f
	default:
		pct := strings.HasSuffix(raw, "%")
		f, err := strconv.ParseFloat(strings.TrimSuffix(raw, "%"), 64)
		if err != nil {
			return Threshold{}, fmt.Errorf("invalid %s rate: %s", metric, raw)
		}
		if pct {
			f /= 100
		}
		t.Value = f
	}
	return t, nil
}

type ThresholdResult struct {
	Name     string
	Passed   bool
	Expected string
	Actual   string
}

func formatPercent(f float64) string {
	return formatFloat(f*100) + "%"
}

func formatFloat(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', 2, 64)
}
