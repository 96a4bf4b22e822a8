package stress

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/abdul-hamid-achik/restbench/packages/core/runner"
)

// Latencies are recorded in microseconds between 1µs and 60s.
const (
	minLatencyUs = 1
	maxLatencyUs = 60_000_000
)

// Outcome classifies one executed request.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	// OutcomeError covers transport failures and incomplete bodies.
	OutcomeError
	// OutcomeCheckFailed means a response arrived but a check failed.
	OutcomeCheckFailed
	// OutcomeCancelled results are counted apart and never reach the
	// latency histograms.
	OutcomeCancelled
)

// Classify maps a pipeline result to an Outcome.
func Classify(res *runner.RequestResult) Outcome {
	switch {
	case res.Skipped:
		return OutcomeCancelled
	case res.Error != nil && errors.Is(res.Error, context.Canceled):
		return OutcomeCancelled
	case res.Error != nil:
		return OutcomeError
	case !res.Passed:
		return OutcomeCheckFailed
	default:
		return OutcomeSuccess
	}
}

// Metrics aggregates results. Counters are atomic so progress reads never
// wait on the consumer; histograms sit behind mu.
type Metrics struct {
	mu sync.RWMutex

	total     atomic.Int64
	success   atomic.Int64
	errs      atomic.Int64
	failed    atomic.Int64
	cancelled atomic.Int64
	bytes     atomic.Int64
	inFlight  atomic.Int32

	histogram *hdrhistogram.Histogram
	statuses  map[int]int64
	items     map[string]*itemMetrics

	startTime time.Time
	endTime   time.Time
}

type itemMetrics struct {
	name      string
	total     int64
	success   int64
	errs      int64
	failed    int64
	histogram *hdrhistogram.Histogram
}

func NewMetrics() *Metrics {
	return &Metrics{
		histogram: newHistogram(),
		statuses:  make(map[int]int64),
		items:     make(map[string]*itemMetrics),
	}
}

func newHistogram() *hdrhistogram.Histogram {
	return hdrhistogram.New(minLatencyUs, maxLatencyUs, 3)
}

func (m *Metrics) Start() {
	m.mu.Lock()
	m.startTime = time.Now()
	m.mu.Unlock()
}

func (m *Metrics) Stop() {
	m.mu.Lock()
	m.endTime = time.Now()
	m.mu.Unlock()
}

func (m *Metrics) begin() { m.inFlight.Add(1) }
func (m *Metrics) end()   { m.inFlight.Add(-1) }

// Record adds one result. Cancelled results only bump their own counter.
func (m *Metrics) Record(res *runner.RequestResult) Outcome {
	outcome := Classify(res)
	if outcome == OutcomeCancelled {
		m.cancelled.Add(1)
		return outcome
	}

	m.total.Add(1)
	switch outcome {
	case OutcomeSuccess:
		m.success.Add(1)
	case OutcomeError:
		m.errs.Add(1)
	case OutcomeCheckFailed:
		m.failed.Add(1)
	}

	latency := res.Duration
	if res.Response != nil {
		m.bytes.Add(res.Response.BodySize)
		if res.Response.Duration > 0 {
			latency = res.Response.Duration
		}
	}
	us := clampLatency(latency)

	key := res.Path
	if key == "" {
		key = res.Name
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	_ = m.histogram.RecordValue(us)
	if res.Response != nil {
		m.statuses[res.Response.StatusCode]++
	}
	im, ok := m.items[key]
	if !ok {
		im = &itemMetrics{name: res.Name, histogram: newHistogram()}
		m.items[key] = im
	}
	im.total++
	switch outcome {
	case OutcomeSuccess:
		im.success++
	case OutcomeError:
		im.errs++
	case OutcomeCheckFailed:
		im.failed++
	}
	_ = im.histogram.RecordValue(us)
	return outcome
}

func clampLatency(d time.Duration) int64 {
	return min(max(d.Microseconds(), minLatencyUs), maxLatencyUs)
}

func quantile(h *hdrhistogram.Histogram, q float64) time.Duration {
	return time.Duration(h.ValueAtQuantile(q)) * time.Microsecond
}

type Summary struct {
	Duration      time.Duration
	TotalRequests int64
	SuccessCount  int64
	ErrorCount    int64
	CheckFailures int64
	Cancelled     int64
	BytesReceived int64

	RPS           float64
	SuccessRate   float64
	ErrorRate     float64
	CheckFailRate float64

	P50    time.Duration
	P95    time.Duration
	P99    time.Duration
	Min    time.Duration
	Max    time.Duration
	Mean   time.Duration
	StdDev time.Duration

	StatusCodes map[int]int64
	// Items is keyed by item path.
	Items map[string]*ItemSummary
}

type ItemSummary struct {
	Name          string
	Path          string
	Total         int64
	Success       int64
	Errors        int64
	CheckFailures int64
	P50           time.Duration
	P95           time.Duration
	P99           time.Duration
	Mean          time.Duration
}

// ItemPaths returns the keys of Items in sorted order.
func (s *Summary) ItemPaths() []string {
	paths := make([]string, 0, len(s.Items))
	for p := range s.Items {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func (m *Metrics) Summary() *Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	end := m.endTime
	if end.IsZero() {
		end = time.Now()
	}
	duration := end.Sub(m.startTime)

	s := &Summary{
		Duration:      duration,
		TotalRequests: m.total.Load(),
		SuccessCount:  m.success.Load(),
		ErrorCount:    m.errs.Load(),
		CheckFailures: m.failed.Load(),
		Cancelled:     m.cancelled.Load(),
		BytesReceived: m.bytes.Load(),
		StatusCodes:   make(map[int]int64, len(m.statuses)),
		Items:         make(map[string]*ItemSummary, len(m.items)),
	}
	if duration > 0 {
		s.RPS = float64(s.TotalRequests) / duration.Seconds()
	}
	if s.TotalRequests > 0 {
		n := float64(s.TotalRequests)
		s.SuccessRate = float64(s.SuccessCount) / n
		s.ErrorRate = float64(s.ErrorCount) / n
		s.CheckFailRate = float64(s.CheckFailures) / n

		s.P50 = quantile(m.histogram, 50)
		s.P95 = quantile(m.histogram, 95)
		s.P99 = quantile(m.histogram, 99)
		s.Min = time.Duration(m.histogram.Min()) * time.Microsecond
		s.Max = time.Duration(m.histogram.Max()) * time.Microsecond
		s.Mean = time.Duration(m.histogram.Mean()) * time.Microsecond
		s.StdDev = time.Duration(m.histogram.StdDev()) * time.Microsecond
	}
	for code, n := range m.statuses {
		s.StatusCodes[code] = n
	}
	for path, im := range m.items {
		s.Items[path] = &ItemSummary{
			Name:          im.name,
			Path:          path,
			Total:         im.total,
			Success:       im.success,
			Errors:        im.errs,
			CheckFailures: im.failed,
			P50:           quantile(im.histogram, 50),
			P95:           quantile(im.histogram, 95),
			P99:           quantile(im.histogram, 99),
			Mean:          time.Duration(im.histogram.Mean()) * time.Microsecond,
		}
	}
	return s
}

// CurrentStats is a cheap view for the progress display.
type CurrentStats struct {
	Elapsed   time.Duration
	Total     int64
	Success   int64
	Errors    int64
	Failures  int64
	RPS       float64
	P50       time.Duration
	P95       time.Duration
	P99       time.Duration
	Max       time.Duration
	InFlight  int32
	ErrorRate float64
}

func (m *Metrics) CurrentStats() CurrentStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st := CurrentStats{
		Elapsed:  time.Since(m.startTime),
		Total:    m.total.Load(),
		Success:  m.success.Load(),
		Errors:   m.errs.Load(),
		Failures: m.failed.Load(),
		P50:      quantile(m.histogram, 50),
		P95:      quantile(m.histogram, 95),
		P99:      quantile(m.histogram, 99),
		Max:      time.Duration(m.histogram.Max()) * time.Microsecond,
		InFlight: m.inFlight.Load(),
	}
	if st.Elapsed > 0 {
		st.RPS = float64(st.Total) / st.Elapsed.Seconds()
	}
	if st.Total > 0 {
		st.ErrorRate = float64(st.Errors) / float64(st.Total)
	}
	return st
}

// Evaluate checks every threshold against the summary.
func (s *Summary) Evaluate(thresholds Thresholds) []ThresholdResult {
	results := make([]ThresholdResult, 0, len(thresholds))
	for _, t := range thresholds {
		res := ThresholdResult{Name: string(t.Metric)}
		switch t.Metric {
		case MetricP50, MetricP95, MetricP99, MetricMax:
			actual := map[Metric]time.Duration{
				MetricP50: s.P50,
				MetricP95: s.P95,
				MetricP99: s.P99,
				MetricMax: s.Max,
			}[t.Metric]
			res.Passed = actual <= t.Latency
			res.Expected = "< " + t.Latency.String()
			res.Actual = actual.String()
		case MetricErrors:
			res.Name = "error rate"
			res.Passed = s.ErrorRate <= t.Value
			res.Expected = "< " + formatPercent(t.Value)
			res.Actual = formatPercent(s.ErrorRate)
		case MetricChecks:
			res.Name = "check failures"
			res.Passed = s.CheckFailRate <= t.Value
			res.Expected = "< " + formatPercent(t.Value)
			res.Actual = formatPercent(s.CheckFailRate)
		case MetricRPS:
			res.Name = "min RPS"
			res.Passed = s.RPS >= t.Value
			res.Expected = "> " + formatFloat(t.Value)
			res.Actual = formatFloat(s.RPS)
		}
		results = append(results, res)
	}
	return results
}
