package stress

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/restbench/packages/collection"
	"github.com/abdul-hamid-achik/restbench/packages/core/runner"
	"go.uber.org/zap"
)

const progressInterval = 500 * time.Millisecond

// Runner drives a pipeline runner under load.
type Runner struct {
	config    *Config
	exec      *runner.Runner
	scheduler *Scheduler
	metrics   *Metrics
	reporter  *Reporter
	logger    *zap.Logger

	nameFilter string
	source     string
	tree       *collection.Tree
}

type RunnerOption func(*Runner)

func WithReporter(reporter *Reporter) RunnerOption {
	return func(r *Runner) {
		r.reporter = reporter
	}
}

func WithLogger(l *zap.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithNameFilter limits targets to items whose name matches pattern
// (exact, or *substring*).
func WithNameFilter(pattern string) RunnerOption {
	return func(r *Runner) {
		r.nameFilter = pattern
	}
}

// NewRunner wraps exec, which resolves, sends, ingests and checks each
// picked item.
func NewRunner(config *Config, exec *runner.Runner, opts ...RunnerOption) *Runner {
	if config == nil {
		config = DefaultConfig()
	}
	if exec == nil {
		exec = runner.NewRunner(nil)
	}
	r := &Runner{
		config:    config,
		exec:      exec,
		scheduler: NewScheduler(config),
		metrics:   NewMetrics(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.reporter == nil {
		r.reporter = NewReporter()
	}
	return r
}

func (r *Runner) LoadFile(path string) error {
	tree, err := collection.LoadFile(path)
	if err != nil {
		return fmt.Errorf("loading collection: %w", err)
	}
	r.source = path
	return r.Load(tree)
}

// Load registers every item of tree as a target. Items with a negative
// weight are left out.
func (r *Runner) Load(tree *collection.Tree) error {
	r.tree = tree
	if r.source == "" {
		r.source = tree.Name
	}
	for _, id := range tree.Items() {
		it, _ := tree.Item(id)
		if it.Weight < 0 || !matchesName(it.Name, r.nameFilter) {
			continue
		}
		r.scheduler.Add(Target{ID: id, Name: it.Name, Path: tree.Path(id), Weight: it.Weight})
	}
	if r.scheduler.Len() == 0 {
		return fmt.Errorf("no requests to run in %s", r.source)
	}
	return nil
}

type Result struct {
	Summary    *Summary
	Thresholds []ThresholdResult
	Passed     bool
}

// Run generates load until the configured duration elapses or ctx is
// done. Requests in flight when the duration ends are allowed to finish;
// cancelling ctx aborts them.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if err := r.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if r.tree == nil {
		return nil, fmt.Errorf("no collection loaded")
	}

	stop := context.AfterFunc(ctx, r.exec.Cancel)
	defer stop()

	r.reporter.Header(r.source, r.config)
	r.logger.Info("stress run starting",
		zap.String("collection", r.tree.Name),
		zap.Stringer("mode", r.config.Mode),
		zap.Duration("duration", r.config.Duration),
		zap.Int("targets", r.scheduler.Len()))

	queue := runner.NewResultQueue()
	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		queue.Consume(r.config.BatchSize, r.consume)
	}()

	r.metrics.Start()
	loadCtx, cancel := context.WithTimeout(ctx, r.config.Duration)
	defer cancel()

	progressDone := make(chan struct{})
	var progress sync.WaitGroup
	progress.Go(func() { r.progressLoop(progressDone) })

	if r.config.Mode == WorkerMode {
		r.runWorkers(loadCtx, ctx, queue)
	} else {
		r.runRate(loadCtx, ctx, queue)
	}

	queue.Close()
	<-consumed
	r.metrics.Stop()
	close(progressDone)
	progress.Wait()
	r.reporter.ClearProgress()

	summary := r.metrics.Summary()
	thresholds := summary.Evaluate(r.config.Thresholds)
	r.reporter.Summary(summary, thresholds)

	passed := true
	for _, tr := range thresholds {
		if !tr.Passed {
			passed = false
			break
		}
	}
	r.logger.Info("stress run finished",
		zap.Int64("requests", summary.TotalRequests),
		zap.Float64("rps", summary.RPS),
		zap.Bool("passed", passed))

	return &Result{Summary: summary, Thresholds: thresholds, Passed: passed}, nil
}

// runRate starts one request per limiter token until loadCtx is done.
// Requests run on reqCtx so they can outlive the load window.
func (r *Runner) runRate(loadCtx, reqCtx context.Context, queue *runner.ResultQueue) {
	var wg sync.WaitGroup
	defer wg.Wait()

	start := time.Now()
	for loadCtx.Err() == nil {
		if r.config.RampUp > 0 {
			r.scheduler.SetRate(r.scheduler.RateAt(time.Since(start)))
		}
		if err := r.scheduler.Wait(loadCtx); err != nil {
			return
		}
		if err := r.scheduler.Acquire(loadCtx); err != nil {
			return
		}
		target, ok := r.scheduler.Pick()
		if !ok {
			r.scheduler.Release()
			return
		}
		wg.Go(func() {
			defer r.scheduler.Release()
			r.execute(reqCtx, target, queue)
		})
	}
}

// runWorkers runs the configured workers back to back. With a ramp-up each
// worker starts after its StartDelay.
func (r *Runner) runWorkers(loadCtx, reqCtx context.Context, queue *runner.ResultQueue) {
	var wg sync.WaitGroup
	for i := range r.config.Workers {
		delay := r.scheduler.StartDelay(i)
		wg.Go(func() { r.worker(loadCtx, reqCtx, delay, queue) })
	}
	wg.Wait()
}

func (r *Runner) worker(loadCtx, reqCtx context.Context, delay time.Duration, queue *runner.ResultQueue) {
	if !sleep(loadCtx, delay) {
		return
	}
	for loadCtx.Err() == nil {
		target, ok := r.scheduler.Pick()
		if !ok {
			return
		}
		if err := r.scheduler.Acquire(loadCtx); err != nil {
			return
		}
		r.execute(reqCtx, target, queue)
		r.scheduler.Release()

		if !sleep(loadCtx, r.config.ThinkTime) {
			return
		}
	}
}

func (r *Runner) execute(ctx context.Context, target Target, queue *runner.ResultQueue) {
	r.metrics.begin()
	defer r.metrics.end()
	queue.Push(r.exec.Execute(ctx, r.tree, target.ID))
}

// consume is the single queue consumer.
func (r *Runner) consume(batch []*runner.RequestResult) {
	for _, res := range batch {
		if r.metrics.Record(res) == OutcomeError {
			r.logger.Debug("stress request failed", zap.String("request", res.Name), zap.Error(res.Error))
		}
	}
	r.reporter.Batch(batch)
}

func (r *Runner) progressLoop(done <-chan struct{}) {
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			r.reporter.Progress(r.metrics.CurrentStats(), r.config.Duration)
		}
	}
}

// sleep waits d or until ctx is done, reporting whether the full wait
// elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func matchesName(name, pattern string) bool {
	if pattern == "" {
		return true
	}
	if len(pattern) > 1 && pattern[0] == '*' && pattern[len(pattern)-1] == '*' {
		return strings.Contains(name, pattern[1:len(pattern)-1])
	}
	return name == pattern
}
