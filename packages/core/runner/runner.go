package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/abdul-hamid-achik/restbench/packages/assertions"
	"github.com/abdul-hamid-achik/restbench/packages/capture"
	"github.com/abdul-hamid-achik/restbench/packages/collection"
	"github.com/abdul-hamid-achik/restbench/packages/core/env"
	"github.com/abdul-hamid-achik/restbench/packages/core/inherit"
	"github.com/abdul-hamid-achik/restbench/packages/expect"
	"github.com/abdul-hamid-achik/restbench/packages/http"
	"github.com/abdul-hamid-achik/restbench/packages/ingest"
	"github.com/abdul-hamid-achik/restbench/packages/sse"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultConcurrency is the default number of concurrent requests in parallel mode
	DefaultConcurrency = 5
	// DefaultRetryDelay is the default delay between retries
	DefaultRetryDelay = time.Second
)

var errBail = errors.New("bail after first failure")

type Runner struct {
	client   *http.Client
	ingestor *ingest.Ingestor
	resolver *env.Resolver
	config   *Config
	logger   *zap.Logger
	queue    *ResultQueue
	onEvent  sse.Handler
	cancel   *ingest.CancelFlag
}

type Config struct {
	Environment    string
	Verbose        bool
	Timeout        time.Duration
	FollowRedirect bool
	Bail           bool
	NameFilter     string
	Parallel       bool
	Concurrency    int
	// BaseDir anchors schema files and script working directories.
	BaseDir    string
	RunScripts bool
	Retries    int
	RetryDelay time.Duration
	// RetryOn limits retries to these status codes when set.
	RetryOn []int
	WaitFor *WaitFor
}

type Option func(*Runner)

func WithClient(c *http.Client) Option {
	return func(r *Runner) {
		if c != nil {
			r.client = c
		}
	}
}

func WithIngestor(in *ingest.Ingestor) Option {
	return func(r *Runner) {
		if in != nil {
			r.ingestor = in
		}
	}
}

// WithResolver sets the base resolver. Each request is interpolated by a
// scoped clone, so the base never sees request variables.
func WithResolver(res *env.Resolver) Option {
	return func(r *Runner) {
		if res != nil {
			r.resolver = res
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithQueue publishes every finished RequestResult to q.
func WithQueue(q *ResultQueue) Option {
	return func(r *Runner) {
		r.queue = q
	}
}

// WithEventHandler receives events from streaming responses.
func WithEventHandler(h sse.Handler) Option {
	return func(r *Runner) {
		r.onEvent = h
	}
}

func NewRunner(cfg *Config, opts ...Option) *Runner {
	if cfg == nil {
		cfg = &Config{}
	}

	r := &Runner{
		config: cfg,
		logger: zap.NewNop(),
		cancel: ingest.NewCancelFlag(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.client == nil {
		clientOpts := []http.ClientOption{http.WithFollowRedirects(cfg.FollowRedirect)}
		if cfg.Timeout > 0 {
			clientOpts = append(clientOpts, http.WithTimeout(cfg.Timeout))
		}
		r.client = http.NewClient(clientOpts...)
	}
	if r.ingestor == nil {
		r.ingestor = ingest.NewIngestor(ingest.WithLogger(r.logger))
	}
	if r.resolver == nil {
		r.resolver = env.NewResolver()
	}
	sugar := r.logger.Sugar()
	r.resolver.SetWarnFunc(sugar.Warnf)
	return r
}

// Cancel stops in-flight downloads at the next chunk boundary and skips
// requests that have not started.
func (r *Runner) Cancel() {
	r.cancel.Cancel()
}

func (r *Runner) Ingestor() *ingest.Ingestor {
	return r.ingestor
}

type RunResult struct {
	Collection string
	Results    []*RequestResult
	Duration   time.Duration
	Passed     int
	Failed     int
	Skipped    int
}

type RequestResult struct {
	ID         collection.NodeID
	Name       string
	Path       string
	Passed     bool
	Skipped    bool
	SkipReason string
	Attempts   int
	Duration   time.Duration
	Request    *inherit.EffectiveRequest
	Response   *ingest.Response
	Tests      []expect.TestResult
	// Captures holds the values this item stored for later items.
	Captures map[string]any
	Error    error
}

// RunFile loads a collection file and runs it. A .env file next to the
// collection seeds the environment.
func (r *Runner) RunFile(ctx context.Context, path string) (*RunResult, error) {
	tree, err := collection.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading collection: %w", err)
	}

	dotenv := filepath.Join(filepath.Dir(path), ".env")
	if _, err := os.Stat(dotenv); err == nil {
		vars, err := env.LoadDotEnv(dotenv)
		if err != nil {
			return nil, fmt.Errorf("loading environment: %w", err)
		}
		r.resolver.SetEnvironmentVariables(vars)
	}

	if r.config.BaseDir == "" {
		r.config.BaseDir = filepath.Dir(path)
	}
	return r.RunCollection(ctx, tree)
}

// RunCollection runs every item of tree in depth-first order.
func (r *Runner) RunCollection(ctx context.Context, tree *collection.Tree) (*RunResult, error) {
	start := time.Now()
	result := &RunResult{Collection: tree.Name}

	stop := context.AfterFunc(ctx, r.cancel.Cancel)
	defer stop()

	if r.config.WaitFor != nil {
		if err := r.waitForService(ctx, r.config.WaitFor); err != nil {
			return nil, err
		}
	}

	var selected []collection.NodeID
	for _, id := range tree.Items() {
		it, _ := tree.Item(id)
		if !matchesPattern(it.Name, r.config.NameFilter) {
			result.Results = append(result.Results, &RequestResult{
				ID:         id,
				Name:       it.Name,
				Path:       tree.Path(id),
				Skipped:    true,
				SkipReason: "filtered out",
			})
			continue
		}
		selected = append(selected, id)
	}

	r.logger.Info("running collection",
		zap.String("collection", tree.Name),
		zap.Int("requests", len(selected)),
		zap.Bool("parallel", r.config.Parallel))

	if r.config.Parallel {
		result.Results = append(result.Results, r.runParallel(ctx, tree, selected)...)
	} else {
		result.Results = append(result.Results, r.runSequential(ctx, tree, selected)...)
	}

	for _, res := range result.Results {
		switch {
		case res.Skipped:
			result.Skipped++
		case res.Passed:
			result.Passed++
		default:
			result.Failed++
		}
	}
	result.Duration = time.Since(start)
	return result, nil
}

func (r *Runner) runSequential(ctx context.Context, tree *collection.Tree, ids []collection.NodeID) []*RequestResult {
	var results []*RequestResult
	for _, id := range ids {
		if r.cancel.Cancelled() || ctx.Err() != nil {
			results = append(results, r.skipped(tree, id, "cancelled"))
			continue
		}

		res := r.executeWithRetry(ctx, tree, id)
		results = append(results, res)
		r.publish(res)

		if !res.Passed && !res.Skipped && r.config.Bail {
			r.logger.Info("bailing after failure", zap.String("request", res.Name))
			break
		}
	}
	return results
}

func (r *Runner) runParallel(ctx context.Context, tree *collection.Tree, ids []collection.NodeID) []*RequestResult {
	concurrency := r.config.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	results := make([]*RequestResult, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, id := range ids {
		g.Go(func() error {
			if gctx.Err() != nil || r.cancel.Cancelled() {
				reason := "cancelled"
				if errors.Is(context.Cause(gctx), errBail) {
					reason = "bail"
				}
				results[i] = r.skipped(tree, id, reason)
				return nil
			}

			res := r.executeWithRetry(gctx, tree, id)
			results[i] = res
			r.publish(res)
			if !res.Passed && !res.Skipped && r.config.Bail {
				return errBail
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (r *Runner) skipped(tree *collection.Tree, id collection.NodeID, reason string) *RequestResult {
	it, _ := tree.Item(id)
	return &RequestResult{
		ID:         id,
		Name:       it.NodeName(),
		Path:       tree.Path(id),
		Skipped:    true,
		SkipReason: reason,
	}
}

func (r *Runner) publish(res *RequestResult) {
	if r.queue != nil {
		r.queue.Push(res)
	}
}

// executeWithRetry executes a request with retry logic
func (r *Runner) executeWithRetry(ctx context.Context, tree *collection.Tree, id collection.NodeID) *RequestResult {
	delay := r.config.RetryDelay
	if delay <= 0 {
		delay = DefaultRetryDelay
	}

	var result *RequestResult
	for attempt := 0; attempt <= r.config.Retries; attempt++ {
		result = r.Execute(ctx, tree, id)
		result.Attempts = attempt + 1

		if result.Passed || result.Skipped {
			return result
		}
		if len(r.config.RetryOn) > 0 && (result.Response == nil || !slices.Contains(r.config.RetryOn, result.Response.StatusCode)) {
			return result
		}

		if attempt < r.config.Retries {
			r.logger.Debug("retrying request", zap.String("request", result.Name), zap.Int("attempt", attempt+1))
			select {
			case <-ctx.Done():
				return result
			case <-time.After(delay):
			}
		}
	}
	return result
}

// Execute runs the full pipeline for one item: resolve, interpolate, send,
// ingest and check.
func (r *Runner) Execute(ctx context.Context, tree *collection.Tree, id collection.NodeID) *RequestResult {
	result := &RequestResult{ID: id, Path: tree.Path(id)}
	start := time.Now()
	defer func() { result.Duration = time.Since(start) }()

	effective, err := inherit.ResolveInTree(tree, id)
	if err != nil {
		result.Error = err
		return result
	}
	result.Name = effective.Name

	req := r.resolver.Apply(effective)
	result.Request = req

	if r.config.RunScripts {
		if err := r.runPreScripts(ctx, req); err != nil {
			result.Error = err
			return result
		}
	}

	wire, err := r.client.Do(ctx, http.BuildRequest(req))
	if err != nil {
		result.Error = err
		r.logger.Warn("request failed", zap.String("request", req.Name), zap.Error(err))
		return result
	}

	resp := r.ingestor.Ingest(wire, ingest.WithCancel(r.cancel), ingest.WithEventHandler(r.onEvent))
	result.Response = resp

	if resp.Cancelled() {
		result.Skipped = true
		result.SkipReason = "cancelled"
		return result
	}

	result.Tests = assertions.Evaluate(resp, req, assertions.WithBaseDir(r.config.BaseDir))
	if r.config.RunScripts {
		result.Tests = append(result.Tests, r.runPostScripts(ctx, req, resp)...)
	}
	if it, ok := tree.Item(id); ok && resp.Err == nil {
		result.Captures = capture.ExtractAll(resp, req, it.Captures)
		for name, value := range result.Captures {
			r.resolver.SetVariable(name, value)
			r.logger.Debug("captured variable", zap.String("request", req.Name), zap.String("name", name))
		}
	}

	switch {
	case resp.Err != nil:
		result.Error = resp.Err
	case len(result.Tests) > 0:
		result.Passed = true
		for _, t := range result.Tests {
			if !t.Passed {
				result.Passed = false
				break
			}
		}
	default:
		result.Passed = resp.IsSuccess()
	}

	r.logger.Debug("request finished",
		zap.String("request", req.Name),
		zap.Int("status", resp.StatusCode),
		zap.Bool("passed", result.Passed),
		zap.Duration("duration", resp.Duration))
	return result
}

func matchesPattern(name, pattern string) bool {
	if pattern == "" {
		return true
	}

	if pattern[0] == '*' && pattern[len(pattern)-1] == '*' && len(pattern) > 1 {
		substr := pattern[1 : len(pattern)-1]
		for i := 0; i <= len(name)-len(substr); i++ {
			if name[i:i+len(substr)] == substr {
				return true
			}
		}
		return false
	}

	if pattern[0] == '*' {
		suffix := pattern[1:]
		return len(name) >= len(suffix) && name[len(name)-len(suffix):] == suffix
	}

	if pattern[len(pattern)-1] == '*' {
		prefix := pattern[:len(pattern)-1]
		return len(name) >= len(prefix) && name[:len(prefix)] == prefix
	}

	return name == pattern
}
