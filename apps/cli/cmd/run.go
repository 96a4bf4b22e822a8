package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/abdul-hamid-achik/restbench/packages/core/config"
	"github.com/abdul-hamid-achik/restbench/packages/core/runner"
	"github.com/abdul-hamid-achik/restbench/packages/export/metrics"
	"github.com/abdul-hamid-achik/restbench/packages/history"
	"github.com/abdul-hamid-achik/restbench/packages/output"
	"github.com/abdul-hamid-achik/restbench/packages/sse"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run <file|directory>",
	Short: "Run request collections and evaluate their checks",
	Long: `Run every request of one or more YAML collections.

Examples:
  restbench run api.yaml
  restbench run api.yaml --env staging
  restbench run ./collections/ --name "users*"
  restbench run api.yaml --parallel --concurrency 10
  restbench run api.yaml -o junit --output-file report.xml
  restbench run api.yaml --history .restbench/history.db`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCommand,
}

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond
)

var (
	envFlag         string
	envFileFlag     string
	nameFlag        string
	verboseFlag     int // 0=off, 1=-v, 2=-vv
	quietFlag       bool
	bailFlag        bool
	timeoutFlag     string
	noColorFlag     bool
	outputFlag      string
	outputFileFlag  string
	parallelFlag    bool
	concurrencyFlag int
	watchFlag       bool
	proxyFlag       string
	insecureFlag    bool
	configFlag      string
	retriesFlag     int
	noScriptsFlag   bool
	historyFlag     string
	waitForFlag     string
	waitTimeoutFlag string
	cleanupFlag     bool
	metricsFlag     string
	metricsFileFlag string
)

func init() {
	// Core flags
	runCmd.Flags().StringVarP(&envFlag, "env", "e", getEnvString("RESTBENCH_ENV", ""), "Environment to use (env: RESTBENCH_ENV)")
	runCmd.Flags().StringVar(&envFileFlag, "env-file", getEnvString("RESTBENCH_ENV_FILE", ""), "Path to .env file for variable interpolation (env: RESTBENCH_ENV_FILE)")
	runCmd.Flags().StringVar(&configFlag, "config", getEnvString("RESTBENCH_CONFIG", ""), "Path to config file (env: RESTBENCH_CONFIG)")
	runCmd.Flags().StringVarP(&nameFlag, "name", "n", "", "Run only requests matching name pattern")

	// Output flags
	runCmd.Flags().CountVarP(&verboseFlag, "verbose", "v", "Verbose output (-v, -vv for streamed events)")
	runCmd.Flags().BoolVarP(&quietFlag, "quiet", "q", getEnvBool("RESTBENCH_QUIET", false), "Suppress console output (env: RESTBENCH_QUIET)")
	runCmd.Flags().BoolVar(&noColorFlag, "no-color", getEnvBool("RESTBENCH_NO_COLOR", false), "Disable colored output (env: RESTBENCH_NO_COLOR)")
	runCmd.Flags().StringVarP(&outputFlag, "output", "o", getEnvString("RESTBENCH_OUTPUT", ""), "Output format: console, json, junit, tap (env: RESTBENCH_OUTPUT)")
	runCmd.Flags().StringVar(&outputFileFlag, "output-file", getEnvString("RESTBENCH_OUTPUT_FILE", ""), "Write output to file (default: stdout) (env: RESTBENCH_OUTPUT_FILE)")

	// Execution flags
	runCmd.Flags().BoolVar(&bailFlag, "bail", getEnvBool("RESTBENCH_BAIL", false), "Stop on first failure (env: RESTBENCH_BAIL)")
	runCmd.Flags().StringVar(&timeoutFlag, "timeout", getEnvString("RESTBENCH_TIMEOUT", ""), "Request timeout (e.g., 30s, 1m) (env: RESTBENCH_TIMEOUT)")
	runCmd.Flags().BoolVarP(&parallelFlag, "parallel", "p", getEnvBool("RESTBENCH_PARALLEL", false), "Run requests in parallel (env: RESTBENCH_PARALLEL)")
	runCmd.Flags().IntVar(&concurrencyFlag, "concurrency", getEnvInt("RESTBENCH_CONCURRENCY", runner.DefaultConcurrency), "Number of concurrent requests when running in parallel (env: RESTBENCH_CONCURRENCY)")
	runCmd.Flags().IntVar(&retriesFlag, "retries", getEnvInt("RESTBENCH_RETRIES", 0), "Retry failed requests this many times (env: RESTBENCH_RETRIES)")
	runCmd.Flags().BoolVar(&noScriptsFlag, "no-scripts", getEnvBool("RESTBENCH_NO_SCRIPTS", false), "Do not run pre and post request scripts (env: RESTBENCH_NO_SCRIPTS)")
	runCmd.Flags().StringVar(&waitForFlag, "wait-for", "", "Poll this URL until it answers 200 before running")
	runCmd.Flags().StringVar(&waitTimeoutFlag, "wait-timeout", "30s", "How long --wait-for polls before giving up")
	runCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch files for changes and re-run")
	runCmd.Flags().BoolVar(&cleanupFlag, "cleanup", getEnvBool("RESTBENCH_CLEANUP", false), "Remove saved response files on exit (env: RESTBENCH_CLEANUP)")

	// Network flags
	runCmd.Flags().StringVar(&proxyFlag, "proxy", getEnvString("RESTBENCH_PROXY", ""), "Proxy URL for HTTP requests (env: RESTBENCH_PROXY)")
	runCmd.Flags().BoolVarP(&insecureFlag, "insecure", "k", getEnvBool("RESTBENCH_INSECURE", false), "Disable SSL certificate validation (env: RESTBENCH_INSECURE)")

	// Metrics export
	runCmd.Flags().StringVar(&metricsFlag, "metrics", getEnvString("RESTBENCH_METRICS", ""), "Metrics export format: prometheus, json (env: RESTBENCH_METRICS)")
	runCmd.Flags().StringVar(&metricsFileFlag, "metrics-file", getEnvString("RESTBENCH_METRICS_FILE", ""), "Write exported metrics to this file (env: RESTBENCH_METRICS_FILE)")

	// History
	runCmd.Flags().StringVar(&historyFlag, "history", getEnvString("RESTBENCH_HISTORY", ""), "Record runs in this SQLite database (env: RESTBENCH_HISTORY)")
}

func runCommand(cmd *cobra.Command, args []string) error {
	fileConfig, err := loadConfig(configFlag, args)
	if err != nil {
		return err
	}
	cfg, timeout, err := networkFlags{proxy: proxyFlag, insecure: insecureFlag, timeout: timeoutFlag}.apply(fileConfig)
	if err != nil {
		return err
	}

	verbose := verboseFlag > 0 || cfg.GetVerbose()
	logger := newLogger(verbose)
	defer func() { _ = logger.Sync() }()

	// Setup output writer
	var outWriter io.Writer = cmd.OutOrStdout()
	if outputFileFlag != "" {
		f, err := os.Create(outputFileFlag)
		if err != nil {
			return withExitCode(ExitUsageError, fmt.Errorf("cannot create output file: %w", err))
		}
		defer f.Close()
		outWriter = f
	}

	format := strings.ToLower(outputFlag)
	if format == "" && len(cfg.Reporters) > 0 {
		format = cfg.Reporters[0]
	}
	if format == "console" && quietFlag {
		outWriter = io.Discard
	}
	noColor := noColorFlag || cfg.GetNoColor() || outputFileFlag != ""
	newFormatter := func() (output.Formatter, error) {
		return output.New(format, outWriter, verbose, noColor)
	}
	formatter, err := newFormatter()
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}
	formatter.FormatHeader(version)

	files, err := collectFiles(args)
	if err != nil {
		formatter.FormatError(err)
		return withExitCode(ExitUsageError, err)
	}
	if len(files) == 0 {
		err := fmt.Errorf("no .yaml or .yml collection files found")
		formatter.FormatError(err)
		return withExitCode(ExitUsageError, err)
	}

	sess, err := newSession(cfg, timeout, envFlag, envFileFlag, logger)
	if err != nil {
		return err
	}
	if cleanupFlag {
		defer func() {
			if err := sess.ingestor.Cleanup(); err != nil {
				logger.Warn("failed to remove response files", zap.Error(err))
			}
		}()
	}
	if verboseFlag > 1 {
		sess.onEvent = func(ev sse.Event) {
			logger.Debug("event", zap.String("type", ev.Type), zap.String("id", ev.ID), zap.String("data", ev.Data))
		}
	}

	var store *history.Store
	if dsn := firstNonEmpty(historyFlag, cfg.HistoryDB); dsn != "" {
		store, err = history.Open(dsn)
		if err != nil {
			return withExitCode(ExitConfigError, err)
		}
		defer store.Close()
	}

	collector, closeMetrics, err := newMetricsCollector(sess.envName)
	if err != nil {
		return err
	}
	defer closeMetrics()

	rc := runner.Config{
		Verbose:     verbose,
		Timeout:     timeout,
		Bail:        bailFlag || cfg.GetBail(),
		NameFilter:  nameFlag,
		Parallel:    parallelFlag || cfg.GetParallel(),
		Concurrency: cfg.Concurrency,
		RunScripts:  cfg.GetRunScripts() && !noScriptsFlag,
		Retries:     retriesFlag,
	}
	if cmd.Flags().Changed("concurrency") || rc.Concurrency <= 0 {
		rc.Concurrency = concurrencyFlag
	}
	if waitForFlag != "" {
		wt, err := time.ParseDuration(waitTimeoutFlag)
		if err != nil {
			return withExitCode(ExitUsageError, fmt.Errorf("invalid wait timeout %q: %w", waitTimeoutFlag, err))
		}
		rc.WaitFor = &runner.WaitFor{URL: waitForFlag, Status: 200, Timeout: wt}
	}

	// Set up signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\nReceived interrupt, cancelling requests...")
			cancel()
		case <-ctx.Done():
		}
	}()

	runAll := func(formatter output.Formatter) (failed int, duration time.Duration) {
		startTime := time.Now()
		for _, file := range files {
			if ctx.Err() != nil {
				break
			}
			started := time.Now()
			r, err := sess.newRunner(rc)
			if err != nil {
				formatter.FormatError(err)
				failed++
				break
			}
			result, err := r.RunFile(ctx, file)
			if err != nil {
				formatter.FormatError(fmt.Errorf("%s: %w", file, err))
				failed++
				if rc.Bail {
					break
				}
				continue
			}

			formatter.FormatResult(result)
			failed += result.Failed
			record(ctx, store, result, sess.envName, started, logger)
			if collector != nil {
				collector.RecordRun(result)
			}

			if rc.Bail && result.Failed > 0 {
				break
			}
		}
		return failed, time.Since(startTime)
	}

	totalFailed, totalDuration := runAll(formatter)

	// Flush output for formatters that accumulate results
	if flushable, ok := formatter.(output.Flushable); ok {
		if err := flushable.Flush(totalDuration); err != nil {
			return fmt.Errorf("error writing output: %w", err)
		}
	}

	if collector != nil {
		if err := collector.Flush(); err != nil {
			return fmt.Errorf("error exporting metrics: %w", err)
		}
	}

	if !watchFlag {
		if totalFailed > 0 {
			return silentExit(ExitTestFailure)
		}
		return nil
	}

	return watch(ctx, cmd, args, files, func() {
		f, err := newFormatter()
		if err != nil {
			return
		}
		_, duration := runAll(f)
		if flushable, ok := f.(output.Flushable); ok {
			_ = flushable.Flush(duration)
		}
	})
}

// newMetricsCollector opens the metrics file when metrics export is
// requested. The returned close func is always safe to call.
func newMetricsCollector(envName string) (*metrics.Collector, func(), error) {
	if metricsFlag == "" && metricsFileFlag == "" {
		return nil, func() {}, nil
	}
	if metricsFileFlag == "" {
		return nil, nil, withExitCode(ExitUsageError, fmt.Errorf("--metrics needs --metrics-file"))
	}
	f, err := os.Create(metricsFileFlag)
	if err != nil {
		return nil, nil, withExitCode(ExitUsageError, fmt.Errorf("cannot create metrics file: %w", err))
	}
	var labels map[string]string
	if envName != "" {
		labels = map[string]string{"environment": envName}
	}
	exp, err := metrics.NewExporter(strings.ToLower(metricsFlag), f, version, labels)
	if err != nil {
		_ = f.Close()
		return nil, nil, withExitCode(ExitUsageError, err)
	}
	collector := metrics.NewCollector(exp)
	return collector, func() {
		_ = collector.Close()
		_ = f.Close()
	}, nil
}

// record stores result in the history database when one is configured.
// Failures are logged, never fatal.
func record(ctx context.Context, store *history.Store, result *runner.RunResult, envName string, started time.Time, logger *zap.Logger) {
	if store == nil {
		return
	}
	id, err := store.Record(ctx, history.FromRunResult(result, envName, started))
	if err != nil {
		logger.Warn("failed to record run", zap.Error(err))
		return
	}
	logger.Debug("recorded run", zap.String("id", id), zap.String("collection", result.Collection))
}

// watch re-runs rerun whenever a collection file or the config changes,
// until ctx is cancelled.
func watch(ctx context.Context, cmd *cobra.Command, args, files []string, rerun func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	// Add files and directories to watch
	watchedDirs := make(map[string]bool)
	for _, file := range files {
		dir := filepath.Dir(file)
		if !watchedDirs[dir] {
			if err := watcher.Add(dir); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "failed to watch %s: %v\n", dir, err)
			}
			watchedDirs[dir] = true
		}
	}
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err == nil && info.IsDir() {
			_ = filepath.Walk(arg, func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if info.IsDir() && !watchedDirs[path] {
					_ = watcher.Add(path)
					watchedDirs[path] = true
				}
				return nil
			})
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nWatching for changes... (press Ctrl+C to stop)\n\n")

	// Debounce timer for rapid file changes
	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !isCollectionFile(event.Name) && !isConfigFile(event.Name) && filepath.Base(event.Name) != ".env" {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			name := event.Name
			debounceTimer = time.AfterFunc(WatchDebounceDelay, func() {
				fmt.Fprintf(cmd.OutOrStdout(), "\n\nFile changed: %s\nRe-running...\n\n", name)
				rerun()
				fmt.Fprintf(cmd.OutOrStdout(), "\nWatching for changes... (press Ctrl+C to stop)\n")
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "watcher error: %v\n", err)
		}
	}
}

func isConfigFile(path string) bool {
	base := filepath.Base(path)
	for _, name := range config.ConfigFilenames {
		if base == name {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
