package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abdul-hamid-achik/restbench/packages/core/config"
	"github.com/abdul-hamid-achik/restbench/packages/core/runner"
	"github.com/abdul-hamid-achik/restbench/packages/stress"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

var stressCmd = &cobra.Command{
	Use:   "stress <file>",
	Short: "Replay a collection under load",
	Long: `Replay the requests of a collection at a fixed rate or with a pool of
workers, then report latency percentiles and check results.

Items can set a weight to be picked more often; a negative weight leaves
the item out of the load.

Examples:
  # Simple constant rate test
  restbench stress api.yaml --duration 1m --rate 100

  # Worker mode with think time
  restbench stress api.yaml --duration 2m --workers 50 --think-time 1s

  # With ramp-up
  restbench stress api.yaml --duration 5m --rate 200 --ramp-up 30s

  # Using config profile
  restbench stress api.yaml --profile load --env staging

  # With thresholds for CI/CD
  restbench stress api.yaml -d 1m -r 100 --threshold "p95<200ms,errors<0.1%"`,
	Args: cobra.ExactArgs(1),
	RunE: stressCommand,
}

var (
	stressModeFlag        string
	stressDurationFlag    time.Duration
	stressRateFlag        float64
	stressWorkersFlag     int
	stressMaxInFlightFlag int
	stressThinkTimeFlag   time.Duration
	stressRampUpFlag      time.Duration
	stressThresholdFlag   string
	stressProfileFlag     string
	stressEnvFlag         string
	stressEnvFileFlag     string
	stressConfigFlag      string
	stressNameFlag        string
	stressTimeoutFlag     string
	stressNoProgressFlag  bool
	stressNoColorFlag     bool
	stressVerboseFlag     bool
	stressJSONFlag        bool
	stressProxyFlag       string
	stressInsecureFlag    bool
)

func init() {
	defaults := stress.DefaultConfig()
	stressCmd.Flags().StringVar(&stressModeFlag, "mode", "", "Load model: rate or workers (default rate, or workers when --workers is set)")
	stressCmd.Flags().DurationVarP(&stressDurationFlag, "duration", "d", defaults.Duration, "Test duration (e.g., 30s, 5m, 1h)")
	stressCmd.Flags().Float64VarP(&stressRateFlag, "rate", "r", defaults.Rate, "Target requests per second")
	stressCmd.Flags().IntVarP(&stressWorkersFlag, "workers", "u", 0, "Number of concurrent workers (alternative to rate)")
	stressCmd.Flags().IntVar(&stressMaxInFlightFlag, "max-in-flight", defaults.MaxInFlight, "Maximum concurrent requests")
	stressCmd.Flags().DurationVarP(&stressThinkTimeFlag, "think-time", "t", 0, "Pause between requests per worker")
	stressCmd.Flags().DurationVar(&stressRampUpFlag, "ramp-up", 0, "Ramp-up time to reach target rate or workers")
	stressCmd.Flags().StringVar(&stressThresholdFlag, "threshold", "", "Pass/fail thresholds (e.g., \"p95<200ms,errors<0.1%\")")
	stressCmd.Flags().StringVarP(&stressProfileFlag, "profile", "p", "", "Load stress profile from config")
	stressCmd.Flags().StringVarP(&stressEnvFlag, "env", "e", getEnvString("RESTBENCH_ENV", ""), "Environment to use (env: RESTBENCH_ENV)")
	stressCmd.Flags().StringVar(&stressEnvFileFlag, "env-file", getEnvString("RESTBENCH_ENV_FILE", ""), "Path to .env file (env: RESTBENCH_ENV_FILE)")
	stressCmd.Flags().StringVar(&stressConfigFlag, "config", getEnvString("RESTBENCH_CONFIG", ""), "Path to config file (env: RESTBENCH_CONFIG)")
	stressCmd.Flags().StringVarP(&stressNameFlag, "name", "n", "", "Only load requests matching name pattern")
	stressCmd.Flags().StringVar(&stressTimeoutFlag, "timeout", getEnvString("RESTBENCH_TIMEOUT", ""), "Request timeout (env: RESTBENCH_TIMEOUT)")
	stressCmd.Flags().BoolVar(&stressNoProgressFlag, "no-progress", false, "Disable real-time progress display")
	stressCmd.Flags().BoolVar(&stressNoColorFlag, "no-color", getEnvBool("RESTBENCH_NO_COLOR", false), "Disable colored output (env: RESTBENCH_NO_COLOR)")
	stressCmd.Flags().BoolVarP(&stressVerboseFlag, "verbose", "v", false, "Verbose output with per-request breakdown")
	stressCmd.Flags().BoolVar(&stressJSONFlag, "json", false, "Output results as JSON")
	stressCmd.Flags().StringVar(&stressProxyFlag, "proxy", getEnvString("RESTBENCH_PROXY", ""), "Proxy URL for HTTP requests (env: RESTBENCH_PROXY)")
	stressCmd.Flags().BoolVarP(&stressInsecureFlag, "insecure", "k", false, "Disable SSL certificate validation")
}

func stressCommand(cmd *cobra.Command, args []string) error {
	filePath := args[0]
	if _, err := os.Stat(filePath); err != nil {
		return withExitCode(ExitUsageError, fmt.Errorf("cannot access file: %w", err))
	}

	fileConfig, err := loadConfig(stressConfigFlag, args)
	if err != nil {
		return err
	}
	cfg, err := buildStressConfig(fileConfig, cmd.Flags())
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}
	appCfg, timeout, err := networkFlags{proxy: stressProxyFlag, insecure: stressInsecureFlag, timeout: stressTimeoutFlag}.apply(fileConfig)
	if err != nil {
		return err
	}

	logger := newLogger(stressVerboseFlag)
	defer func() { _ = logger.Sync() }()

	sess, err := newSession(appCfg, timeout, stressEnvFlag, stressEnvFileFlag, logger)
	if err != nil {
		return err
	}
	// Saved bodies from load runs are never inspected.
	defer func() {
		if err := sess.ingestor.Cleanup(); err != nil {
			logger.Warn("failed to remove response files", zap.Error(err))
		}
	}()

	exec, err := sess.newRunner(runner.Config{
		Timeout:    timeout,
		RunScripts: appCfg.GetRunScripts(),
	})
	if err != nil {
		return err
	}

	reporter := stress.NewReporter(
		stress.WithWriter(cmd.OutOrStdout()),
		stress.WithNoColor(stressNoColorFlag || appCfg.GetNoColor()),
		stress.WithNoProgress(stressNoProgressFlag || stressJSONFlag),
		stress.WithVerbose(stressVerboseFlag),
		stress.WithVersion(version),
	)

	stressRunner := stress.NewRunner(cfg, exec,
		stress.WithReporter(reporter),
		stress.WithLogger(logger),
		stress.WithNameFilter(stressNameFlag),
	)
	if err := stressRunner.LoadFile(filePath); err != nil {
		return withExitCode(ExitParseError, err)
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
			fmt.Fprintln(os.Stderr, "\nReceived interrupt, stopping gracefully...")
			cancel()
		case <-ctx.Done():
		}
	}()

	result, err := stressRunner.Run(ctx)
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}

	if stressJSONFlag {
		if err := reporter.JSONSummary(result.Summary, result.Thresholds); err != nil {
			return err
		}
	}

	if !result.Passed {
		return silentExit(ExitTestFailure)
	}
	return nil
}

// buildStressConfig layers an optional config profile and then the flags
// that were set explicitly over the defaults.
func buildStressConfig(fileConfig *config.Config, flags *pflag.FlagSet) (*stress.Config, error) {
	cfg := stress.DefaultConfig()

	if stressProfileFlag != "" {
		profile, ok := fileConfig.StressProfiles[stressProfileFlag]
		if !ok {
			return nil, fmt.Errorf("stress profile %q not found in config", stressProfileFlag)
		}
		if err := applyProfile(cfg, profile); err != nil {
			return nil, fmt.Errorf("profile %s: %w", stressProfileFlag, err)
		}
	}

	if flags.Changed("duration") {
		cfg.Duration = stressDurationFlag
	}
	if flags.Changed("rate") {
		cfg.Rate = stressRateFlag
	}
	if flags.Changed("workers") {
		cfg.Workers = stressWorkersFlag
		cfg.Mode = stress.WorkerMode
	}
	if flags.Changed("mode") {
		mode, err := stress.ParseMode(stressModeFlag)
		if err != nil {
			return nil, err
		}
		cfg.Mode = mode
	}
	if flags.Changed("max-in-flight") {
		cfg.MaxInFlight = stressMaxInFlightFlag
	}
	if flags.Changed("think-time") {
		cfg.ThinkTime = stressThinkTimeFlag
	}
	if flags.Changed("ramp-up") {
		cfg.RampUp = stressRampUpFlag
	}
	if stressThresholdFlag != "" {
		t, err := stress.ParseThresholds(stressThresholdFlag)
		if err != nil {
			return nil, fmt.Errorf("invalid thresholds: %w", err)
		}
		cfg.Thresholds = t
	}

	return cfg, cfg.Validate()
}

func applyProfile(cfg *stress.Config, p config.StressProfile) error {
	if p.Mode != "" {
		mode, err := stress.ParseMode(p.Mode)
		if err != nil {
			return err
		}
		cfg.Mode = mode
	}
	durations := []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"duration", p.Duration, &cfg.Duration},
		{"think time", p.ThinkTime, &cfg.ThinkTime},
		{"ramp-up", p.RampUp, &cfg.RampUp},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		v, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.name, err)
		}
		*d.dst = v
	}
	if p.Rate > 0 {
		cfg.Rate = p.Rate
	}
	if p.Workers > 0 {
		cfg.Workers = p.Workers
		if p.Mode == "" {
			cfg.Mode = stress.WorkerMode
		}
	}
	if p.MaxInFlight > 0 {
		cfg.MaxInFlight = p.MaxInFlight
	}
	if p.Thresholds != "" {
		t, err := stress.ParseThresholds(p.Thresholds)
		if err != nil {
			return fmt.Errorf("invalid thresholds: %w", err)
		}
		cfg.Thresholds = t
	}
	return nil
}
