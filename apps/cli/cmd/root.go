package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/abdul-hamid-achik/restbench/packages/core/config"
	"github.com/abdul-hamid-achik/restbench/packages/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "restbench",
	Short: "Run, check and load test REST collections.",
	Long: `restbench runs collections of HTTP requests described in YAML files.

Requests inherit auth, headers, variables and scripts from the folders that
contain them. Responses are classified as text, binary or event streams and
large bodies are saved to disk instead of being held in memory. Checks
written next to each request are evaluated against the response.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute(v, bt string) {
	version = v
	buildTime = bt
	if err := rootCmd.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			if !ee.silent {
				fmt.Fprintf(os.Stderr, "Error: %v\n", ee)
			}
			os.Exit(ee.code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitUsageError)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(stressCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(completionCmd)
}

// Environment variable helpers
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// loadConfig reads the config at path, or searches upwards from the first
// collection argument when path is empty.
func loadConfig(path string, args []string) (*config.Config, error) {
	if path != "" {
		cfg, err := config.LoadConfig(path)
		if err != nil {
			return nil, withExitCode(ExitConfigError, err)
		}
		return cfg, nil
	}
	dir := "."
	if len(args) > 0 {
		if info, err := os.Stat(args[0]); err == nil && info.IsDir() {
			dir = args[0]
		} else {
			dir = filepath.Dir(args[0])
		}
	}
	cfg, err := config.FindAndLoadConfig(dir)
	if err != nil {
		return nil, withExitCode(ExitConfigError, err)
	}
	return cfg, nil
}

// newLogger builds the CLI logger. RESTBENCH_LOG_LEVEL overrides the level
// chosen by the verbose flag.
func newLogger(verbose bool) *zap.Logger {
	if level := os.Getenv("RESTBENCH_LOG_LEVEL"); level != "" {
		return logging.NewAtLevel(os.Stderr, logging.ParseLevel(level))
	}
	return logging.New(verbose)
}
