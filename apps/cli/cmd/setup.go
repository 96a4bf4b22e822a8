package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/restbench/packages/core/config"
	"github.com/abdul-hamid-achik/restbench/packages/core/env"
	"github.com/abdul-hamid-achik/restbench/packages/core/runner"
	"github.com/abdul-hamid-achik/restbench/packages/http"
	"github.com/abdul-hamid-achik/restbench/packages/ingest"
	"github.com/abdul-hamid-achik/restbench/packages/sse"
	"go.uber.org/zap"
)

// networkFlags are the overrides shared by run and stress.
type networkFlags struct {
	proxy    string
	insecure bool
	timeout  string
}

// apply folds the flags into cfg and returns the request timeout.
func (f networkFlags) apply(cfg *config.Config) (*config.Config, time.Duration, error) {
	overrides := &config.Config{Proxy: f.proxy}
	if f.insecure {
		overrides.ValidateSSL = config.BoolPtr(false)
	}
	cfg = cfg.Merge(overrides)

	timeout := time.Duration(cfg.Timeout) * time.Millisecond
	if f.timeout != "" {
		d, err := time.ParseDuration(f.timeout)
		if err != nil {
			return nil, 0, withExitCode(ExitUsageError,
				fmt.Errorf("invalid timeout value %q: %w (use format like 30s, 1m, 500ms)", f.timeout, err))
		}
		timeout = d
	}
	return cfg, timeout, nil
}

// session holds what every runner of one CLI invocation shares.
type session struct {
	cfg      *config.Config
	client   *http.Client
	ingestor *ingest.Ingestor
	logger   *zap.Logger
	envName  string
	envFile  string
	onEvent  sse.Handler
}

func newSession(cfg *config.Config, timeout time.Duration, envName, envFile string, logger *zap.Logger) (*session, error) {
	if envName == "" {
		envName = cfg.DefaultEnvironment
	}
	if len(cfg.Environments) > 0 {
		if _, ok := cfg.Environment(envName); !ok {
			logger.Warn("environment not found in config", zap.String("environment", envName))
		}
	}
	if envFile != "" {
		if _, err := os.Stat(envFile); err != nil {
			return nil, withExitCode(ExitConfigError, fmt.Errorf("cannot access env file: %w", err))
		}
	}
	return &session{
		cfg:      cfg,
		client:   http.NewClient(cfg.ClientOptions(timeout)...),
		ingestor: cfg.NewIngestor(logger),
		logger:   logger,
		envName:  envName,
		envFile:  envFile,
	}, nil
}

// resolver builds a base resolver seeded with the config environment and
// the env file.
func (s *session) resolver() (*env.Resolver, error) {
	res := env.NewResolver()
	if vars, ok := s.cfg.Environment(s.envName); ok {
		res.SetEnvironment(vars)
	}
	if s.envFile != "" {
		vars, err := env.LoadDotEnv(s.envFile)
		if err != nil {
			return nil, withExitCode(ExitConfigError, err)
		}
		res.SetEnvironmentVariables(vars)
	}
	return res, nil
}

// newRunner returns a runner for one collection file. Runners are not
// reused across files since cancellation is permanent.
func (s *session) newRunner(rc runner.Config, opts ...runner.Option) (*runner.Runner, error) {
	res, err := s.resolver()
	if err != nil {
		return nil, err
	}
	rc.Environment = s.envName
	if rc.Retries == 0 {
		rc.Retries = s.cfg.Retries
	}
	if rc.RetryDelay == 0 && s.cfg.RetryDelay > 0 {
		rc.RetryDelay = time.Duration(s.cfg.RetryDelay) * time.Millisecond
	}
	rc.FollowRedirect = s.cfg.GetFollowRedirects()

	base := []runner.Option{
		runner.WithClient(s.client),
		runner.WithIngestor(s.ingestor),
		runner.WithResolver(res),
		runner.WithLogger(s.logger),
	}
	if s.onEvent != nil {
		base = append(base, runner.WithEventHandler(s.onEvent))
	}
	return runner.NewRunner(&rc, append(base, opts...)...), nil
}

func collectFiles(args []string) ([]string, error) {
	var files []string

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}

		if info.IsDir() {
			err := filepath.Walk(arg, func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if !info.IsDir() && isCollectionFile(path) {
					files = append(files, path)
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
		} else {
			if isCollectionFile(arg) {
				files = append(files, arg)
			}
		}
	}

	return files, nil
}

func isCollectionFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
