package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/restbench/packages/http"
	"github.com/abdul-hamid-achik/restbench/packages/ingest"
	"go.uber.org/zap"
)

// Config represents the restbench configuration
type Config struct {
	DefaultEnvironment string                    `json:"defaultEnvironment,omitempty"`
	Environments       map[string]map[string]any `json:"environments,omitempty"`
	Timeout            int                       `json:"timeout,omitempty"`    // milliseconds
	Retries            int                       `json:"retries,omitempty"`
	RetryDelay         int                       `json:"retryDelay,omitempty"` // milliseconds
	FollowRedirects    *bool                     `json:"followRedirects,omitempty"`
	MaxRedirects       int                       `json:"maxRedirects,omitempty"`
	ValidateSSL        *bool                     `json:"validateSSL,omitempty"`
	Proxy              string                    `json:"proxy,omitempty"`
	Headers            map[string]string         `json:"headers,omitempty"`   // Default headers for all requests
	Reporters          []string                  `json:"reporters,omitempty"` // Output reporters
	OutputDir          string                    `json:"outputDir,omitempty"` // Directory for output files
	Parallel           *bool                     `json:"parallel,omitempty"`
	Concurrency        int                       `json:"concurrency,omitempty"` // Number of parallel requests
	Bail               *bool                     `json:"bail,omitempty"`
	Verbose            *bool                     `json:"verbose,omitempty"`
	NoColor            *bool                     `json:"noColor,omitempty"`
	RunScripts         *bool                     `json:"runScripts,omitempty"`

	// Response handling. Zero InlineLimitKB means the default; a HardLimitKB
	// of zero disables the hard limit, so nil is needed to mean "unset".
	InlineLimitKB      int      `json:"inlineLimitKB,omitempty"`
	HardLimitKB        *int     `json:"hardLimitKB,omitempty"`
	TempDir            string   `json:"tempDir,omitempty"`
	BinaryContentTypes []string `json:"binaryContentTypes,omitempty"`

	HistoryDB string `json:"historyDB,omitempty"`

	// StressProfiles are named presets for the stress command.
	StressProfiles map[string]StressProfile `json:"stressProfiles,omitempty"`
}

// StressProfile holds stress settings as they appear in the config file.
// Durations use time.ParseDuration syntax.
type StressProfile struct {
	Mode        string  `json:"mode,omitempty"`
	Duration    string  `json:"duration,omitempty"`
	Rate        float64 `json:"rate,omitempty"`
	Workers     int     `json:"workers,omitempty"`
	MaxInFlight int     `json:"maxInFlight,omitempty"`
	ThinkTime   string  `json:"thinkTime,omitempty"`
	RampUp      string  `json:"rampUp,omitempty"`
	Thresholds  string  `json:"thresholds,omitempty"`
}

// BoolPtr returns a pointer to b
func BoolPtr(b bool) *bool {
	return &b
}

// IntPtr returns a pointer to n
func IntPtr(n int) *int {
	return &n
}

// getBool returns the value of a bool pointer, or the default if nil
func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetFollowRedirects returns the follow redirects setting, defaulting to true
func (c *Config) GetFollowRedirects() bool {
	return getBool(c.FollowRedirects, true)
}

// GetValidateSSL returns the validate SSL setting, defaulting to true
func (c *Config) GetValidateSSL() bool {
	return getBool(c.ValidateSSL, true)
}

func (c *Config) GetParallel() bool {
	return getBool(c.Parallel, false)
}

func (c *Config) GetBail() bool {
	return getBool(c.Bail, false)
}

func (c *Config) GetVerbose() bool {
	return getBool(c.Verbose, false)
}

func (c *Config) GetNoColor() bool {
	return getBool(c.NoColor, false)
}

// GetRunScripts returns whether pre and post scripts run, defaulting to true
func (c *Config) GetRunScripts() bool {
	return getBool(c.RunScripts, true)
}

// Limits converts the KB settings into ingest limits.
func (c *Config) Limits() ingest.Limits {
	limits := ingest.DefaultLimits()
	if c.InlineLimitKB > 0 {
		limits.InlineBytes = int64(c.InlineLimitKB) * 1024
	}
	if c.HardLimitKB != nil {
		limits.HardBytes = int64(max(*c.HardLimitKB, 0)) * 1024
	}
	return limits
}

// BinaryTypes returns the configured binary table, or the default one.
func (c *Config) BinaryTypes() ingest.BinaryTable {
	if len(c.BinaryContentTypes) == 0 {
		return ingest.DefaultBinaryTypes
	}
	table := make(ingest.BinaryTable, 0, len(c.BinaryContentTypes))
	for _, t := range c.BinaryContentTypes {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			table = append(table, t)
		}
	}
	return table
}

// NewIngestor builds an ingestor from the response handling settings.
func (c *Config) NewIngestor(logger *zap.Logger) *ingest.Ingestor {
	opts := []ingest.IngestorOption{
		ingest.WithLimits(c.Limits()),
		ingest.WithBinaryTypes(c.BinaryTypes()),
		ingest.WithLogger(logger),
	}
	if c.TempDir != "" {
		opts = append(opts, ingest.WithTempDir(c.TempDir))
	}
	return ingest.NewIngestor(opts...)
}

// ClientOptions translates transport settings. timeout, when positive,
// overrides the configured one.
func (c *Config) ClientOptions(timeout time.Duration) []http.ClientOption {
	if timeout <= 0 && c.Timeout > 0 {
		timeout = time.Duration(c.Timeout) * time.Millisecond
	}
	opts := []http.ClientOption{
		http.WithFollowRedirects(c.GetFollowRedirects()),
		http.WithValidateSSL(c.GetValidateSSL()),
	}
	if timeout > 0 {
		opts = append(opts, http.WithTimeout(timeout))
	}
	if c.MaxRedirects > 0 {
		opts = append(opts, http.WithMaxRedirects(c.MaxRedirects))
	}
	if len(c.Headers) > 0 {
		opts = append(opts, http.WithDefaultHeaders(c.Headers))
	}
	if c.Proxy != "" {
		opts = append(opts, http.WithProxy(c.Proxy))
	}
	return opts
}

// Environment returns the variables of the named environment, falling back
// to DefaultEnvironment when name is empty.
func (c *Config) Environment(name string) (map[string]any, bool) {
	if name == "" {
		name = c.DefaultEnvironment
	}
	vars, ok := c.Environments[name]
	return vars, ok
}

// ConfigFilenames contains the possible config file names
var ConfigFilenames = []string{
	".restbench.json",
	"restbench.json",
	".restbenchrc",
}

// LoadConfig loads configuration from the specified path or searches for config files
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		return loadConfigFromFile(path)
	}
	return FindAndLoadConfig(".")
}

// FindAndLoadConfig searches dir and its parents for a config file. The
// defaults are returned when none is found.
func FindAndLoadConfig(dir string) (*Config, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	for {
		for _, filename := range ConfigFilenames {
			configPath := filepath.Join(abs, filename)
			if _, err := os.Stat(configPath); err == nil {
				return loadConfigFromFile(configPath)
			}
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			break
		}
		abs = parent
	}
	return DefaultConfig(), nil
}

func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if config.HistoryDB != "" && !filepath.IsAbs(config.HistoryDB) && !strings.Contains(config.HistoryDB, ":") {
		config.HistoryDB = filepath.Join(filepath.Dir(path), config.HistoryDB)
	}
	return config, nil
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c

	if other.DefaultEnvironment != "" {
		result.DefaultEnvironment = other.DefaultEnvironment
	}
	if other.Timeout > 0 {
		result.Timeout = other.Timeout
	}
	if other.Retries > 0 {
		result.Retries = other.Retries
	}
	if other.RetryDelay > 0 {
		result.RetryDelay = other.RetryDelay
	}
	if other.MaxRedirects > 0 {
		result.MaxRedirects = other.MaxRedirects
	}
	if other.Proxy != "" {
		result.Proxy = other.Proxy
	}
	if other.OutputDir != "" {
		result.OutputDir = other.OutputDir
	}
	if other.Concurrency > 0 {
		result.Concurrency = other.Concurrency
	}
	if other.InlineLimitKB > 0 {
		result.InlineLimitKB = other.InlineLimitKB
	}
	if other.HardLimitKB != nil {
		result.HardLimitKB = other.HardLimitKB
	}
	if other.TempDir != "" {
		result.TempDir = other.TempDir
	}
	if len(other.BinaryContentTypes) > 0 {
		result.BinaryContentTypes = other.BinaryContentTypes
	}
	if other.HistoryDB != "" {
		result.HistoryDB = other.HistoryDB
	}

	// Boolean flags - only override if explicitly set in other config
	if other.FollowRedirects != nil {
		result.FollowRedirects = other.FollowRedirects
	}
	if other.ValidateSSL != nil {
		result.ValidateSSL = other.ValidateSSL
	}
	if other.Parallel != nil {
		result.Parallel = other.Parallel
	}
	if other.Bail != nil {
		result.Bail = other.Bail
	}
	if other.Verbose != nil {
		result.Verbose = other.Verbose
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}
	if other.RunScripts != nil {
		result.RunScripts = other.RunScripts
	}

	if len(other.Headers) > 0 {
		headers := make(map[string]string, len(result.Headers)+len(other.Headers))
		for k, v := range result.Headers {
			headers[k] = v
		}
		for k, v := range other.Headers {
			headers[k] = v
		}
		result.Headers = headers
	}
	if len(other.Environments) > 0 {
		envs := make(map[string]map[string]any, len(result.Environments)+len(other.Environments))
		for k, v := range result.Environments {
			envs[k] = v
		}
		for k, v := range other.Environments {
			envs[k] = v
		}
		result.Environments = envs
	}
	if len(other.Reporters) > 0 {
		result.Reporters = other.Reporters
	}
	if len(other.StressProfiles) > 0 {
		profiles := make(map[string]StressProfile, len(result.StressProfiles)+len(other.StressProfiles))
		for k, v := range result.StressProfiles {
			profiles[k] = v
		}
		for k, v := range other.StressProfiles {
			profiles[k] = v
		}
		result.StressProfiles = profiles
	}

	return &result
}

// SaveConfig saves the configuration to a file
func (c *Config) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
