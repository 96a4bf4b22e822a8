package config

// DefaultConfig returns a configuration with default values. Pointer
// fields stay nil so the Get accessors supply their defaults and Merge can
// tell an explicit false from an unset value.
func DefaultConfig() *Config {
	return &Config{
		DefaultEnvironment: "dev",
		Timeout:            30000,
		RetryDelay:         1000,
		MaxRedirects:       10,
		Reporters:          []string{"console"},
		Concurrency:        5,
		InlineLimitKB:      1024,
		HardLimitKB:        IntPtr(102400),
	}
}

// IsDefault returns true if the config matches defaults
func (c *Config) IsDefault() bool {
	d := DefaultConfig()
	return c.DefaultEnvironment == d.DefaultEnvironment &&
		c.Timeout == d.Timeout &&
		c.Retries == d.Retries &&
		c.RetryDelay == d.RetryDelay &&
		c.GetFollowRedirects() == d.GetFollowRedirects() &&
		c.MaxRedirects == d.MaxRedirects &&
		c.GetValidateSSL() == d.GetValidateSSL() &&
		c.Proxy == d.Proxy &&
		len(c.Headers) == 0 &&
		len(c.Environments) == 0 &&
		c.OutputDir == d.OutputDir &&
		c.GetParallel() == d.GetParallel() &&
		c.Concurrency == d.Concurrency &&
		c.GetBail() == d.GetBail() &&
		c.GetVerbose() == d.GetVerbose() &&
		c.GetNoColor() == d.GetNoColor() &&
		c.GetRunScripts() == d.GetRunScripts() &&
		c.Limits() == d.Limits() &&
		c.TempDir == "" &&
		len(c.BinaryContentTypes) == 0 &&
		c.HistoryDB == ""
}
