// Package config handles configuration loading and management for restbench.
//
// It provides functionality for:
//   - Loading configuration from .restbench.json, restbench.json or .restbenchrc
//   - Default configuration values
//   - Named environments and response size limits
package config
