// Package runner executes restbench collections.
//
// It provides functionality for:
//   - Running every request of a collection tree depth-first
//   - Resolving inherited configuration and interpolating variables
//   - Ingesting responses and evaluating declarative checks
//   - Parallel execution with bounded concurrency
//   - Request retry handling
//   - Running pre- and post-request shell scripts
//   - Publishing results to a ResultQueue drained in batches
//
// Sequential runs honour bail (stop on first failure). Parallel runs use an
// errgroup with a concurrency limit.
package runner
