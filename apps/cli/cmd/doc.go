// Package cmd implements the restbench CLI commands using Cobra.
//
// Available commands:
//   - run: Execute request collections and evaluate their checks
//   - stress: Replay a collection under load
//   - history: Inspect and prune recorded runs
//   - validate: Check collection files without executing them
//   - list: Display the requests of a collection
//   - init: Create a config file and an example collection
//   - version: Show restbench version information
//
// Most flags can also be set through RESTBENCH_* environment variables.
package cmd
