// Package env interpolates variables into effective requests.
//
// It provides functionality for:
//   - {{name}} substitution from environment and request variables
//   - {{$NAME}} substitution from the process environment
//   - Built-in function calls such as {{uuid()}} and {{timestamp()}}
//   - Loading variables from .env files
//
// Environment variables (from a .env file or the selected config
// environment) take precedence over variables inherited from groups.
package env
