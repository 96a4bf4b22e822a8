// Package http is restbench's default transport.
//
// It wraps the standard library's http package with additional features:
//   - Building wire requests from an inherit.EffectiveRequest
//   - Basic and bearer auth
//   - Configurable header timeout, redirects, proxy and TLS verification
//   - Connection timing collected with httptrace
//
// The client never reads the response body. It returns a WireResponse whose
// Body stream is handed to the ingest package.
package http
