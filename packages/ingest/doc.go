// Package ingest turns a raw wire response into a normalized Response.
//
// It provides functionality for:
//   - Classifying bodies as text, binary or server-sent events
//   - Enforcing an inline display limit and a hard download limit
//   - Streaming binary and oversized text bodies into temporary files
//   - Decoding text with the charset declared in the Content-Type
//   - Reading event streams through a per-event callback
//   - Cooperative cancellation between fixed-size chunks
//
// Ingest never returns an error. Size limits, truncated bodies and
// cancellation are recorded on the Response so a batch run can carry on
// with the next request. Temporary files are removed on every failure path.
package ingest
