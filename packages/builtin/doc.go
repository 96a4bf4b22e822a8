// Package builtin provides the functions available inside {{...}}
// expressions.
//
// Available functions:
//   - uuid(): random UUID v4
//   - now(): current UTC time in RFC 3339
//   - timestamp(), timestampMs(): Unix time in seconds or milliseconds
//   - date(layout): current UTC date formatted with a Go layout
//   - random(min, max): random integer in [min, max]
//   - randomString(length): random alphanumeric string
//   - base64(value), urlEncode(value), sha256(value)
package builtin
