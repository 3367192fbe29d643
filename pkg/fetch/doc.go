// Package fetch defines the Fetch-style HTTP value types that application
// handlers consume and produce.
//
// The types mirror the Fetch API object model rather than net/http: a
// [Request] is immutable once constructed, a [Response] carries a lazily
// produced body stream, and [Headers] is an ordered multi-map that keeps
// every value of a repeated header (set-cookie in particular) as a separate
// entry.
//
// The package has zero external dependencies (Go standard library only) and
// performs no I/O of its own. Bodies are passed through as io.ReadCloser
// values and never buffered.
//
// Core types:
//   - [Headers]: ordered, case-insensitive, append-only multi-map
//   - [HeaderValue]: tagged Single/Multi value as reported by a socket-style server
//   - [Request]: immutable request with absolute URL, optional body and a [Signal]
//   - [Response]: immutable response with status, status text, headers and body
//   - [Signal]: one-shot, broadcast cancellation token
package fetch
