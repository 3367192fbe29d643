// Package transport defines the handler contract, middleware chain and
// request lifecycle shared by the fetchbridge transport bindings.
//
// A transport binding (see pkg/transport/http) receives requests from a
// socket-style server, builds immutable Fetch-style requests from them,
// dispatches them to a [Handler], and replays the resulting Fetch-style
// response onto the socket-style response object.
//
// # Handler Contract
//
// [Handler] is the single contract between the transport layer and
// application code. It receives a *fetch.Request and returns a
// *fetch.Response. The context passed to Handle is cancelled when the
// request's cancellation signal fires (the client connection closed), so
// in-flight work such as a downstream fetch is abandoned instead of
// producing output nobody reads.
//
// # Middleware
//
// The middleware chain wraps a Handler with cross-cutting concerns.
// Built-in middleware provides panic recovery, request ID assignment
// (X-Request-ID) and structured logging via log/slog.
//
// # Lifecycle
//
// Each request moves through [StateReceived], [StateBuilt], [StateHandled],
// [StateWritten] and [StateDone], or ends in [StateAborted] when the
// cancellation signal fires before writing completes. Aborting is not an
// error; see [ValidateTransition] and the error taxonomy in errors.go.
package transport
