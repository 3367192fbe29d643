package transport

import (
	"context"

	"github.com/rhuss/fetchbridge/pkg/fetch"
)

// Handler consumes a Fetch-style request and produces a Fetch-style
// response. It is supplied by application code and passed to the transport
// binding as a value.
//
// ctx is the request's context: it carries request-scoped values (request
// ID, authenticated identity) and is cancelled when req.Signal() fires.
// Middleware that adds a value passes it on through both ctx and
// req.WithContext, so req.Context() carries the same values.
// Implementations should observe it and stop work once it is done. A
// Handler that ignores it runs to completion and its output is discarded.
type Handler interface {
	Handle(ctx context.Context, req *fetch.Request) (*fetch.Response, error)
}

// HandlerFunc is an adapter that allows using an ordinary function as a
// Handler.
type HandlerFunc func(ctx context.Context, req *fetch.Request) (*fetch.Response, error)

// Handle calls f(ctx, req).
func (f HandlerFunc) Handle(ctx context.Context, req *fetch.Request) (*fetch.Response, error) {
	return f(ctx, req)
}
