package transport

import (
	"context"
	"fmt"

	"github.com/rhuss/fetchbridge/pkg/fetch"
)

// Recovery returns middleware that catches panics in the handler and
// converts them to errors wrapping ErrHandlerPanic. The server continues to
// accept new requests after a panic is recovered.
func Recovery() Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, req *fetch.Request) (resp *fetch.Response, retErr error) {
			defer func() {
				if r := recover(); r != nil {
					resp = nil
					retErr = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
				}
			}()
			return next.Handle(ctx, req)
		})
	}
}
