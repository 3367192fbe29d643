package transport

import (
	"context"

	"github.com/google/uuid"

	"github.com/rhuss/fetchbridge/pkg/fetch"
)

// RequestIDHeader is the header a client or proxy uses to supply a request ID.
const RequestIDHeader = "x-request-id"

// RequestID returns middleware that assigns a unique request ID to each
// request. An ID already present in the context is kept; otherwise the
// first X-Request-ID header of the request is used, and if there is none a
// new random UUID is generated.
//
// The request ID is stored in both the handler context and req.Context(),
// and can be retrieved from either with RequestIDFromContext. It is also added to the response as an X-Request-ID
// header unless the handler already set one.
func RequestID() Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, req *fetch.Request) (*fetch.Response, error) {
			id := RequestIDFromContext(ctx)
			if id == "" {
				if v, ok := req.Headers().First(RequestIDHeader); ok && v != "" {
					id = v
				} else {
					id = uuid.NewString()
				}
				ctx = ContextWithRequestID(ctx, id)
				req = req.WithContext(ctx)
			}

			resp, err := next.Handle(ctx, req)
			if resp != nil && !resp.Headers().Has(RequestIDHeader) {
				resp = resp.WithHeader(RequestIDHeader, id)
			}
			return resp, err
		})
	}
}
