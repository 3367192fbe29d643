package auth

import (
	"context"

	"github.com/rhuss/fetchbridge/pkg/fetch"
)

type identityCtxKey struct{}

// ContextWithIdentity returns a copy of ctx that carries id.
func ContextWithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey{}, id)
}

// IdentityFromContext returns the identity stored by the auth middleware,
// or nil for bypassed and unauthenticated requests.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityCtxKey{}).(*Identity)
	return id
}

// attachIdentity stores id in both the handler context and the request's
// own context so either lookup sees it.
func attachIdentity(ctx context.Context, req *fetch.Request, id *Identity) (context.Context, *fetch.Request) {
	ctx = ContextWithIdentity(ctx, id)
	return ctx, req.WithContext(ContextWithIdentity(req.Context(), id))
}
