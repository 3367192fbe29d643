// Package noop provides a no-op authenticator that accepts all requests.
// Used for development and as a default voter in the auth chain.
package noop

import (
	"context"

	"github.com/rhuss/fetchbridge/pkg/auth"
	"github.com/rhuss/fetchbridge/pkg/fetch"
)

// Authenticator always returns Yes with a default anonymous identity.
type Authenticator struct{}

// Authenticate implements auth.Authenticator.
func (a *Authenticator) Authenticate(_ context.Context, _ *fetch.Request) auth.AuthResult {
	return auth.AuthResult{
		Decision: auth.Yes,
		Identity: &auth.Identity{
			Subject:     "anonymous",
			ServiceTier: auth.DefaultTier,
		},
	}
}
