package auth

import (
	"context"
	"log/slog"
	"strings"

	"github.com/rhuss/fetchbridge/pkg/fetch"
	"github.com/rhuss/fetchbridge/pkg/observability"
	"github.com/rhuss/fetchbridge/pkg/transport"
)

// Options configures the auth middleware.
type Options struct {
	// Limiter enforces per-identity rate limits. Nil disables limiting.
	Limiter RateLimiter

	// BypassPaths skip authentication, scope checks and rate limiting.
	BypassPaths []string

	// RequiredScopes must all be granted to the identity. Callers missing
	// any of them get 403 before the rate limiter is consulted.
	RequiredScopes []string
}

// Middleware creates transport middleware from an AuthChain. It checks the
// bypass list, runs authentication, enforces required scopes and rate
// limits, then hands the identity to the next handler through both the
// handler context and the request's own context. Rejections are returned
// as JSON error responses.
func Middleware(chain *AuthChain, opts Options) transport.Middleware {
	bypass := make(map[string]bool, len(opts.BypassPaths))
	for _, p := range opts.BypassPaths {
		bypass[p] = true
	}

	return func(next transport.Handler) transport.Handler {
		return transport.HandlerFunc(func(ctx context.Context, req *fetch.Request) (*fetch.Response, error) {
			path := req.URL().Path
			if bypass[path] {
				return next.Handle(ctx, req)
			}

			result := chain.Authenticate(ctx, req)

			if result.Decision != Yes || result.Identity == nil {
				slog.Warn("authentication failed",
					"path", path,
					"request_id", transport.RequestIDFromContext(ctx),
					"error", result.Err,
				)
				return transport.NewAPIErrorResponse(
					transport.NewUnauthorizedError("authentication required"),
				).WithHeader("www-authenticate", `Bearer realm="fetchbridge"`), nil
			}

			id := result.Identity
			if id.Subject == "" {
				slog.Error("authenticator returned identity with empty subject")
				return transport.NewAPIErrorResponse(
					transport.NewServerError("internal authentication error"),
				), nil
			}

			if missing := id.MissingScopes(opts.RequiredScopes); len(missing) > 0 {
				slog.Warn("missing required scopes",
					"subject", id.Subject,
					"missing", missing,
					"request_id", transport.RequestIDFromContext(ctx),
				)
				return transport.NewAPIErrorResponse(
					transport.NewForbiddenError("missing scope: " + strings.Join(missing, " ")),
				), nil
			}

			slog.Debug("authentication succeeded", "subject", id.Subject, "path", path)

			if opts.Limiter != nil {
				if err := opts.Limiter.Allow(ctx, id); err != nil {
					slog.Warn("rate limit exceeded",
						"subject", id.Subject,
						"tier", id.ServiceTier,
					)
					observability.RateLimitRejectedTotal.WithLabelValues(tierLabel(id)).Inc()
					return transport.NewAPIErrorResponse(
						transport.NewRateLimitError("rate limit exceeded"),
					), nil
				}
			}

			ctx, req = attachIdentity(ctx, req, id)
			return next.Handle(ctx, req)
		})
	}
}

func tierLabel(id *Identity) string {
	if id.ServiceTier == "" {
		return DefaultTier
	}
	return id.ServiceTier
}

// DefaultBypassPaths lists request paths that skip authentication.
var DefaultBypassPaths = []string{"/healthz", "/readyz"}
