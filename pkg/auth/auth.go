package auth

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/rhuss/fetchbridge/pkg/fetch"
)

// AuthDecision represents the three possible outcomes of authentication.
type AuthDecision int

const (
	// Yes means credentials are valid. The chain stops and the identity is used.
	Yes AuthDecision = iota

	// No means credentials are present but invalid. The chain stops and the
	// request is rejected.
	No

	// Abstain means this authenticator cannot handle the credentials type.
	// The chain continues to the next authenticator.
	Abstain
)

// AuthResult carries the outcome of an authentication attempt.
type AuthResult struct {
	Decision AuthDecision
	Identity *Identity // populated only when Decision == Yes
	Err      error     // populated only when Decision == No
}

// Identity represents an authenticated caller.
type Identity struct {
	// Subject is the unique identifier (required, non-empty).
	Subject string

	// ServiceTier determines rate limits and priority.
	ServiceTier string

	// Scopes lists the authorization scopes granted.
	Scopes []string
}

// MissingScopes returns the entries of required the identity was not
// granted, in order. A nil identity is missing all of them.
func (id *Identity) MissingScopes(required []string) []string {
	var missing []string
	for _, want := range required {
		if id == nil || !slices.Contains(id.Scopes, want) {
			missing = append(missing, want)
		}
	}
	return missing
}

// Authenticator examines request credentials and returns a three-outcome vote.
type Authenticator interface {
	Authenticate(ctx context.Context, req *fetch.Request) AuthResult
}

// BearerToken extracts the token of an "Authorization: Bearer" header.
// ok is false when the header is absent or uses another scheme; an empty
// token with ok true means the scheme was present without credentials.
func BearerToken(req *fetch.Request) (token string, ok bool) {
	header, present := req.Headers().First("authorization")
	if !present || header == "" {
		return "", false
	}
	scheme, rest, _ := strings.Cut(header, " ")
	if !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	return strings.TrimSpace(rest), true
}

// Sentinel errors.
var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("access denied")
	ErrTooManyRequests = errors.New("rate limit exceeded")
)

// AuthChain evaluates authenticators in order using three-outcome voting.
type AuthChain struct {
	// Authenticators are evaluated left to right.
	Authenticators []Authenticator

	// DefaultDecision is used when all authenticators abstain.
	// Use Yes for development (NoOp behavior) or No for production.
	DefaultDecision AuthDecision
}

// Authenticate runs the chain. Stops on the first Yes or No.
// If all abstain, returns the default decision.
func (c *AuthChain) Authenticate(ctx context.Context, req *fetch.Request) AuthResult {
	for _, authn := range c.Authenticators {
		result := authn.Authenticate(ctx, req)
		if result.Decision != Abstain {
			return result
		}
	}

	// All abstained: use default.
	if c.DefaultDecision == Yes {
		return AuthResult{
			Decision: Yes,
			Identity: &Identity{Subject: "anonymous", ServiceTier: "default"},
		}
	}

	return AuthResult{
		Decision: No,
		Err:      ErrUnauthenticated,
	}
}
