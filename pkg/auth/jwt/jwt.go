// Package jwt authenticates bearer tokens as RSA-signed JWTs whose keys are
// published at a JWKS endpoint.
package jwt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/rhuss/fetchbridge/pkg/auth"
	"github.com/rhuss/fetchbridge/pkg/config"
	"github.com/rhuss/fetchbridge/pkg/fetch"
)

var (
	errEmptyToken = errors.New("empty bearer token")
	errMissingKID = errors.New("token has no kid header")
)

// Config holds the JWT authenticator configuration.
type Config struct {
	// Issuer and Audience are checked against iss and aud when set.
	Issuer   string
	Audience string

	// JWKSURL serves the verification keys.
	JWKSURL string

	// Claim names. Defaults: "sub", "scope" and "tier". The scopes claim may
	// be a space-separated string or an array of strings.
	UserClaim   string
	ScopesClaim string
	TierClaim   string

	// CacheTTL is how long fetched keys are trusted. Default: 1 hour.
	CacheTTL time.Duration

	// HTTPClient fetches the key set. Default: http.DefaultClient.
	HTTPClient *http.Client
}

func (c Config) withDefaults() Config {
	if c.UserClaim == "" {
		c.UserClaim = "sub"
	}
	if c.ScopesClaim == "" {
		c.ScopesClaim = "scope"
	}
	if c.TierClaim == "" {
		c.TierClaim = "tier"
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = time.Hour
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	return c
}

// Authenticator validates JWT bearer tokens.
type Authenticator struct {
	cfg    Config
	parser *jwtlib.Parser
	keys   *keySet
}

// New creates a JWT authenticator.
func New(cfg Config) *Authenticator {
	cfg = cfg.withDefaults()

	opts := []jwtlib.ParserOption{jwtlib.WithValidMethods([]string{"RS256", "RS384", "RS512"})}
	if cfg.Issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwtlib.WithAudience(cfg.Audience))
	}

	return &Authenticator{
		cfg:    cfg,
		parser: jwtlib.NewParser(opts...),
		keys:   newKeySet(cfg.JWKSURL, cfg.HTTPClient, cfg.CacheTTL),
	}
}

// FromConfig builds a JWT authenticator from the auth.jwt config section.
func FromConfig(cfg config.JWTConfig) *Authenticator {
	return New(Config{
		Issuer:      cfg.Issuer,
		Audience:    cfg.Audience,
		JWKSURL:     cfg.JWKSURL,
		ScopesClaim: cfg.ScopesClaim,
		TierClaim:   cfg.TierClaim,
		CacheTTL:    cfg.JWKSCacheTTL,
	})
}

// Authenticate abstains without a bearer token, votes No for a token that
// fails verification or lacks a subject, and Yes otherwise.
func (a *Authenticator) Authenticate(ctx context.Context, req *fetch.Request) auth.AuthResult {
	raw, ok := auth.BearerToken(req)
	if !ok {
		return auth.AuthResult{Decision: auth.Abstain}
	}
	if raw == "" {
		return auth.AuthResult{Decision: auth.No, Err: errEmptyToken}
	}

	claims := jwtlib.MapClaims{}
	if _, err := a.parser.ParseWithClaims(raw, claims, a.keyFunc(ctx)); err != nil {
		slog.Debug("rejecting bearer token", "error", err)
		return auth.AuthResult{Decision: auth.No, Err: fmt.Errorf("invalid JWT: %w", err)}
	}

	id, err := a.identity(claims)
	if err != nil {
		return auth.AuthResult{Decision: auth.No, Err: err}
	}
	return auth.AuthResult{Decision: auth.Yes, Identity: id}
}

func (a *Authenticator) keyFunc(ctx context.Context) jwtlib.Keyfunc {
	return func(t *jwtlib.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errMissingKID
		}
		return a.keys.key(ctx, kid)
	}
}

// identity maps verified claims onto an auth.Identity.
func (a *Authenticator) identity(claims jwtlib.MapClaims) (*auth.Identity, error) {
	subject, _ := claims[a.cfg.UserClaim].(string)
	if subject == "" {
		return nil, fmt.Errorf("JWT missing %q claim", a.cfg.UserClaim)
	}
	tier, _ := claims[a.cfg.TierClaim].(string)
	return &auth.Identity{
		Subject:     subject,
		ServiceTier: tier,
		Scopes:      scopeList(claims[a.cfg.ScopesClaim]),
	}, nil
}

func scopeList(v any) []string {
	var out []string
	switch v := v.(type) {
	case string:
		out = strings.Fields(v)
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
