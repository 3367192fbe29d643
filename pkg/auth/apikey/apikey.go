// Package apikey provides an API key authenticator that validates
// bearer tokens against a static key store using SHA-256 hashing
// and constant-time comparison.
package apikey

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"slices"

	"github.com/rhuss/fetchbridge/pkg/auth"
	"github.com/rhuss/fetchbridge/pkg/config"
	"github.com/rhuss/fetchbridge/pkg/fetch"
)

type keyEntry struct {
	hash     [32]byte
	identity auth.Identity
}

// Authenticator validates bearer tokens against a static key store.
type Authenticator struct {
	keys []keyEntry
}

// RawKeyEntry is the configuration format for API keys.
type RawKeyEntry struct {
	Key      string
	Identity auth.Identity
}

// New creates an API key authenticator from a list of raw keys and identities.
// Keys are hashed immediately; plaintext keys are not stored.
func New(entries []RawKeyEntry) *Authenticator {
	a := &Authenticator{}
	for _, e := range entries {
		a.keys = append(a.keys, keyEntry{
			hash:     sha256.Sum256([]byte(e.Key)),
			identity: e.Identity,
		})
	}
	return a
}

// FromConfig converts configured key entries.
func FromConfig(keys []config.APIKeyConfig) *Authenticator {
	entries := make([]RawKeyEntry, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, RawKeyEntry{
			Key: k.Key,
			Identity: auth.Identity{
				Subject:     k.Subject,
				ServiceTier: k.ServiceTier,
				Scopes:      k.Scopes,
			},
		})
	}
	return New(entries)
}

// Authenticate extracts the bearer token and validates it.
// Returns Yes if valid, No if bearer token present but invalid,
// Abstain if no Authorization header or not a Bearer token.
func (a *Authenticator) Authenticate(_ context.Context, req *fetch.Request) auth.AuthResult {
	token, ok := auth.BearerToken(req)
	if !ok {
		return auth.AuthResult{Decision: auth.Abstain}
	}
	if token == "" {
		return auth.AuthResult{Decision: auth.No, Err: auth.ErrUnauthenticated}
	}

	tokenHash := sha256.Sum256([]byte(token))

	// All entries are compared regardless of an earlier match.
	var match *auth.Identity
	for i := range a.keys {
		if subtle.ConstantTimeCompare(tokenHash[:], a.keys[i].hash[:]) == 1 && match == nil {
			id := a.keys[i].identity
			id.Scopes = slices.Clone(id.Scopes)
			match = &id
		}
	}
	if match != nil {
		return auth.AuthResult{Decision: auth.Yes, Identity: match}
	}

	return auth.AuthResult{Decision: auth.No, Err: auth.ErrUnauthenticated}
}
