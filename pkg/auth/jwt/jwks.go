package jwt

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	// jwksFetchTimeout bounds one key set download. The download is shared
	// by every waiting request, so it does not inherit any one request's
	// deadline.
	jwksFetchTimeout = 10 * time.Second

	// maxJWKSSize caps the key set document.
	maxJWKSSize = 1 << 20
)

var errUnknownKey = errors.New("signing key not in key set")

// keySet caches the RSA verification keys of a JWKS endpoint by key ID.
type keySet struct {
	url    string
	client *http.Client
	ttl    time.Duration

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time

	refreshes singleflight.Group
}

func newKeySet(url string, client *http.Client, ttl time.Duration) *keySet {
	return &keySet{url: url, client: client, ttl: ttl}
}

// key returns the verification key for kid. A stale set or an unknown kid
// triggers a refresh, which concurrent callers share. A caller whose ctx
// ends stops waiting without cancelling the shared download.
func (s *keySet) key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	if k, ok := s.cached(kid); ok {
		return k, nil
	}

	ch := s.refreshes.DoChan("refresh", func() (any, error) {
		if k, ok := s.cached(kid); ok {
			// Another flight finished between our miss and this one.
			return map[string]*rsa.PublicKey{kid: k}, nil
		}
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), jwksFetchTimeout)
		defer cancel()
		return s.refresh(fetchCtx)
	})

	select {
	case <-ctx.Done():
		return nil, context.Cause(ctx)
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		k, ok := res.Val.(map[string]*rsa.PublicKey)[kid]
		if !ok {
			return nil, fmt.Errorf("%w: kid %q", errUnknownKey, kid)
		}
		return k, nil
	}
}

func (s *keySet) cached(kid string) (*rsa.PublicKey, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if time.Since(s.fetchedAt) >= s.ttl {
		return nil, false
	}
	k, ok := s.keys[kid]
	return k, ok
}

// refresh downloads the key set and replaces the cache. Keys that are not
// RSA signing keys, or that fail to decode, are skipped.
func (s *keySet) refresh(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("building JWKS request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching JWKS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching JWKS: status %d", resp.StatusCode)
	}

	var doc struct {
		Keys []jwk `json:"keys"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJWKSSize)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding JWKS: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kty != "RSA" || (k.Use != "" && k.Use != "sig") {
			continue
		}
		pub, err := k.rsaPublicKey()
		if err != nil {
			slog.Warn("skipping JWKS key", "kid", k.Kid, "error", err)
			continue
		}
		keys[k.Kid] = pub
	}

	s.mu.Lock()
	s.keys = keys
	s.fetchedAt = time.Now()
	s.mu.Unlock()

	slog.Debug("JWKS refreshed", "url", s.url, "keys", len(keys))
	return keys, nil
}

// jwk is one entry of a JWKS document. Only the RSA members are decoded.
type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func (k jwk) rsaPublicKey() (*rsa.PublicKey, error) {
	n, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("modulus: %w", err)
	}
	e, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("exponent: %w", err)
	}
	exp := new(big.Int).SetBytes(e)
	if !exp.IsInt64() || exp.Int64() < 2 || exp.Int64() > 1<<31-1 {
		return nil, fmt.Errorf("exponent out of range")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(n), E: int(exp.Int64())}, nil
}
