package auth

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter checks whether a request should be allowed based on
// the identity's service tier.
type RateLimiter interface {
	Allow(ctx context.Context, identity *Identity) error
}

// TierConfig holds token bucket settings for a service tier.
type TierConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// DefaultTier is the tier used for identities that carry none.
const DefaultTier = "default"

// TokenBucketLimiter keeps one token bucket per subject and tier in memory.
type TokenBucketLimiter struct {
	tiers    map[string]TierConfig
	fallback TierConfig

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewTokenBucketLimiter creates a limiter with per-tier configuration.
// Tiers without an entry use fallback. A tier whose rate is zero is not
// limited.
func NewTokenBucketLimiter(tiers map[string]TierConfig, fallback TierConfig) *TokenBucketLimiter {
	return &TokenBucketLimiter{
		tiers:    tiers,
		fallback: fallback,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Allow takes one token from the caller's bucket. It returns
// ErrTooManyRequests when the bucket is empty.
func (l *TokenBucketLimiter) Allow(_ context.Context, identity *Identity) error {
	tier := identity.ServiceTier
	if tier == "" {
		tier = DefaultTier
	}

	tc, ok := l.tiers[tier]
	if !ok {
		tc = l.fallback
	}
	if tc.RequestsPerSecond <= 0 {
		return nil
	}

	if !l.get(identity.Subject+":"+tier, tc).Allow() {
		return ErrTooManyRequests
	}
	return nil
}

func (l *TokenBucketLimiter) get(key string, tc TierConfig) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok := l.limiters[key]; ok {
		return lim
	}
	burst := tc.Burst
	if burst <= 0 {
		burst = 1
	}
	lim := rate.NewLimiter(rate.Limit(tc.RequestsPerSecond), burst)
	l.limiters[key] = lim
	return lim
}

// Len returns the number of buckets currently tracked.
func (l *TokenBucketLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}
