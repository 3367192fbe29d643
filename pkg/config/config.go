// Package config provides unified configuration for the fetchbridge server.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. .env file in the working directory (existing environment wins)
//  3. YAML config file (discovered or explicitly specified)
//  4. Environment variable overrides (FETCHBRIDGE_ prefix)
//  5. File reference resolution (_file suffix fields)
//  6. Validation
package config

import "time"

// Config holds all configuration for the fetchbridge server.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Adapter       AdapterConfig       `yaml:"adapter"`
	Handler       HandlerConfig       `yaml:"handler"`
	Auth          AuthConfig          `yaml:"auth"`
	Observability ObservabilityConfig `yaml:"observability"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port" validate:"min=1,max=65535"`   // default: 8080
	ReadTimeout     time.Duration `yaml:"read_timeout" validate:"min=0"`     // default: 0 (none)
	WriteTimeout    time.Duration `yaml:"write_timeout" validate:"min=0"`    // default: 0 (none)
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"min=0"` // default: 30s
	MaxBodySize     int64         `yaml:"max_body_size" validate:"min=0"`    // default: 10 MiB, 0 disables
}

// AdapterConfig holds request translation settings.
type AdapterConfig struct {
	// DefaultProto is used when x-forwarded-proto is absent.
	DefaultProto string `yaml:"default_proto" validate:"oneof=http https"` // default: "https"
}

// HandlerConfig selects the application handler served behind the adapter.
type HandlerConfig struct {
	Type   string       `yaml:"type" validate:"oneof=echo proxy static"` // default: "echo"
	Proxy  ProxyConfig  `yaml:"proxy"`
	Static StaticConfig `yaml:"static"`
}

// ProxyConfig holds settings for the proxy handler.
type ProxyConfig struct {
	UpstreamURL string        `yaml:"upstream_url" validate:"omitempty,url"`
	Timeout     time.Duration `yaml:"timeout" validate:"min=0"`
	APIKey      string        `yaml:"api_key"`      // sent upstream as a Bearer token
	APIKeyFile  string        `yaml:"api_key_file"` // _file variant for api_key
}

// StaticConfig holds settings for the static file handler.
type StaticConfig struct {
	Root  string `yaml:"root"`
	Index string `yaml:"index"` // default: "index.html"
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	Type           string          `yaml:"type" validate:"oneof=none apikey jwt"` // default: "none"
	APIKeys        []APIKeyConfig  `yaml:"api_keys" validate:"dive"`
	JWT            JWTConfig       `yaml:"jwt"`
	RateLimit      RateLimitConfig `yaml:"rate_limit"`
	RequiredScopes []string        `yaml:"required_scopes" validate:"dive,required"`
}

// APIKeyConfig describes a single API key entry.
type APIKeyConfig struct {
	Key         string   `yaml:"key" json:"key"`
	KeyFile     string   `yaml:"key_file" json:"key_file"` // _file variant for key
	Subject     string   `yaml:"subject" json:"subject" validate:"required"`
	ServiceTier string   `yaml:"service_tier" json:"service_tier"`
	Scopes      []string `yaml:"scopes" json:"scopes"`
}

// JWTConfig holds JWT/OIDC validation settings.
type JWTConfig struct {
	Issuer       string        `yaml:"issuer"`
	Audience     string        `yaml:"audience"`
	JWKSURL      string        `yaml:"jwks_url" validate:"omitempty,url"`
	JWKSCacheTTL time.Duration `yaml:"jwks_cache_ttl" validate:"min=0"` // default: 1h
	ScopesClaim  string        `yaml:"scopes_claim"`
	TierClaim    string        `yaml:"tier_claim"`
}

// RateLimitConfig holds per-subject token bucket settings. A zero rate
// disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64              `yaml:"requests_per_second" validate:"min=0"`
	Burst             int                  `yaml:"burst" validate:"min=0"`
	Tiers             map[string]TierLimit `yaml:"tiers" validate:"dive"`
}

// TierLimit overrides the rate limit for one service tier.
type TierLimit struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"min=0"`
	Burst             int     `yaml:"burst" validate:"min=0"`
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`                                // default: true
	Path    string `yaml:"path" validate:"omitempty,startswith=/"` // default: "/metrics"
	Port    int    `yaml:"port" validate:"min=0,max=65535"`        // 0 serves metrics on the main port
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`                                    // default: "INFO"
	Format string `yaml:"format" validate:"oneof=text json pretty"` // default: "text"
	Debug  string `yaml:"debug"`                                    // comma-separated debug categories
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ShutdownTimeout: 30 * time.Second,
			MaxBodySize:     10 << 20,
		},
		Adapter: AdapterConfig{
			DefaultProto: "https",
		},
		Handler: HandlerConfig{
			Type: "echo",
			Static: StaticConfig{
				Index: "index.html",
			},
		},
		Auth: AuthConfig{
			Type: "none",
			JWT: JWTConfig{
				JWKSCacheTTL: time.Hour,
			},
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
		},
	}
}
