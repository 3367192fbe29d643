package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix shared by all environment overrides.
const EnvPrefix = "FETCHBRIDGE_"

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. .env in the working directory (never overrides the real environment)
//  3. YAML config file (explicit path, FETCHBRIDGE_CONFIG env, ./config.yaml, /etc/fetchbridge/config.yaml)
//  4. FETCHBRIDGE_* environment variable overrides
//  5. File reference resolution (_file suffix)
//  6. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	// A missing .env is the common case.
	_ = godotenv.Load(".env")

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. FETCHBRIDGE_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/fetchbridge/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv(EnvPrefix + "CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"config.yaml",
		"/etc/fetchbridge/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps FETCHBRIDGE_* environment variables to config
// fields. Malformed numeric or duration values are reported rather than
// silently ignored.
func applyEnvOverrides(cfg *Config) error {
	e := envReader{}

	e.setInt("PORT", &cfg.Server.Port)
	e.setDuration("READ_TIMEOUT", &cfg.Server.ReadTimeout)
	e.setDuration("WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	e.setDuration("SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	e.setInt64("MAX_BODY_SIZE", &cfg.Server.MaxBodySize)

	e.setString("DEFAULT_PROTO", &cfg.Adapter.DefaultProto)

	e.setString("HANDLER", &cfg.Handler.Type)
	e.setString("UPSTREAM_URL", &cfg.Handler.Proxy.UpstreamURL)
	e.setDuration("UPSTREAM_TIMEOUT", &cfg.Handler.Proxy.Timeout)
	e.setString("UPSTREAM_API_KEY", &cfg.Handler.Proxy.APIKey)
	e.setString("STATIC_ROOT", &cfg.Handler.Static.Root)

	e.setString("AUTH_TYPE", &cfg.Auth.Type)
	e.setString("JWT_ISSUER", &cfg.Auth.JWT.Issuer)
	e.setString("JWT_AUDIENCE", &cfg.Auth.JWT.Audience)
	e.setString("JWKS_URL", &cfg.Auth.JWT.JWKSURL)
	e.setFloat("RATE_LIMIT_RPS", &cfg.Auth.RateLimit.RequestsPerSecond)
	e.setInt("RATE_LIMIT_BURST", &cfg.Auth.RateLimit.Burst)
	e.setList("REQUIRED_SCOPES", &cfg.Auth.RequiredScopes)

	e.setBool("METRICS_ENABLED", &cfg.Observability.Metrics.Enabled)
	e.setString("METRICS_PATH", &cfg.Observability.Metrics.Path)
	e.setInt("METRICS_PORT", &cfg.Observability.Metrics.Port)

	e.setString("LOG_FORMAT", &cfg.Logging.Format)
	e.setString("LOG_LEVEL", &cfg.Logging.Level)
	e.setString("DEBUG", &cfg.Logging.Debug)

	// FETCHBRIDGE_API_KEYS: JSON array of API key configs.
	if v := os.Getenv(EnvPrefix + "API_KEYS"); v != "" {
		keys, err := parseAPIKeysJSON(v)
		if err != nil {
			e.errs = append(e.errs, err)
		} else if len(keys) > 0 {
			cfg.Auth.APIKeys = keys
		}
	}

	return e.err()
}

// envReader collects parse failures while reading prefixed variables.
type envReader struct {
	errs []error
}

func (e *envReader) lookup(name string) (string, bool) {
	v := os.Getenv(EnvPrefix + name)
	return v, v != ""
}

func (e *envReader) fail(name string, err error) {
	e.errs = append(e.errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
}

func (e *envReader) setString(name string, dst *string) {
	if v, ok := e.lookup(name); ok {
		*dst = v
	}
}

// setList splits a comma-separated value, dropping empty entries.
func (e *envReader) setList(name string, dst *[]string) {
	v, ok := e.lookup(name)
	if !ok {
		return
	}
	var items []string
	for item := range strings.SplitSeq(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	*dst = items
}

func (e *envReader) setInt(name string, dst *int) {
	if v, ok := e.lookup(name); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.fail(name, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) setInt64(name string, dst *int64) {
	if v, ok := e.lookup(name); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			e.fail(name, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) setFloat(name string, dst *float64) {
	if v, ok := e.lookup(name); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.fail(name, err)
			return
		}
		*dst = f
	}
}

func (e *envReader) setBool(name string, dst *bool) {
	if v, ok := e.lookup(name); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.fail(name, err)
			return
		}
		*dst = b
	}
}

func (e *envReader) setDuration(name string, dst *time.Duration) {
	if v, ok := e.lookup(name); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.fail(name, err)
			return
		}
		*dst = d
	}
}

func (e *envReader) err() error {
	return errors.Join(e.errs...)
}

// parseAPIKeysJSON parses a JSON array of API key configurations.
func parseAPIKeysJSON(jsonStr string) ([]APIKeyConfig, error) {
	var keys []APIKeyConfig
	if err := json.Unmarshal([]byte(jsonStr), &keys); err != nil {
		return nil, fmt.Errorf("parsing API keys JSON: %w", err)
	}
	return keys, nil
}

// resolveFileReferences reads _file fields and populates the corresponding value fields.
// For each field ending in _file, if the value field is empty and the file field is set,
// the file is read, whitespace is trimmed, and the value field is populated.
func resolveFileReferences(cfg *Config) error {
	// handler.proxy.api_key_file -> handler.proxy.api_key
	if cfg.Handler.Proxy.APIKeyFile != "" && cfg.Handler.Proxy.APIKey == "" {
		val, err := readSecretFile(cfg.Handler.Proxy.APIKeyFile)
		if err != nil {
			return fmt.Errorf("handler.proxy.api_key_file: %w", err)
		}
		cfg.Handler.Proxy.APIKey = val
	}

	// auth.api_keys[*].key_file -> auth.api_keys[*].key
	for i := range cfg.Auth.APIKeys {
		if cfg.Auth.APIKeys[i].KeyFile != "" && cfg.Auth.APIKeys[i].Key == "" {
			val, err := readSecretFile(cfg.Auth.APIKeys[i].KeyFile)
			if err != nil {
				return fmt.Errorf("auth.api_keys[%d].key_file: %w", i, err)
			}
			cfg.Auth.APIKeys[i].Key = val
		}
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// Marshal renders cfg as YAML with secrets redacted.
func Marshal(cfg *Config) ([]byte, error) {
	out := *cfg
	if out.Handler.Proxy.APIKey != "" {
		out.Handler.Proxy.APIKey = redacted
	}
	out.Auth.APIKeys = nil
	for _, k := range cfg.Auth.APIKeys {
		if k.Key != "" {
			k.Key = redacted
		}
		out.Auth.APIKeys = append(out.Auth.APIKeys, k)
	}
	return yaml.Marshal(&out)
}

const redacted = "<redacted>"
