package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their YAML path.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			errs = append(errs, errors.New(formatFieldError(fe)))
		}
	}

	switch c.Handler.Type {
	case "proxy":
		if c.Handler.Proxy.UpstreamURL == "" {
			errs = append(errs, fmt.Errorf("handler.proxy.upstream_url is required when handler.type is \"proxy\""))
		}
	case "static":
		if c.Handler.Static.Root == "" {
			errs = append(errs, fmt.Errorf("handler.static.root is required when handler.type is \"static\""))
		}
	}

	switch c.Auth.Type {
	case "apikey":
		if len(c.Auth.APIKeys) == 0 {
			errs = append(errs, fmt.Errorf("auth.api_keys must not be empty when auth.type is \"apikey\""))
		}
		for i, k := range c.Auth.APIKeys {
			if k.Key == "" {
				errs = append(errs, fmt.Errorf("auth.api_keys[%d]: key or key_file is required", i))
			}
		}
	case "jwt":
		if c.Auth.JWT.JWKSURL == "" {
			errs = append(errs, fmt.Errorf("auth.jwt.jwks_url is required when auth.type is \"jwt\""))
		}
	}

	if len(c.Auth.RequiredScopes) > 0 && c.Auth.Type == "none" {
		errs = append(errs, fmt.Errorf("auth.required_scopes needs auth.type \"apikey\" or \"jwt\""))
	}

	if rl := c.Auth.RateLimit; rl.RequestsPerSecond > 0 && rl.Burst == 0 {
		errs = append(errs, fmt.Errorf("auth.rate_limit.burst must be > 0 when requests_per_second is set"))
	}

	if m := c.Observability.Metrics; m.Enabled && m.Port != 0 && m.Port == c.Server.Port {
		errs = append(errs, fmt.Errorf("observability.metrics.port must differ from server.port (%d)", c.Server.Port))
	}

	return errors.Join(errs...)
}

// formatFieldError renders a validator failure as "path: problem".
func formatFieldError(fe validator.FieldError) string {
	path := strings.TrimPrefix(fe.Namespace(), "Config.")
	param := fe.Param()

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", path)
	case "min":
		return fmt.Sprintf("%s must be at least %s, got %v", path, param, fe.Value())
	case "max":
		return fmt.Sprintf("%s must be at most %s, got %v", path, param, fe.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s, got %q", path, strings.ReplaceAll(param, " ", ", "), fe.Value())
	case "url":
		return fmt.Sprintf("%s must be a valid URL, got %q", path, fe.Value())
	case "startswith":
		return fmt.Sprintf("%s must start with %q", path, param)
	default:
		return fmt.Sprintf("%s failed %s validation", path, fe.Tag())
	}
}
