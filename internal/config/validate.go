package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dropDatabas3/authkit/internal/validation"
)

// Validate checks every invariant the service relies on at startup.
// All problems are reported together.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	if strings.TrimSpace(c.Session.JWTSecret) == "" {
		add("session: jwt_secret is required")
	}
	switch c.Storage.Driver {
	case "postgres":
		if c.Storage.DSN == "" {
			add("storage: dsn is required for postgres")
		}
	case "sqlite":
	default:
		add("storage: unknown driver %q", c.Storage.Driver)
	}
	switch c.Cache.Kind {
	case "memory":
	case "redis":
		if c.Cache.Redis.Addr == "" {
			add("cache: redis.addr is required when kind is redis")
		}
	default:
		add("cache: unknown kind %q", c.Cache.Kind)
	}
	if c.OAuth.StateTTL <= 0 {
		add("oauth: state_ttl must be positive")
	}
	if _, err := c.OAuth.EncryptionKey(); err != nil {
		add("oauth: %w", err)
	}
	if err := c.OAuth.validateProviders(); err != nil {
		errs = append(errs, err)
	}
	if c.Events.WelcomeEmail && (c.SMTP.Host == "" || c.SMTP.From == "") {
		add("smtp: host and from are required when events.welcome_email is set")
	}
	return errors.Join(errs...)
}

func (o OAuthConfig) validateProviders() error {
	var errs []error
	anyEnabled := false
	check := func(scope string, enabled []string, creds func(string) ProviderCredentials) {
		for _, name := range enabled {
			if !IsKnownProvider(name) {
				errs = append(errs, fmt.Errorf("oauth%s: invalid social login provider %q", scope, name))
				continue
			}
			anyEnabled = true
			if missing := MissingCredentials(name, creds(name)); len(missing) > 0 {
				errs = append(errs, fmt.Errorf("oauth%s: %s requires %s", scope, name, strings.Join(missing, ", ")))
			}
		}
	}
	check("", o.ProvidersEnabled, func(p string) ProviderCredentials { return o.Credentials("", p) })
	for slug, t := range o.Tenants {
		if !validation.ValidTenantSlug(slug) {
			errs = append(errs, fmt.Errorf("oauth: invalid tenant slug %q", slug))
			continue
		}
		if t.ProvidersEnabled == nil {
			continue
		}
		check(" tenant "+slug, t.ProvidersEnabled, func(p string) ProviderCredentials { return o.Credentials(slug, p) })
	}
	if anyEnabled && strings.TrimSpace(o.TokenEncryptionKey) == "" {
		errs = append(errs, errors.New("oauth: token_encryption_key is required when social login providers are enabled"))
	}
	return errors.Join(errs...)
}

// StateKey returns the state-signing key, falling back to the session secret.
func (c *Config) StateKey() []byte {
	if k := strings.TrimSpace(c.OAuth.StateSigningKey); k != "" {
		return []byte(k)
	}
	return []byte(c.Session.JWTSecret)
}
