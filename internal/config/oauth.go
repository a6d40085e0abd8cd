package config

import (
	"encoding/base64"
	"fmt"
	"slices"
	"strings"
	"time"
)

// DefaultStateTTL bounds how long an authorize/callback round-trip may take.
const DefaultStateTTL = 10 * time.Minute

// Provider names. The set is closed.
const (
	ProviderGoogle = "google"
	ProviderGitHub = "github"
	ProviderApple  = "apple"
)

// ProviderNames lists every supported provider in display order.
var ProviderNames = []string{ProviderGoogle, ProviderGitHub, ProviderApple}

// DisplayNames maps provider names to human-readable labels.
var DisplayNames = map[string]string{
	ProviderGoogle: "Google",
	ProviderGitHub: "GitHub",
	ProviderApple:  "Apple",
}

// OAuthConfig holds social login settings. Per-tenant entries in Tenants
// override the top-level credentials field by field.
type OAuthConfig struct {
	ProvidersEnabled   []string      `yaml:"providers_enabled" env:"PROVIDERS" envSeparator:","`
	StateTTL           time.Duration `yaml:"state_ttl" env:"STATE_TTL"`
	HTTPTimeout        time.Duration `yaml:"http_timeout" env:"HTTP_TIMEOUT"`
	TokenEncryptionKey string        `yaml:"token_encryption_key" env:"TOKEN_ENCRYPTION_KEY"`
	StateSigningKey    string        `yaml:"state_signing_key" env:"STATE_SIGNING_KEY"`

	Google ProviderCredentials `yaml:"google" envPrefix:"GOOGLE_"`
	GitHub ProviderCredentials `yaml:"github" envPrefix:"GITHUB_"`
	Apple  ProviderCredentials `yaml:"apple" envPrefix:"APPLE_"`

	Tenants map[string]TenantOAuth `yaml:"tenants"`
}

// ProviderCredentials is the credential tuple for one provider. Google and
// GitHub use ClientID and ClientSecret; Apple uses ClientID, TeamID, KeyID
// and PrivateKey (PEM, literal "\n" sequences allowed).
type ProviderCredentials struct {
	ClientID     string   `yaml:"client_id" env:"CLIENT_ID"`
	ClientSecret string   `yaml:"client_secret" env:"CLIENT_SECRET"`
	TeamID       string   `yaml:"team_id" env:"TEAM_ID"`
	KeyID        string   `yaml:"key_id" env:"KEY_ID"`
	PrivateKey   string   `yaml:"private_key" env:"PRIVATE_KEY"`
	Scopes       []string `yaml:"scopes" env:"SCOPES" envSeparator:","`
}

// TenantOAuth overrides provider settings for one tenant.
type TenantOAuth struct {
	ProvidersEnabled []string             `yaml:"providers_enabled"`
	Google           *ProviderCredentials `yaml:"google"`
	GitHub           *ProviderCredentials `yaml:"github"`
	Apple            *ProviderCredentials `yaml:"apple"`
}

// MissingCredentials returns the credential fields that name still needs.
// Unknown providers report nil; callers check IsKnownProvider first.
func MissingCredentials(name string, c ProviderCredentials) []string {
	var missing []string
	need := func(v, field string) {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, field)
		}
	}
	switch name {
	case ProviderGoogle, ProviderGitHub:
		need(c.ClientID, "client_id")
		need(c.ClientSecret, "client_secret")
	case ProviderApple:
		need(c.ClientID, "client_id")
		need(c.TeamID, "team_id")
		need(c.KeyID, "key_id")
		need(c.PrivateKey, "private_key")
	}
	return missing
}

// IsKnownProvider reports whether name is one of ProviderNames.
func IsKnownProvider(name string) bool { return slices.Contains(ProviderNames, name) }

// Credentials returns the effective credentials of provider for tenant.
func (o OAuthConfig) Credentials(tenant, provider string) ProviderCredentials {
	var base ProviderCredentials
	switch provider {
	case ProviderGoogle:
		base = o.Google
	case ProviderGitHub:
		base = o.GitHub
	case ProviderApple:
		base = o.Apple
	}
	t, ok := o.Tenants[tenant]
	if !ok {
		return base
	}
	var over *ProviderCredentials
	switch provider {
	case ProviderGoogle:
		over = t.Google
	case ProviderGitHub:
		over = t.GitHub
	case ProviderApple:
		over = t.Apple
	}
	if over == nil {
		return base
	}
	return base.merge(*over)
}

// Enabled reports whether provider is switched on for tenant.
func (o OAuthConfig) Enabled(tenant, provider string) bool {
	if t, ok := o.Tenants[tenant]; ok && t.ProvidersEnabled != nil {
		return slices.Contains(t.ProvidersEnabled, provider)
	}
	return slices.Contains(o.ProvidersEnabled, provider)
}

// EncryptionKey decodes TokenEncryptionKey. An empty key yields nil.
func (o OAuthConfig) EncryptionKey() ([]byte, error) {
	return DecodeKey(o.TokenEncryptionKey)
}

// DecodeKey decodes a base64 (standard or URL alphabet) 32-byte key.
func DecodeKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var (
		b   []byte
		err error
	)
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding} {
		if b, err = enc.DecodeString(s); err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("token encryption key must be valid base64: %w", err)
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("token encryption key must decode to 32 bytes for AES-256-GCM, got %d", len(b))
	}
	return b, nil
}

func (c ProviderCredentials) merge(o ProviderCredentials) ProviderCredentials {
	pick := func(a, b string) string {
		if b != "" {
			return b
		}
		return a
	}
	c.ClientID = pick(c.ClientID, o.ClientID)
	c.ClientSecret = pick(c.ClientSecret, o.ClientSecret)
	c.TeamID = pick(c.TeamID, o.TeamID)
	c.KeyID = pick(c.KeyID, o.KeyID)
	c.PrivateKey = pick(c.PrivateKey, o.PrivateKey)
	if len(o.Scopes) > 0 {
		c.Scopes = o.Scopes
	}
	return c
}
