package providers

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/dropDatabas3/authkit/internal/config"
)

// CredentialSource answers which providers a tenant enabled and with which
// credentials. config.OAuthConfig satisfies it.
type CredentialSource interface {
	Enabled(tenant, provider string) bool
	Credentials(tenant, provider string) config.ProviderCredentials
}

// Info describes a provider for the providers/info endpoint.
type Info struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Enabled     bool   `json:"enabled"`
}

// Registry resolves provider names to configured adapters and caches one
// instance per tenant and provider.
type Registry struct {
	src  CredentialSource
	opts Options

	mu        sync.RWMutex
	factories map[string]Factory
	cache     map[string]Provider // key: "tenant:provider"
}

// NewRegistry returns an empty registry; call Register for each provider.
func NewRegistry(src CredentialSource, opts Options) *Registry {
	return &Registry{
		src:       src,
		opts:      opts.Normalize(),
		factories: make(map[string]Factory),
		cache:     make(map[string]Provider),
	}
}

// Register installs the factory for name. Only names in
// config.ProviderNames are accepted.
func (r *Registry) Register(name string, f Factory) {
	if !config.IsKnownProvider(name) {
		panic("providers: register of unsupported provider " + name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Get returns the adapter for provider under tenant.
func (r *Registry) Get(_ context.Context, tenant, provider string) (Provider, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if !config.IsKnownProvider(provider) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
	if !r.src.Enabled(tenant, provider) {
		return nil, fmt.Errorf("%w: %s", ErrProviderDisabled, provider)
	}

	key := tenant + ":" + provider
	r.mu.RLock()
	p, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return p, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.cache[key]; ok {
		return p, nil
	}
	factory, ok := r.factories[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %q has no factory", ErrUnknownProvider, provider)
	}
	creds := r.src.Credentials(tenant, provider)
	if missing := config.MissingCredentials(provider, creds); len(missing) > 0 {
		return nil, &ConfigError{Provider: provider, Missing: missing}
	}
	p, err := factory(creds, r.opts)
	if err != nil {
		return nil, &ConfigError{Provider: provider, Err: err}
	}
	r.cache[key] = p
	return p, nil
}

// Available lists the providers that are enabled and credential-complete
// for tenant, in canonical order.
func (r *Registry) Available(ctx context.Context, tenant string) []string {
	out := make([]string, 0, len(config.ProviderNames))
	for _, info := range r.Info(ctx, tenant) {
		if info.Enabled {
			out = append(out, info.Name)
		}
	}
	return out
}

// Info describes every supported provider for tenant.
func (r *Registry) Info(_ context.Context, tenant string) []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Info, 0, len(config.ProviderNames))
	for _, name := range config.ProviderNames {
		_, registered := r.factories[name]
		enabled := registered && r.src.Enabled(tenant, name) &&
			len(config.MissingCredentials(name, r.src.Credentials(tenant, name))) == 0
		out = append(out, Info{Name: name, DisplayName: config.DisplayNames[name], Enabled: enabled})
	}
	return out
}

// Preload builds every enabled provider of each tenant so bad credentials
// (an unparsable Apple key, say) fail at startup instead of first use.
func (r *Registry) Preload(ctx context.Context, tenants ...string) error {
	for _, t := range tenants {
		for _, name := range config.ProviderNames {
			if !r.src.Enabled(t, name) {
				continue
			}
			if _, err := r.Get(ctx, t, name); err != nil {
				return fmt.Errorf("tenant %q: %w", t, err)
			}
		}
	}
	return nil
}

// InvalidateCache drops the cached adapters of tenant.
func (r *Registry) InvalidateCache(tenant string) {
	prefix := tenant + ":"
	r.mu.Lock()
	defer r.mu.Unlock()
	for key := range r.cache {
		if strings.HasPrefix(key, prefix) {
			delete(r.cache, key)
		}
	}
}

// InvalidateAll drops every cached adapter.
func (r *Registry) InvalidateAll() {
	r.mu.Lock()
	r.cache = make(map[string]Provider)
	r.mu.Unlock()
}
