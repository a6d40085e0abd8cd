package providers

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/dropDatabas3/authkit/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	*Base
	creds Credentials
}

func (s *stubProvider) FetchProfile(context.Context, *Tokens) (*Profile, error) { return nil, nil }

func countingFactory(name string, builds *atomic.Int32) Factory {
	return func(creds Credentials, opts Options) (Provider, error) {
		builds.Add(1)
		return &stubProvider{Base: NewBase(BaseConfig{Name: name, ClientID: creds.ClientID}, opts), creds: creds}, nil
	}
}

func newTestRegistry(src config.OAuthConfig) (*Registry, *atomic.Int32) {
	builds := &atomic.Int32{}
	r := NewRegistry(src, Options{})
	for _, n := range config.ProviderNames {
		r.Register(n, countingFactory(n, builds))
	}
	return r, builds
}

func TestRegistryGet(t *testing.T) {
	r, builds := newTestRegistry(config.OAuthConfig{
		ProvidersEnabled: []string{"google", "github"},
		Google:           config.ProviderCredentials{ClientID: "gid", ClientSecret: "gs"},
		GitHub:           config.ProviderCredentials{ClientID: "hid"},
	})
	ctx := context.Background()

	p, err := r.Get(ctx, "default", "Google")
	require.NoError(t, err)
	assert.Equal(t, "google", p.Name())

	again, err := r.Get(ctx, "default", "google")
	require.NoError(t, err)
	assert.Same(t, p, again)
	assert.EqualValues(t, 1, builds.Load())

	_, err = r.Get(ctx, "default", "github")
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, []string{"client_secret"}, ce.Missing)
	assert.Contains(t, err.Error(), "github missing credentials: client_secret")

	_, err = r.Get(ctx, "default", "apple")
	assert.ErrorIs(t, err, ErrProviderDisabled)

	_, err = r.Get(ctx, "default", "myspace")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestRegistryPerTenantCacheAndInvalidation(t *testing.T) {
	src := config.OAuthConfig{
		ProvidersEnabled: []string{"google"},
		Google:           config.ProviderCredentials{ClientID: "root", ClientSecret: "s"},
		Tenants: map[string]config.TenantOAuth{
			"acme": {Google: &config.ProviderCredentials{ClientID: "acme"}},
		},
	}
	r, builds := newTestRegistry(src)
	ctx := context.Background()

	root, err := r.Get(ctx, "default", "google")
	require.NoError(t, err)
	acme, err := r.Get(ctx, "acme", "google")
	require.NoError(t, err)
	assert.Equal(t, "root", root.(*stubProvider).creds.ClientID)
	assert.Equal(t, "acme", acme.(*stubProvider).creds.ClientID)
	assert.EqualValues(t, 2, builds.Load())

	r.InvalidateCache("acme")
	_, err = r.Get(ctx, "default", "google")
	require.NoError(t, err)
	assert.EqualValues(t, 2, builds.Load())
	_, err = r.Get(ctx, "acme", "google")
	require.NoError(t, err)
	assert.EqualValues(t, 3, builds.Load())

	r.InvalidateAll()
	_, err = r.Get(ctx, "default", "google")
	require.NoError(t, err)
	assert.EqualValues(t, 4, builds.Load())
}

func TestRegistryInfo(t *testing.T) {
	r, _ := newTestRegistry(config.OAuthConfig{
		ProvidersEnabled: []string{"github", "apple"},
		GitHub:           config.ProviderCredentials{ClientID: "h", ClientSecret: "s"},
		Apple:            config.ProviderCredentials{ClientID: "a"},
	})
	info := r.Info(context.Background(), "default")
	require.Len(t, info, 3)
	assert.Equal(t, Info{Name: "google", DisplayName: "Google", Enabled: false}, info[0])
	assert.Equal(t, Info{Name: "github", DisplayName: "GitHub", Enabled: true}, info[1])
	assert.Equal(t, Info{Name: "apple", DisplayName: "Apple", Enabled: false}, info[2])
	assert.Equal(t, []string{"github"}, r.Available(context.Background(), "default"))
}

func TestRegistryFactoryErrorIsConfigError(t *testing.T) {
	r := NewRegistry(config.OAuthConfig{
		ProvidersEnabled: []string{"apple"},
		Apple:            config.ProviderCredentials{ClientID: "a", TeamID: "t", KeyID: "k", PrivateKey: "bad"},
	}, Options{})
	boom := errors.New("bad pem")
	r.Register("apple", func(Credentials, Options) (Provider, error) { return nil, boom })

	err := r.Preload(context.Background(), "default")
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.ErrorIs(t, err, boom)
}

func TestFailureMessages(t *testing.T) {
	err := &TokenExchangeError{Failure{Provider: "github", Kind: KindProtocol, Status: 200, Code: "bad_verification_code", Description: "expired"}}
	assert.Equal(t, "github token exchange failed (protocol, status 200): bad_verification_code - expired", err.Error())

	f, ok := AsFailure(error(&ProfileError{Failure{Provider: "google", Kind: KindNetwork}}))
	require.True(t, ok)
	assert.Equal(t, KindNetwork, f.Kind)
}
