package builtin

import (
	"context"
	"testing"

	"github.com/dropDatabas3/authkit/internal/config"
	"github.com/dropDatabas3/authkit/internal/oauth/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryResolvesEveryProvider(t *testing.T) {
	assert.Len(t, Factories, len(config.ProviderNames))

	src := config.OAuthConfig{
		ProvidersEnabled: []string{"google", "github", "apple"},
		Google:           config.ProviderCredentials{ClientID: "g", ClientSecret: "gs"},
		GitHub:           config.ProviderCredentials{ClientID: "h", ClientSecret: "hs"},
		Apple:            config.ProviderCredentials{ClientID: "a", TeamID: "t", KeyID: "k"},
	}
	r := NewRegistry(src, providers.Options{})

	g, err := r.Get(context.Background(), "default", "google")
	require.NoError(t, err)
	assert.Equal(t, "google", g.Name())

	_, err = r.Get(context.Background(), "default", "apple")
	var ce *providers.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, []string{"private_key"}, ce.Missing)

	assert.Equal(t, []string{"google", "github"}, r.Available(context.Background(), "default"))
}
