// Package builtin wires the supported adapters into a providers.Registry.
package builtin

import (
	"github.com/dropDatabas3/authkit/internal/config"
	"github.com/dropDatabas3/authkit/internal/oauth/apple"
	"github.com/dropDatabas3/authkit/internal/oauth/github"
	"github.com/dropDatabas3/authkit/internal/oauth/google"
	"github.com/dropDatabas3/authkit/internal/oauth/providers"
)

// Factories maps every supported provider name to its adapter.
var Factories = map[string]providers.Factory{
	config.ProviderGoogle: google.New,
	config.ProviderGitHub: github.New,
	config.ProviderApple:  apple.New,
}

// NewRegistry returns a registry with all adapters registered.
func NewRegistry(src providers.CredentialSource, opts providers.Options) *providers.Registry {
	r := providers.NewRegistry(src, opts)
	for name, f := range Factories {
		r.Register(name, f)
	}
	return r
}
