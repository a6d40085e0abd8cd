// Package google is the Google OpenID Connect adapter. The identity comes
// from the userinfo endpoint; the subject is the "sub" claim.
package google

import (
	"context"

	"github.com/dropDatabas3/authkit/internal/config"
	"github.com/dropDatabas3/authkit/internal/oauth/providers"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// Endpoints groups the URLs the adapter talks to.
type Endpoints struct {
	oauth2.Endpoint
	UserInfoURL string
}

// DefaultEndpoints are Google's production URLs.
var DefaultEndpoints = Endpoints{
	Endpoint: oauth2.Endpoint{
		AuthURL:   "https://accounts.google.com/o/oauth2/v2/auth",
		TokenURL:  endpoints.Google.TokenURL,
		AuthStyle: oauth2.AuthStyleInParams,
	},
	UserInfoURL: "https://openidconnect.googleapis.com/v1/userinfo",
}

var defaultScopes = []string{"openid", "email", "profile"}

// Provider talks to Google.
type Provider struct {
	*providers.Base
	userInfoURL string
}

// New is the registry factory.
func New(creds providers.Credentials, opts providers.Options) (providers.Provider, error) {
	return NewWithEndpoints(creds, opts, DefaultEndpoints), nil
}

// NewWithEndpoints builds a Provider against custom URLs.
func NewWithEndpoints(creds providers.Credentials, opts providers.Options, ep Endpoints) *Provider {
	scopes := creds.Scopes
	if len(scopes) == 0 {
		scopes = defaultScopes
	}
	return &Provider{
		Base: providers.NewBase(providers.BaseConfig{
			Name:         config.ProviderGoogle,
			ClientID:     creds.ClientID,
			Endpoint:     ep.Endpoint,
			Scopes:       scopes,
			ClientSecret: providers.StaticSecret(creds.ClientSecret),
			// A refresh token is only issued with offline access and a
			// forced consent screen.
			Extras: []oauth2.AuthCodeOption{oauth2.AccessTypeOffline, oauth2.ApprovalForce},
		}, opts),
		userInfoURL: ep.UserInfoURL,
	}
}

type userInfo struct {
	Sub           string              `json:"sub"`
	Email         string              `json:"email"`
	EmailVerified *providers.FlexBool `json:"email_verified"`
	Name          string              `json:"name"`
}

func (p *Provider) FetchProfile(ctx context.Context, tokens *providers.Tokens) (*providers.Profile, error) {
	if tokens == nil || tokens.AccessToken == "" {
		return nil, providers.NewProfileError(p.Name(), providers.KindMalformed, "missing access token")
	}
	var ui userInfo
	if err := p.GetJSON(ctx, "userinfo", p.userInfoURL, tokens.AccessToken, &ui); err != nil {
		return nil, err
	}
	if ui.Sub == "" {
		return nil, providers.NewProfileError(p.Name(), providers.KindMalformed, "userinfo missing sub")
	}
	prof := &providers.Profile{
		Provider:       p.Name(),
		ProviderUserID: ui.Sub,
		Email:          ui.Email,
		Username:       ui.Name,
		IDToken:        tokens.IDToken,
	}
	if ui.EmailVerified != nil {
		prof.EmailVerified = ui.EmailVerified.Ptr()
	}
	return prof, nil
}
