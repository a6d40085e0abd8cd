// Package github is the GitHub OAuth adapter. GitHub issues no ID token,
// so the identity comes from the REST API. The token endpoint reports OAuth
// errors in a 200 response body, which providers.Base already handles.
package github

import (
	"context"
	"strings"

	"github.com/dropDatabas3/authkit/internal/config"
	"github.com/dropDatabas3/authkit/internal/oauth/providers"
	"github.com/dropDatabas3/authkit/internal/observability/logger"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// Endpoints groups the URLs the adapter talks to.
type Endpoints struct {
	oauth2.Endpoint
	UserURL   string
	EmailsURL string
}

// DefaultEndpoints are GitHub's production URLs.
var DefaultEndpoints = Endpoints{
	Endpoint: oauth2.Endpoint{
		AuthURL:   endpoints.GitHub.AuthURL,
		TokenURL:  endpoints.GitHub.TokenURL,
		AuthStyle: oauth2.AuthStyleInParams,
	},
	UserURL:   "https://api.github.com/user",
	EmailsURL: "https://api.github.com/user/emails",
}

var defaultScopes = []string{"read:user", "user:email"}

// Provider talks to GitHub.
type Provider struct {
	*providers.Base
	userURL   string
	emailsURL string
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
			Name:         config.ProviderGitHub,
			ClientID:     creds.ClientID,
			Endpoint:     ep.Endpoint,
			Scopes:       scopes,
			ClientSecret: providers.StaticSecret(creds.ClientSecret),
			APIHeaders: map[string]string{
				"Accept":               "application/vnd.github+json",
				"X-GitHub-Api-Version": "2022-11-28",
			},
		}, opts),
		userURL:   ep.UserURL,
		emailsURL: ep.EmailsURL,
	}
}

type user struct {
	ID    providers.FlexString `json:"id"`
	Login string               `json:"login"`
	Email string               `json:"email"`
}

type email struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

func (p *Provider) FetchProfile(ctx context.Context, tokens *providers.Tokens) (*providers.Profile, error) {
	if tokens == nil || tokens.AccessToken == "" {
		return nil, providers.NewProfileError(p.Name(), providers.KindMalformed, "missing access token")
	}
	var u user
	if err := p.GetJSON(ctx, "user", p.userURL, tokens.AccessToken, &u); err != nil {
		return nil, err
	}
	id := strings.TrimSpace(string(u.ID))
	if id == "" || id == "0" {
		return nil, providers.NewProfileError(p.Name(), providers.KindMalformed, "user response missing id")
	}

	prof := &providers.Profile{
		Provider:       p.Name(),
		ProviderUserID: id,
		Username:       u.Login,
	}
	if addr, verified, ok := p.primaryEmail(ctx, tokens.AccessToken); ok {
		prof.Email = addr
		prof.EmailVerified = &verified
	} else {
		// Public profile email; GitHub does not say whether it is verified.
		prof.Email = u.Email
	}
	return prof, nil
}

// primaryEmail walks /user/emails: primary and verified, then any verified,
// then primary. A failing call is not fatal; the public email is used instead.
func (p *Provider) primaryEmail(ctx context.Context, accessToken string) (string, bool, bool) {
	var emails []email
	if err := p.GetJSON(ctx, "emails", p.emailsURL, accessToken, &emails); err != nil {
		logger.From(ctx).Debug("github emails lookup failed",
			logger.Component("oauth.github"), logger.Err(err))
		return "", false, false
	}
	return pickEmail(emails)
}

func pickEmail(emails []email) (string, bool, bool) {
	for _, e := range emails {
		if e.Primary && e.Verified && e.Email != "" {
			return e.Email, true, true
		}
	}
	for _, e := range emails {
		if e.Verified && e.Email != "" {
			return e.Email, true, true
		}
	}
	for _, e := range emails {
		if e.Primary && e.Email != "" {
			return e.Email, false, true
		}
	}
	return "", false, false
}
