// Package apple is the Sign in with Apple adapter. Apple has no userinfo
// endpoint: the identity is read from the id_token after verifying it
// against Apple's published keys. Apple never returns a username.
package apple

import (
	"context"
	"errors"

	"github.com/dropDatabas3/authkit/internal/config"
	"github.com/dropDatabas3/authkit/internal/oauth/providers"
	jwtv5 "github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// Issuer is both the id_token issuer and the client assertion audience.
const Issuer = "https://appleid.apple.com"

// Endpoints groups the URLs the adapter talks to.
type Endpoints struct {
	oauth2.Endpoint
	KeysURL string
}

// DefaultEndpoints are Apple's production URLs.
var DefaultEndpoints = Endpoints{
	Endpoint: oauth2.Endpoint{
		AuthURL:   Issuer + "/auth/authorize",
		TokenURL:  Issuer + "/auth/token",
		AuthStyle: oauth2.AuthStyleInParams,
	},
	KeysURL: Issuer + "/auth/keys",
}

var defaultScopes = []string{"name", "email"}

// Provider talks to Apple.
type Provider struct {
	*providers.Base
	keys      *keySet
	assertion *clientAssertion
}

// New is the registry factory.
func New(creds providers.Credentials, opts providers.Options) (providers.Provider, error) {
	return NewWithEndpoints(creds, opts, DefaultEndpoints)
}

// NewWithEndpoints builds a Provider against custom URLs.
func NewWithEndpoints(creds providers.Credentials, opts providers.Options, ep Endpoints) (*Provider, error) {
	key, err := parsePrivateKey(creds.PrivateKey)
	if err != nil {
		return nil, err
	}
	opts = opts.Normalize()
	scopes := creds.Scopes
	if len(scopes) == 0 {
		scopes = defaultScopes
	}
	a := &clientAssertion{
		key:      key,
		teamID:   creds.TeamID,
		keyID:    creds.KeyID,
		clientID: creds.ClientID,
		now:      opts.Now,
	}
	return &Provider{
		Base: providers.NewBase(providers.BaseConfig{
			Name:         config.ProviderApple,
			ClientID:     creds.ClientID,
			Endpoint:     ep.Endpoint,
			Scopes:       scopes,
			ClientSecret: a.sign,
			// Apple posts the callback when name or email scopes are requested.
			Extras: []oauth2.AuthCodeOption{oauth2.SetAuthURLParam("response_mode", "form_post")},
		}, opts),
		keys:      newKeySet(ep.KeysURL, opts.HTTPClient),
		assertion: a,
	}, nil
}

func (p *Provider) ExchangeCode(ctx context.Context, code, codeVerifier, redirectURI string) (*providers.Tokens, error) {
	if codeVerifier == "" {
		return nil, &providers.TokenExchangeError{Failure: providers.Failure{
			Provider: p.Name(), Kind: providers.KindMalformed, Description: "code_verifier is required",
		}}
	}
	return p.Base.ExchangeCode(ctx, code, codeVerifier, redirectURI)
}

type idTokenClaims struct {
	Email          string              `json:"email"`
	EmailVerified  *providers.FlexBool `json:"email_verified"`
	IsPrivateEmail providers.FlexBool  `json:"is_private_email"`
	jwtv5.RegisteredClaims
}

func (p *Provider) FetchProfile(ctx context.Context, tokens *providers.Tokens) (*providers.Profile, error) {
	if tokens == nil || tokens.IDToken == "" {
		return nil, providers.NewProfileError(p.Name(), providers.KindMalformed, "tokens missing id_token")
	}
	var claims idTokenClaims
	var fetchErr error
	_, err := jwtv5.ParseWithClaims(tokens.IDToken, &claims,
		func(t *jwtv5.Token) (any, error) {
			kid, _ := t.Header["kid"].(string)
			if kid == "" {
				return nil, errors.New("id_token header missing kid")
			}
			k, err := p.keys.key(ctx, kid)
			if err != nil && !errors.Is(err, errKeyNotFound) {
				fetchErr = err
			}
			return k, err
		},
		jwtv5.WithValidMethods([]string{jwtv5.SigningMethodRS256.Alg()}),
		jwtv5.WithAudience(p.ClientID()),
		jwtv5.WithIssuer(Issuer),
		jwtv5.WithExpirationRequired(),
		jwtv5.WithTimeFunc(p.Now),
	)
	if fetchErr != nil {
		return nil, &providers.ProfileError{Failure: providers.Failure{
			Provider: p.Name(), Kind: providers.KindNetwork, Description: "apple signing keys unavailable", Err: fetchErr,
		}}
	}
	if err != nil {
		return nil, &providers.ProfileError{Failure: providers.Failure{
			Provider: p.Name(), Kind: providers.KindMalformed, Description: "id_token verification failed", Err: err,
		}}
	}
	if claims.Subject == "" {
		return nil, providers.NewProfileError(p.Name(), providers.KindMalformed, "id_token missing sub")
	}
	prof := &providers.Profile{
		Provider:       p.Name(),
		ProviderUserID: claims.Subject,
		Email:          claims.Email,
		IDToken:        tokens.IDToken,
	}
	if claims.EmailVerified != nil {
		prof.EmailVerified = claims.EmailVerified.Ptr()
	}
	return prof, nil
}
