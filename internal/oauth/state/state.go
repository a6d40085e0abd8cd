// Package state signs and verifies the self-contained OAuth authorization
// state carried between the authorize and callback steps.
package state

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// TokenType is the discriminator stored in every state token.
const TokenType = "oauth_state"

// Mode selects what a completed flow does with the provider identity.
type Mode string

const (
	ModeLogin Mode = "login"
	ModeLink  Mode = "link"
)

// Valid reports whether m is login or link.
func (m Mode) Valid() bool { return m == ModeLogin || m == ModeLink }

var (
	// ErrInvalidParams is a programming error: the caller asked to sign an
	// inconsistent state.
	ErrInvalidParams = errors.New("state: invalid sign parameters")
	// ErrExpired means the flow took too long; the client should start over.
	ErrExpired = errors.New("state: expired")
	// ErrInvalid covers bad signatures, wrong token types and malformed claims.
	ErrInvalid = errors.New("state: invalid")
)

// MissingFieldError reports a structurally required claim that is absent.
type MissingFieldError struct{ Field string }

func (e *MissingFieldError) Error() string { return "state: missing field " + e.Field }

// MismatchError reports a claim that differs from what the caller expected.
// It matches ErrInvalid.
type MismatchError struct{ Field string }

func (e *MismatchError) Error() string        { return "state: " + e.Field + " mismatch" }
func (e *MismatchError) Is(target error) bool { return target == ErrInvalid }

// Claims is the decoded authorization state.
type Claims struct {
	Type          string `json:"type"`
	Provider      string `json:"provider"`
	RedirectURI   string `json:"redirect_uri"`
	Mode          Mode   `json:"mode"`
	CodeChallenge string `json:"cc,omitempty"`
	LinkUserID    string `json:"link_user_id,omitempty"`
	Nonce         string `json:"nonce"`
	jwtv5.RegisteredClaims
}

// Params describes a state to sign.
type Params struct {
	Provider      string
	RedirectURI   string
	Mode          Mode
	CodeChallenge string
	LinkUserID    string
}

// Expect holds optional values Verify compares against. Empty fields are skipped.
type Expect struct {
	Provider    string
	RedirectURI string
	Mode        Mode
}

// Codec signs states with HS256 under one key.
type Codec struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// Option customizes a Codec.
type Option func(*Codec)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(c *Codec) { c.now = now } }

// New returns a Codec. ttl is used verbatim; zero produces states that are
// already expired once any time passes.
func New(key []byte, ttl time.Duration, opts ...Option) (*Codec, error) {
	if len(key) == 0 {
		return nil, errors.New("state: signing key is required")
	}
	if ttl < 0 {
		return nil, errors.New("state: ttl must not be negative")
	}
	c := &Codec{key: key, ttl: ttl, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// TTL returns the lifetime of signed states.
func (c *Codec) TTL() time.Duration { return c.ttl }

// Sign mints a state token.
func (c *Codec) Sign(p Params) (string, error) {
	switch {
	case p.Provider == "":
		return "", fmt.Errorf("%w: provider is required", ErrInvalidParams)
	case p.RedirectURI == "":
		return "", fmt.Errorf("%w: redirect_uri is required", ErrInvalidParams)
	case !p.Mode.Valid():
		return "", fmt.Errorf("%w: mode must be login or link, got %q", ErrInvalidParams, p.Mode)
	case p.Mode == ModeLink && p.LinkUserID == "":
		return "", fmt.Errorf("%w: link_user_id is required for link mode", ErrInvalidParams)
	case p.Mode == ModeLogin && p.LinkUserID != "":
		return "", fmt.Errorf("%w: link_user_id is only valid for link mode", ErrInvalidParams)
	}

	nonce, err := randomNonce()
	if err != nil {
		return "", err
	}
	now := c.now()
	claims := Claims{
		Type:          TokenType,
		Provider:      p.Provider,
		RedirectURI:   p.RedirectURI,
		Mode:          p.Mode,
		CodeChallenge: p.CodeChallenge,
		LinkUserID:    p.LinkUserID,
		Nonce:         nonce,
		RegisteredClaims: jwtv5.RegisteredClaims{
			IssuedAt:  jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(now.Add(c.ttl)),
		},
	}
	signed, err := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("state: sign: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry, then the type discriminator, then the
// structural fields, and only then the expected values.
func (c *Codec) Verify(token string, want Expect) (*Claims, error) {
	var claims Claims
	_, err := jwtv5.ParseWithClaims(token, &claims,
		func(*jwtv5.Token) (any, error) { return c.key, nil },
		jwtv5.WithValidMethods([]string{jwtv5.SigningMethodHS256.Alg()}),
		jwtv5.WithExpirationRequired(),
		jwtv5.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwtv5.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if claims.Type != TokenType {
		return nil, fmt.Errorf("%w: not an oauth state token", ErrInvalid)
	}
	for _, f := range []struct{ name, val string }{
		{"provider", claims.Provider},
		{"redirect_uri", claims.RedirectURI},
		{"mode", string(claims.Mode)},
	} {
		if f.val == "" {
			return nil, &MissingFieldError{Field: f.name}
		}
	}
	if !claims.Mode.Valid() {
		return nil, fmt.Errorf("%w: unknown mode %q", ErrInvalid, claims.Mode)
	}
	if claims.Mode == ModeLink && claims.LinkUserID == "" {
		return nil, &MissingFieldError{Field: "link_user_id"}
	}

	if want.Provider != "" && claims.Provider != want.Provider {
		return nil, &MismatchError{Field: "provider"}
	}
	if want.RedirectURI != "" && claims.RedirectURI != want.RedirectURI {
		return nil, &MismatchError{Field: "redirect_uri"}
	}
	if want.Mode != "" && claims.Mode != want.Mode {
		return nil, &MismatchError{Field: "mode"}
	}
	return &claims, nil
}

func randomNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("state: nonce: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
