// Package session issues the credentials returned after a successful login:
// HS256 access tokens, short-lived 2FA step-up tokens and opaque refresh
// tokens whose SHA-256 hash lives in the cache.
package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dropDatabas3/authkit/internal/cache"
)

// Token types carried in the "type" claim.
const (
	TypeAccess = "access"
	TypeStepUp = "2fa_temp"

	// TokenType es el valor de token_type en las respuestas.
	TokenType = "bearer"

	refreshPrefix = "refresh:"
)

var (
	ErrInvalidToken    = errors.New("session: invalid token")
	ErrExpiredToken    = errors.New("session: token expired")
	ErrWrongTokenType  = errors.New("session: wrong token type")
	ErrRefreshNotFound = errors.New("session: refresh token not found or already used")
)

// Config holds the signing secret and lifetimes.
type Config struct {
	Secret     []byte
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	StepUpTTL  time.Duration
}

// Claims of access and step-up tokens.
type Claims struct {
	Type   string `json:"type"`
	Tenant string `json:"tid,omitempty"`
	jwtv5.RegisteredClaims
}

// Pair is what the login endpoints return. RefreshToken is empty for step-up.
type Pair struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    int64
}

type refreshRecord struct {
	UserID string `json:"uid"`
	Tenant string `json:"tid"`
}

// Manager issues and parses session tokens.
type Manager struct {
	cfg   Config
	store cache.Client
	now   func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

func New(cfg Config, store cache.Client, opts ...Option) (*Manager, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("session: secret is required")
	}
	if store == nil {
		return nil, errors.New("session: cache is required")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 || cfg.StepUpTTL <= 0 {
		return nil, errors.New("session: ttls must be positive")
	}
	m := &Manager{cfg: cfg, store: store, now: time.Now}
	for _, o := range opts {
		o(m)
	}
	return m, nil
}

// Issue emits an access token and a refresh token for userID.
func (m *Manager) Issue(ctx context.Context, tenant, userID string) (*Pair, error) {
	access, err := m.sign(TypeAccess, tenant, userID, m.cfg.AccessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := m.newRefresh(ctx, tenant, userID)
	if err != nil {
		return nil, err
	}
	return &Pair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    TokenType,
		ExpiresIn:    int64(m.cfg.AccessTTL / time.Second),
	}, nil
}

// IssueStepUp emits only a 2fa_temp token. The second factor endpoint
// exchanges it for a full pair.
func (m *Manager) IssueStepUp(tenant, userID string) (*Pair, error) {
	tok, err := m.sign(TypeStepUp, tenant, userID, m.cfg.StepUpTTL)
	if err != nil {
		return nil, err
	}
	return &Pair{AccessToken: tok, TokenType: TokenType, ExpiresIn: int64(m.cfg.StepUpTTL / time.Second)}, nil
}

// Rotate consumes refresh and issues a new pair for the same user. A token
// can be rotated once; the second attempt returns ErrRefreshNotFound.
func (m *Manager) Rotate(ctx context.Context, refresh string) (*Pair, string, error) {
	raw, err := m.store.Take(ctx, refreshKey(refresh))
	if cache.IsNotFound(err) {
		return nil, "", ErrRefreshNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("session: load refresh: %w", err)
	}
	var rec refreshRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil || rec.UserID == "" {
		return nil, "", ErrRefreshNotFound
	}
	p, err := m.Issue(ctx, rec.Tenant, rec.UserID)
	if err != nil {
		return nil, "", err
	}
	return p, rec.UserID, nil
}

// Revoke deletes refresh. Unknown tokens are ignored.
func (m *Manager) Revoke(ctx context.Context, refresh string) error {
	return m.store.Delete(ctx, refreshKey(refresh))
}

// ParseAccess validates an access token. Step-up tokens are rejected.
func (m *Manager) ParseAccess(token string) (*Claims, error) {
	return m.parse(token, TypeAccess)
}

// ParseStepUp validates a 2fa_temp token.
func (m *Manager) ParseStepUp(token string) (*Claims, error) {
	return m.parse(token, TypeStepUp)
}

func (m *Manager) sign(typ, tenant, userID string, ttl time.Duration) (string, error) {
	now := m.now().UTC()
	claims := Claims{
		Type:   typ,
		Tenant: tenant,
		RegisteredClaims: jwtv5.RegisteredClaims{
			Issuer:    m.cfg.Issuer,
			Subject:   userID,
			IssuedAt:  jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	tk.Header["typ"] = "JWT"
	signed, err := tk.SignedString(m.cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("session: sign: %w", err)
	}
	return signed, nil
}

func (m *Manager) parse(token, want string) (*Claims, error) {
	var c Claims
	opts := []jwtv5.ParserOption{
		jwtv5.WithValidMethods([]string{jwtv5.SigningMethodHS256.Alg()}),
		jwtv5.WithTimeFunc(m.now),
		jwtv5.WithExpirationRequired(),
	}
	if m.cfg.Issuer != "" {
		opts = append(opts, jwtv5.WithIssuer(m.cfg.Issuer))
	}
	_, err := jwtv5.ParseWithClaims(token, &c, func(*jwtv5.Token) (any, error) { return m.cfg.Secret, nil }, opts...)
	switch {
	case errors.Is(err, jwtv5.ErrTokenExpired):
		return nil, ErrExpiredToken
	case err != nil:
		return nil, ErrInvalidToken
	}
	if c.Subject == "" {
		return nil, ErrInvalidToken
	}
	if c.Type != want {
		return nil, ErrWrongTokenType
	}
	return &c, nil
}

func (m *Manager) newRefresh(ctx context.Context, tenant, userID string) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("session: random: %w", err)
	}
	tok := base64.RawURLEncoding.EncodeToString(b)
	rec, _ := json.Marshal(refreshRecord{UserID: userID, Tenant: tenant})
	if err := m.store.Set(ctx, refreshKey(tok), string(rec), m.cfg.RefreshTTL); err != nil {
		return "", fmt.Errorf("session: store refresh: %w", err)
	}
	return tok, nil
}

func refreshKey(tok string) string {
	sum := sha256.Sum256([]byte(tok))
	return refreshPrefix + hex.EncodeToString(sum[:])
}
