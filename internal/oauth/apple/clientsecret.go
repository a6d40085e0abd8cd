package apple

import (
	"crypto/ecdsa"
	"fmt"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// assertionTTL keeps the client secret short-lived; Apple allows up to six months.
const assertionTTL = 5 * time.Minute

// clientAssertion signs the ES256 JWT Apple accepts in place of a client secret.
type clientAssertion struct {
	key      *ecdsa.PrivateKey
	teamID   string
	keyID    string
	clientID string
	now      func() time.Time
}

// parsePrivateKey accepts a PKCS#8 or SEC 1 PEM block. Keys pasted into env
// vars often carry literal "\n" sequences instead of newlines.
func parsePrivateKey(pemText string) (*ecdsa.PrivateKey, error) {
	pemText = strings.TrimSpace(strings.ReplaceAll(pemText, `\n`, "\n"))
	key, err := jwtv5.ParseECPrivateKeyFromPEM([]byte(pemText))
	if err != nil {
		return nil, fmt.Errorf("apple: invalid private key: %w", err)
	}
	return key, nil
}

func (a *clientAssertion) sign() (string, error) {
	now := a.now()
	tok := jwtv5.NewWithClaims(jwtv5.SigningMethodES256, jwtv5.MapClaims{
		"iss": a.teamID,
		"sub": a.clientID,
		"aud": Issuer,
		"iat": now.Unix(),
		"exp": now.Add(assertionTTL).Unix(),
	})
	tok.Header["kid"] = a.keyID
	s, err := tok.SignedString(a.key)
	if err != nil {
		return "", fmt.Errorf("apple: sign client secret: %w", err)
	}
	return s, nil
}
