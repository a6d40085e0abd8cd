// Package pkce implements the S256 code challenge used to bind the
// authorize request to the client that later redeems the code (RFC 7636).
package pkce

import (
	"crypto/subtle"

	"golang.org/x/oauth2"
)

// MethodS256 is the only accepted code_challenge_method.
const MethodS256 = "S256"

// Verifier and challenge length bounds from RFC 7636 section 4.1.
const (
	MinLength = 43
	MaxLength = 128
)

// GenerateVerifier returns a fresh 43-character verifier.
func GenerateVerifier() string { return oauth2.GenerateVerifier() }

// Challenge computes base64url(SHA256(verifier)) without padding.
func Challenge(verifier string) string { return oauth2.S256ChallengeFromVerifier(verifier) }

// Verify reports whether verifier hashes to challenge.
func Verify(verifier, challenge string) bool {
	if verifier == "" || challenge == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(Challenge(verifier)), []byte(challenge)) == 1
}

// ValidLength reports whether s fits the RFC 7636 length bounds.
func ValidLength(s string) bool { return len(s) >= MinLength && len(s) <= MaxLength }
