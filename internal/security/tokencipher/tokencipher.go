// Package tokencipher seals provider tokens for storage at rest.
//
// Envelope: "v1:" + base64(nonce || AES-256-GCM ciphertext+tag), 12-byte
// random nonce, no associated data. A new algorithm gets a new prefix.
package tokencipher

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// Version is the envelope prefix written by Encrypt.
	Version = "v1:"

	nonceSize = 12
	keySize   = 32
)

var (
	// ErrNotConfigured is returned by every operation of a keyless Cipher.
	ErrNotConfigured = errors.New("tokencipher: encryption key not configured")
	// ErrInvalidKey reports a key that is not 32 bytes.
	ErrInvalidKey = errors.New("tokencipher: key must be 32 bytes")
	// ErrFormat reports an envelope that cannot be parsed.
	ErrFormat = errors.New("tokencipher: malformed envelope")
	// ErrAuthentication reports a GCM tag failure: tampering or the wrong key.
	ErrAuthentication = errors.New("tokencipher: authentication failed")
)

// Cipher encrypts and decrypts token envelopes. The zero value and a Cipher
// built from a nil key are unconfigured.
type Cipher struct {
	aead cipher.AEAD
	rand io.Reader
}

// New builds a Cipher. A nil or empty key returns an unconfigured Cipher.
func New(key []byte) (*Cipher, error) {
	if len(key) == 0 {
		return &Cipher{}, nil
	}
	if len(key) != keySize {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidKey, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("tokencipher: aes: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, fmt.Errorf("tokencipher: gcm: %w", err)
	}
	return &Cipher{aead: aead, rand: rand.Reader}, nil
}

// Configured reports whether the Cipher holds a key.
func (c *Cipher) Configured() bool { return c != nil && c.aead != nil }

// Encrypt seals plaintext under a fresh nonce.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	buf := make([]byte, nonceSize, nonceSize+len(plaintext)+c.aead.Overhead())
	if _, err := io.ReadFull(c.rand, buf); err != nil {
		return "", fmt.Errorf("tokencipher: nonce: %w", err)
	}
	buf = c.aead.Seal(buf, buf[:nonceSize], []byte(plaintext), nil)
	return Version + base64.StdEncoding.EncodeToString(buf), nil
}

// Decrypt opens an envelope produced by Encrypt.
func (c *Cipher) Decrypt(envelope string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	payload, ok := strings.CutPrefix(envelope, Version)
	if !ok {
		return "", fmt.Errorf("%w: unsupported version prefix", ErrFormat)
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if len(raw) <= nonceSize {
		return "", fmt.Errorf("%w: payload too short", ErrFormat)
	}
	pt, err := c.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return "", ErrAuthentication
	}
	return string(pt), nil
}

// EncryptOptional seals s when it is non-empty and returns nil otherwise.
func (c *Cipher) EncryptOptional(s string) (*string, error) {
	if s == "" {
		return nil, nil
	}
	enc, err := c.Encrypt(s)
	if err != nil {
		return nil, err
	}
	return &enc, nil
}
