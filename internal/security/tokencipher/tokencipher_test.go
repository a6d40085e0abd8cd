package tokencipher

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCipher(t *testing.T, seed byte) *Cipher {
	t.Helper()
	c, err := New(bytes.Repeat([]byte{seed}, 32))
	require.NoError(t, err)
	return c
}

func TestRoundTrip(t *testing.T) {
	c := newCipher(t, 1)
	for _, s := range []string{"", "ya29.a0AfH6SM", strings.Repeat("x", 64*1024), "ünïcødé"} {
		env, err := c.Encrypt(s)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(env, Version))
		if s != "" {
			assert.NotContains(t, env, s)
		}
		got, err := c.Decrypt(env)
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
}

func TestEncryptIsNonDeterministic(t *testing.T) {
	c := newCipher(t, 2)
	a, err := c.Encrypt("same")
	require.NoError(t, err)
	b, err := c.Encrypt("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	for _, env := range []string{a, b} {
		got, err := c.Decrypt(env)
		require.NoError(t, err)
		assert.Equal(t, "same", got)
	}
}

func TestTamperedEnvelopeFailsAuthentication(t *testing.T) {
	c := newCipher(t, 3)
	env, err := c.Encrypt("refresh-token")
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(env, Version))
	require.NoError(t, err)

	for i := range raw {
		mut := bytes.Clone(raw)
		mut[i] ^= 0x01
		_, err := c.Decrypt(Version + base64.StdEncoding.EncodeToString(mut))
		require.ErrorIs(t, err, ErrAuthentication, "byte %d", i)
	}
}

func TestWrongKey(t *testing.T) {
	env, err := newCipher(t, 4).Encrypt("secret")
	require.NoError(t, err)
	_, err = newCipher(t, 5).Decrypt(env)
	assert.ErrorIs(t, err, ErrAuthentication)
}

func TestFormatErrors(t *testing.T) {
	c := newCipher(t, 6)
	short := Version + base64.StdEncoding.EncodeToString(make([]byte, nonceSize))
	for _, env := range []string{"", "v2:AAAA", "plaintext", "v1:!!not-base64!!", short} {
		_, err := c.Decrypt(env)
		assert.ErrorIs(t, err, ErrFormat, env)
		assert.NotErrorIs(t, err, ErrAuthentication)
	}
}

func TestUnconfigured(t *testing.T) {
	c, err := New(nil)
	require.NoError(t, err)
	assert.False(t, c.Configured())

	_, err = c.Encrypt("x")
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = c.Decrypt("v1:AAAA")
	assert.ErrorIs(t, err, ErrNotConfigured)

	var zero *Cipher
	assert.False(t, zero.Configured())
}

func TestInvalidKeyLength(t *testing.T) {
	_, err := New([]byte("too-short"))
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestEncryptOptional(t *testing.T) {
	c := newCipher(t, 7)
	got, err := c.EncryptOptional("")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = c.EncryptOptional("tok")
	require.NoError(t, err)
	require.NotNil(t, got)
	plain, err := c.Decrypt(*got)
	require.NoError(t, err)
	assert.Equal(t, "tok", plain)
}
