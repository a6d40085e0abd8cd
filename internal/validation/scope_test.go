package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidTenantSlug(t *testing.T) {
	for _, v := range []string{"default", "acme", "a", "acme-corp_2", strings.Repeat("a", 63)} {
		assert.True(t, ValidTenantSlug(v), v)
	}
	for _, v := range []string{"", "-acme", "_x", "Acme", "acme corp", "acme/1", strings.Repeat("a", 64)} {
		assert.False(t, ValidTenantSlug(v), v)
	}
}

func TestValidScopeToken(t *testing.T) {
	for _, v := range []string{"openid", "read:user", "user:email", "https://www.googleapis.com/auth/userinfo.email", "a"} {
		assert.True(t, ValidScopeToken(v), v)
	}
	for _, v := range []string{"", "bad space", `quo"te`, `back\slash`, "tab\tx", "ñ"} {
		assert.False(t, ValidScopeToken(v), v)
	}
}

func TestNormalizeScope(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"empty", "", "", true},
		{"blank", "   ", "", true},
		{"collapses whitespace", "  openid \t email\nprofile ", "openid email profile", true},
		{"drops duplicates", "email openid email", "email openid", true},
		{"rejects quote", `openid "email"`, "", false},
		{"too many", strings.Repeat("s ", MaxScopeTokens+1), "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeScope(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
