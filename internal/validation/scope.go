package validation

import (
	"regexp"
	"strings"
)

// Tenant slug rules: lowercase, starts with [a-z0-9], then [a-z0-9_-], 1..63 chars.
var tenantSlugRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,62}$`)

// ValidTenantSlug reports whether s can be used as a tenant identifier.
func ValidTenantSlug(s string) bool {
	return tenantSlugRe.MatchString(s)
}

// Scope tokens follow RFC 6749 §3.3: scope-token = 1*NQCHAR, where NQCHAR
// is %x21 / %x23-5B / %x5D-7E. URL scopes (Google) are allowed.
var scopeTokenRe = regexp.MustCompile(`^[\x21\x23-\x5B\x5D-\x7E]+$`)

// MaxScopeTokens limita cuántos scopes se aceptan en un override.
const MaxScopeTokens = 32

// ValidScopeToken reports whether tok is a single well-formed scope token.
func ValidScopeToken(tok string) bool {
	return scopeTokenRe.MatchString(tok)
}

// NormalizeScope collapses whitespace in a space separated scope override
// and drops duplicates, keeping the first occurrence. ok is false when any
// token is malformed or there are too many of them. An empty input is valid
// and returns "".
func NormalizeScope(scope string) (normalized string, ok bool) {
	fields := strings.Fields(scope)
	if len(fields) > MaxScopeTokens {
		return "", false
	}
	seen := make(map[string]struct{}, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if !ValidScopeToken(f) {
			return "", false
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return strings.Join(out, " "), true
}
