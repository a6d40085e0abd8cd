package middlewares

import (
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/dropDatabas3/authkit/internal/http/errors"
	"github.com/dropDatabas3/authkit/internal/observability/logger"
	"github.com/dropDatabas3/authkit/internal/session"
)

// AccessParser validates access tokens. *session.Manager implements it.
type AccessParser interface {
	ParseAccess(token string) (*session.Claims, error)
}

func bearer(r *http.Request) string {
	ah := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(ah) < len("bearer ") || !strings.EqualFold(ah[:len("bearer ")], "bearer ") {
		return ""
	}
	return strings.TrimSpace(ah[len("bearer "):])
}

// RequireAuth valida Authorization: Bearer <access> y guarda el user id en el
// contexto. Los tokens 2fa_temp no sirven acá.
func RequireAuth(parser AccessParser) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearer(r)
			if raw == "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token", error_description="missing bearer token"`)
				errors.WriteError(w, errors.ErrTokenMissing)
				return
			}
			claims, err := parser.ParseAccess(raw)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token"`)
				if stderrors.Is(err, session.ErrExpiredToken) {
					errors.WriteError(w, errors.ErrTokenExpired)
					return
				}
				errors.WriteError(w, errors.ErrTokenInvalid)
				return
			}
			if claims.Tenant != "" && claims.Tenant != GetTenant(r.Context()) {
				errors.WriteError(w, errors.ErrTokenInvalid.WithDetail("token issued for another tenant"))
				return
			}

			ctx := WithUserID(r.Context(), claims.Subject)
			ctx = logger.ToContext(ctx, logger.From(ctx).With(logger.UserID(claims.Subject)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth es RequireAuth sin exigir el header: sin token el request
// sigue anónimo, pero un token presente e inválido es 401.
func OptionalAuth(parser AccessParser) Middleware {
	required := RequireAuth(parser)
	return func(next http.Handler) http.Handler {
		withAuth := required(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if bearer(r) == "" {
				next.ServeHTTP(w, r)
				return
			}
			withAuth.ServeHTTP(w, r)
		})
	}
}
