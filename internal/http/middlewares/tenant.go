package middlewares

import (
	"net/http"
	"strings"

	"github.com/dropDatabas3/authkit/internal/http/errors"
	"github.com/dropDatabas3/authkit/internal/observability/logger"
	"github.com/dropDatabas3/authkit/internal/validation"
)

// WithTenant resuelve el tenant desde X-Tenant-ID. Sin header se usa
// DefaultTenant; un slug inválido es 400.
func WithTenant() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenant := strings.ToLower(strings.TrimSpace(r.Header.Get("X-Tenant-ID")))
			if tenant == "" {
				tenant = DefaultTenant
			}
			if !validation.ValidTenantSlug(tenant) {
				errors.WriteError(w, errors.ErrBadRequest.WithDetail("invalid X-Tenant-ID"))
				return
			}
			ctx := setTenant(r.Context(), tenant)
			ctx = logger.ToContext(ctx, logger.From(ctx).With(logger.TenantID(tenant)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
