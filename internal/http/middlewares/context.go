package middlewares

import "context"

type ctxKey string

const (
	ctxUserIDKey    ctxKey = "user_id"
	ctxTenantKey    ctxKey = "tenant"
	ctxRequestIDKey ctxKey = "request_id"
)

// DefaultTenant is used when the request carries no X-Tenant-ID.
const DefaultTenant = "default"

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxUserIDKey, userID)
}

func setTenant(ctx context.Context, tenant string) context.Context {
	return context.WithValue(ctx, ctxTenantKey, tenant)
}

func setRequestID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, ctxRequestIDKey, rid)
}

// GetUserID devuelve "" si RequireAuth no corrió.
func GetUserID(ctx context.Context) string {
	s, _ := ctx.Value(ctxUserIDKey).(string)
	return s
}

// GetTenant devuelve DefaultTenant si el middleware de tenant no corrió.
func GetTenant(ctx context.Context) string {
	if s, ok := ctx.Value(ctxTenantKey).(string); ok && s != "" {
		return s
	}
	return DefaultTenant
}

func GetRequestID(ctx context.Context) string {
	s, _ := ctx.Value(ctxRequestIDKey).(string)
	return s
}
