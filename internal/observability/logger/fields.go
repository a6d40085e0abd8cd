package logger

import (
	"strings"

	"go.uber.org/zap"
)

// HTTP

func RequestID(v string) zap.Field { return zap.String("request_id", v) }
func Method(v string) zap.Field    { return zap.String("method", v) }
func Path(v string) zap.Field      { return zap.String("path", v) }
func Status(v int) zap.Field       { return zap.Int("status", v) }
func DurationMs(v int64) zap.Field { return zap.Int64("duration_ms", v) }
func ClientIP(v string) zap.Field  { return zap.String("client_ip", v) }
func UserAgent(v string) zap.Field { return zap.String("user_agent", v) }

// Domain

func TenantID(v string) zap.Field  { return zap.String("tenant_id", v) }
func UserID(v string) zap.Field    { return zap.String("user_id", v) }
func Provider(v string) zap.Field  { return zap.String("provider", v) }
func Mode(v string) zap.Field      { return zap.String("mode", v) }
func EventKind(v string) zap.Field { return zap.String("event", v) }

// Email logs an address with the local part masked.
func Email(v string) zap.Field { return zap.String("email", MaskEmail(v)) }

// Structure

func Component(v string) zap.Field { return zap.String("component", v) }
func Op(v string) zap.Field        { return zap.String("op", v) }
func Layer(v string) zap.Field     { return zap.String("layer", v) }

// Err is zap.Error under a shorter name.
func Err(err error) zap.Field { return zap.Error(err) }

func String(k, v string) zap.Field    { return zap.String(k, v) }
func Int(k string, v int) zap.Field   { return zap.Int(k, v) }
func Bool(k string, v bool) zap.Field { return zap.Bool(k, v) }
func Any(k string, v any) zap.Field   { return zap.Any(k, v) }

// MaskEmail keeps the first character of the local part and the domain.
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		if email == "" {
			return ""
		}
		return "***"
	}
	return email[:1] + "***" + email[at:]
}
