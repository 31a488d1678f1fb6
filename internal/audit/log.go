// Package audit emits structured audit events for security-relevant
// API actions. Events go to the shared log stream; durable per-tenant
// audit entries are persisted separately by the auth services.
package audit

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/TamirHazut/ERP/internal/auth"
	"github.com/TamirHazut/ERP/internal/obs"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// requestIDFromContext extracts the audit request id from context if present.
func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// LogEvent writes an audit log entry enriched with request and caller context.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	return logEvent(obs.Logger(), ctx, event, fields)
}

func logEvent(logger zerolog.Logger, ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	ev := logger.Info().
		Str("type", "audit").
		Str("event", event)
	if rid := requestIDFromContext(ctx); rid != "" {
		ev = ev.Str("request_id", rid)
	}
	if claims, ok := auth.ClaimsFromContext(ctx); ok {
		ev = ev.Str("tenant_id", claims.TenantID).Str("user_id", claims.Subject)
	}
	if fields == nil {
		fields = map[string]any{}
	}
	ev.Interface("fields", fields).Msg("audit event")
	return nil
}
