package logger

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey struct{ name string }

var (
	loggerKey    = contextKey{"logger"}
	requestIDKey = contextKey{"request_id"}
	tenantIDKey  = contextKey{"tenant_id"}
)

// WithContext stores log in ctx.
func WithContext(ctx context.Context, log *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, log)
}

// FromContext returns the logger stored in ctx, with trace_id and span_id
// added when ctx carries a recording span. Without a stored logger it
// returns a no-op logger.
func FromContext(ctx context.Context) *zap.Logger {
	log, ok := ctx.Value(loggerKey).(*zap.Logger)
	if !ok {
		return zap.NewNop()
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		log = log.With(
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	return log
}

// WithRequestID records the request id and scopes the context logger to it.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	ctx = context.WithValue(ctx, requestIDKey, requestID)
	return scoped(ctx, zap.String("request_id", requestID))
}

// WithTenantID records the tenant and scopes the context logger to it.
func WithTenantID(ctx context.Context, tenantID uuid.UUID) context.Context {
	ctx = context.WithValue(ctx, tenantIDKey, tenantID)
	return scoped(ctx, zap.String("tenant_id", tenantID.String()))
}

// WithActor scopes the context logger to the acting user.
func WithActor(ctx context.Context, userID uuid.UUID) context.Context {
	return scoped(ctx, zap.String("user_id", userID.String()))
}

func scoped(ctx context.Context, fields ...zap.Field) context.Context {
	log, ok := ctx.Value(loggerKey).(*zap.Logger)
	if !ok {
		return ctx
	}
	return WithContext(ctx, log.With(fields...))
}

// RequestID returns the request id recorded in ctx, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// TenantID returns the tenant recorded in ctx, or uuid.Nil.
func TenantID(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(tenantIDKey).(uuid.UUID)
	return id
}
