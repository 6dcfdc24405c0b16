package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const (
	loggerKey     contextKey = "logger"
	requestIDKey  contextKey = "request_id"
	supplierIDKey contextKey = "supplier_id"
	actorKey      contextKey = "actor"
)

// WithContext stores l in ctx
func WithContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext returns the logger stored in ctx, or a no-op logger
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(loggerKey).(*zap.Logger); ok && l != nil {
		return l
	}
	return zap.NewNop()
}

// WithRequestID records the request ID in ctx and on the context logger
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return enrich(ctx, requestIDKey, requestID)
}

// WithSupplierID records the authenticated supplier in ctx and on the context logger
func WithSupplierID(ctx context.Context, supplierID string) context.Context {
	return enrich(ctx, supplierIDKey, supplierID)
}

// WithActor records who is acting, a reviewer subject or "automation"
func WithActor(ctx context.Context, actor string) context.Context {
	return enrich(ctx, actorKey, actor)
}

func enrich(ctx context.Context, key contextKey, value string) context.Context {
	ctx = context.WithValue(ctx, key, value)
	if l, ok := ctx.Value(loggerKey).(*zap.Logger); ok && l != nil {
		ctx = WithContext(ctx, l.With(zap.String(string(key), value)))
	}
	return ctx
}

// GetRequestID returns the request ID in ctx, or ""
func GetRequestID(ctx context.Context) string { return stringValue(ctx, requestIDKey) }

// GetSupplierID returns the supplier ID in ctx, or ""
func GetSupplierID(ctx context.Context) string { return stringValue(ctx, supplierIDKey) }

// GetActor returns the actor in ctx, or ""
func GetActor(ctx context.Context) string { return stringValue(ctx, actorKey) }

func stringValue(ctx context.Context, key contextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// L returns the context logger with the active trace and span IDs attached
func L(ctx context.Context) *zap.Logger {
	l := FromContext(ctx)
	sc := trace.SpanFromContext(ctx).SpanContext()
	if sc.IsValid() {
		l = l.With(
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	return l
}
