// Package middleware provides the gin middleware of the catalog sync API.
package middleware

import (
	"net/http"

	"github.com/catalogsync/backend/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracingConfig holds configuration for the tracing middleware.
type TracingConfig struct {
	ServiceName string
	Enabled     bool
}

// Tracing starts the otelgin server span for each request
func Tracing(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}
	return otelgin.Middleware(cfg.ServiceName)
}

// TraceIDHeader echoes the trace of a traced request back to the client
const TraceIDHeader = "X-Trace-ID"

// SpanEnricher adds request_id, the authenticated supplier and the actor to the server span and
// marks it as failed for 5xx responses. It must run after JWTAuthMiddleware.
func SpanEnricher() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if traceID := telemetry.GetTraceID(c.Request.Context()); traceID != "" {
			c.Header(TraceIDHeader, traceID)
		}
		if span.IsRecording() {
			if requestID := GetRequestID(c); requestID != "" {
				span.SetAttributes(attribute.String("request_id", requestID))
			}
			if supplierID, ok := GetSupplierID(c); ok {
				span.SetAttributes(attribute.String(telemetry.AttrSupplierID, supplierID.String()))
			}
			if actor := GetActor(c); actor != "" {
				span.SetAttributes(attribute.String(telemetry.AttrActor, actor))
			}
		}

		c.Next()

		if status := c.Writer.Status(); status >= http.StatusInternalServerError && span.IsRecording() {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}
