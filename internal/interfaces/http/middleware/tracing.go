package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"

	"github.com/erp/connhub/internal/infrastructure/telemetry"
)

// TraceIDHeader returns the trace ID to the caller
const TraceIDHeader = "X-Trace-ID"

// untracedPaths are infrastructure endpoints kept out of traces
var untracedPaths = []string{"/health", "/ready", "/metrics", "/swagger"}

// Tracing wraps otelgin, skipping infrastructure endpoints
func Tracing(serviceName string, enabled bool) gin.HandlerFunc {
	if !enabled {
		return func(c *gin.Context) { c.Next() }
	}
	return otelgin.Middleware(serviceName, otelgin.WithFilter(func(r *http.Request) bool {
		for _, p := range untracedPaths {
			if strings.HasPrefix(r.URL.Path, p) {
				return false
			}
		}
		return true
	}))
}

// TraceAnnotations echoes the trace ID in a response header and tags the
// server span with the request and user IDs once the handler has run.
// It must be installed after Tracing.
func TraceAnnotations() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := telemetry.GetTraceID(c.Request.Context()); id != "" {
			c.Writer.Header().Set(TraceIDHeader, id)
		}

		c.Next()

		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}
		telemetry.SetAttributes(span,
			"request_id", GetRequestID(c),
			telemetry.SpanAttrUserID, GetUserID(c),
		)
	}
}
