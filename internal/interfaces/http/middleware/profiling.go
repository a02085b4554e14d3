package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/erp/connhub/internal/infrastructure/telemetry"
)

// Profiling attaches route, method and platform labels to CPU samples taken
// while the request is served.
func Profiling(enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if !enabled || route == "" {
			c.Next()
			return
		}
		labels := map[string]string{
			"route":    route,
			"method":   c.Request.Method,
			"platform": c.Param("platform"),
		}
		telemetry.WithProfilingLabels(c.Request.Context(), labels, func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}
