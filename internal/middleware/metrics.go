package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rcffuta/elib-api/internal/service"
)

const unmatchedRoute = "unmatched"

// Metrics observes every request except scrapes of the metrics endpoint itself.
// Paths are labelled by route template so ids do not explode label cardinality.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil || c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
