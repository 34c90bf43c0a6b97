package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/medscan/scangate/internal/pkg/metrics"
)

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start).Seconds()

		// FullPath keeps the label cardinality bounded (route template, not
		// the raw URL).
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.LatencyBucket.WithLabelValues(endpoint).Observe(duration)
	}
}
