package middleware

import (
	"time"

	"github.com/Dhoini/subscription-commerce/internal/metrics"
	"github.com/gin-gonic/gin"
)

// HTTPMetrics пишет длительность запросов. Метка route - шаблон маршрута, а не сырой путь.
func HTTPMetrics(m metrics.CommerceMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
