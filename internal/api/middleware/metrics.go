package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"lcs-classroom/backend/pkg/metrics"
)

// Metrics 记录每个请求的计数与耗时
// 路由维度使用注册时的模板（如 /api/v1/classes/:id），未匹配路由记为 unmatched
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveHTTP(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
