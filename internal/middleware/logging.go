package middleware

import (
	"time"

	"fieldserve/pkg/logger"

	"github.com/gin-gonic/gin"
)

// RequestLogger writes one access log line per request.
func RequestLogger(log logger.ILogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []logger.Field{
			logger.String("method", c.Request.Method),
			logger.String("path", c.FullPath()),
			logger.Int("status", c.Writer.Status()),
			logger.Duration("latency", time.Since(start)),
			logger.String("ip", c.ClientIP()),
		}
		if id := GetUserID(c); id != 0 {
			fields = append(fields, logger.Uint("user_id", id))
		}
		switch status := c.Writer.Status(); {
		case status >= 500:
			log.Error("request failed", fields...)
		case status >= 400:
			log.Warning("request declined", fields...)
		default:
			log.Info("request", fields...)
		}
	}
}

// Recovery turns a handler panic into a 500 and logs it.
func Recovery(log logger.ILogger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, err interface{}) {
		log.Error("panic recovered", logger.String("path", c.Request.URL.Path), logger.Any("panic", err))
		c.AbortWithStatusJSON(500, gin.H{"error": "internal error"})
	})
}
