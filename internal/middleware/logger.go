package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/devforge-org/devforge-backend/internal/errordata"
	"github.com/devforge-org/devforge-backend/internal/logger"
)

// RequestLogger logs one line per request through zap.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	log = log.With("Middleware", "RequestLogger")
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		kv := []interface{}{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency", time.Since(start),
			"clientIP", c.ClientIP(),
		}
		if ed := errordata.GetErrorData(c.Request.Context()); ed != nil && ed.HasMessage() {
			kv = append(kv, "error", ed.Message)
		}
		switch {
		case status >= 500:
			log.Error("Request failed", kv...)
		case status >= 400:
			log.Warn("Request rejected", kv...)
		default:
			log.Info("Request handled", kv...)
		}
	}
}
