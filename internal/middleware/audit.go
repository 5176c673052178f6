package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/outfit-wizard-api/pkg/middleware/requestid"
)

// Audit logs one structured line for every successful request it wraps,
// naming the acting user. Failed requests are left to the error log.
func Audit(logger *zap.Logger, resource string) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		if c.Writer.Status() >= 400 {
			return
		}

		fields := []zap.Field{
			zap.String("resource", resource),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Int64("latency_ms", time.Since(start).Milliseconds()),
			zap.String("ip", c.ClientIP()),
			zap.String("request_id", requestid.FromContext(c.Request.Context())),
		}
		if uc, ok := CurrentUser(c); ok {
			fields = append(fields, zap.Int64("actor_id", uc.UserID), zap.String("actor_role", string(uc.Role)))
		}
		logger.Info("audit", fields...)
	}
}
