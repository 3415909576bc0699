package middleware

import (
	"time"

	"github.com/LovationAdmin/gst-api/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLogger logs every request once it has been handled.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", utils.MaskString(c.Request.URL.Path)),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("ip", utils.MaskIP(c.ClientIP())),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		log := utils.Logger()
		switch {
		case c.Writer.Status() >= 500:
			log.Error("📨 request", fields...)
		case c.Writer.Status() >= 400:
			log.Warn("📨 request", fields...)
		default:
			log.Info("📨 request", fields...)
		}
	}
}
