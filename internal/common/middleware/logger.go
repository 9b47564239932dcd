package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"nebula-miniapp/internal/common/logger"
)

func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery
		if raw != "" && !strings.Contains(raw, "init_data") {
			path = path + "?" + raw
		}

		c.Next()

		status := c.Writer.Status()
		ev := logger.Info()
		switch {
		case status >= 500:
			ev = logger.Error()
		case status >= 400:
			ev = logger.Warn()
		}

		ev = ev.
			Str("request_id", GetRequestID(c)).
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent()).
			Int("body_size", c.Writer.Size())

		if id, ok := GetIdentity(c); ok {
			ev = ev.Str("user_id", id.UserID).Str("platform", id.Platform)
		}
		ev.Msg("Request processed")
	}
}
