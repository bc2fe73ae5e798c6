package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"legal-ease-backend/internal/shared/telemetry"
	"legal-ease-backend/internal/shared/util"
)

// Logging emits a structured log per request. Owners are logged as hashes.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.EqualFold(c.Request.Method, "OPTIONS") {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		ownerHash := ""
		if owner := OwnerFromContext(c); owner != "" {
			ownerHash = util.HashUserKey(owner)
		}

		telemetry.Info("request.complete", map[string]any{
			"request_id":  RequestIDFromContext(c),
			"method":      c.Request.Method,
			"route":       c.FullPath(),
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"outcome":     c.GetString(outcomeKey),
			"duration_ms": float64(latency.Microseconds()) / 1000.0,
			"owner_hash":  ownerHash,
			"bytes_in":    c.Request.ContentLength,
			"client_ip":   c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
		})
	}
}
