package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"securesign/internal/metrics"
	"securesign/internal/ratelimit"
)

// RateLimit limits attempts of one action per client IP. A Redis outage
// fails open.
func RateLimit(l *ratelimit.Limiter, action string, m *metrics.Metrics, log *slog.Logger) gin.HandlerFunc {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "ratelimit")

	return func(c *gin.Context) {
		err := l.Check(c.Request.Context(), action, c.ClientIP())
		switch {
		case err == nil:
			c.Next()
		case errors.Is(err, ratelimit.ErrRateLimited):
			m.ObserveRateLimited(action)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"success": false, "message": "Too many requests, try later"})
		default:
			log.WarnContext(c.Request.Context(), "limiter unavailable, allowing request", "action", action, "err", err)
			c.Next()
		}
	}
}
