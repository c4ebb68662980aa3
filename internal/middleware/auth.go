package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"securesign/internal/services"
)

const (
	SessionCookieName = "token"

	ctxUserID = "user_id"
	ctxClaims = "session_claims"
)

// SessionToken returns the session token from the cookie, falling back to an
// Authorization: Bearer header.
func SessionToken(c *gin.Context) string {
	if v, err := c.Cookie(SessionCookieName); err == nil && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

func AuthMiddleware(sessions services.SessionService, log *slog.Logger) gin.HandlerFunc {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "auth-middleware")

	return func(c *gin.Context) {
		// пропускаем preflight
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		tokenStr := SessionToken(c)
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Unauthorized - no token provided"})
			return
		}

		claims, err := sessions.Parse(tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Unauthorized - invalid token"})
			return
		}

		revoked, err := sessions.IsRevoked(c.Request.Context(), claims)
		if err != nil {
			// Redis недоступен: подпись и срок уже проверены, пропускаем
			log.WarnContext(c.Request.Context(), "revocation lookup failed", "user_id", claims.UserID, "err", err)
		}
		if revoked {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Unauthorized - invalid token"})
			return
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxClaims, claims)
		c.Next()
	}
}

// UserID returns the authenticated account id set by AuthMiddleware.
func UserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(ctxUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}
