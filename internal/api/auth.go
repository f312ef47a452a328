package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const ctxUserID = "userID"

// CronAuthMiddleware protects the scheduler and webhook endpoints. The
// caller presents the shared secret either as "x-cron-secret" or as a bearer
// token. An unconfigured secret disables the endpoints entirely rather than
// leaving them open.
func CronAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Cron endpoints disabled: CRON_SECRET is not configured"})
			c.Abort()
			return
		}

		presented := c.GetHeader("x-cron-secret")
		if presented == "" {
			presented = bearerToken(c)
		}
		// Constant-time comparison to prevent timing-based secret enumeration.
		if subtle.ConstantTimeCompare([]byte(presented), []byte(secret)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid cron secret"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// SessionAuthMiddleware resolves the caller's session token to a user id.
// The token travels either in the "pl_session" cookie or as a bearer token.
func (s *Server) SessionAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			if cookie, err := c.Cookie("pl_session"); err == nil {
				token = cookie
			}
		}
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing session"})
			c.Abort()
			return
		}

		uid, err := s.store.GetUserIDBySession(c.Request.Context(), token, s.now())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Session lookup failed"})
			c.Abort()
			return
		}
		if uid == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired session"})
			c.Abort()
			return
		}

		c.Set(ctxUserID, uid)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}
