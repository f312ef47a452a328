package api

import (
	"log"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// RateLimitMiddleware enforces a fixed-window limit per caller. The counter
// lives in the database so the limit holds across replicas; one authenticated
// user cannot dodge it by switching connections. Unauthenticated callers are
// keyed by client IP.
func (s *Server) RateLimitMiddleware(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := userID(c)
		if caller == "" {
			caller = c.ClientIP()
		}
		key := "rl:" + scope + ":" + caller

		now := s.now()
		counter, err := s.store.IncrementRateLimit(c.Request.Context(), key, s.cfg.RateLimitWindow, now)
		if err != nil {
			// Rate limiting must not take the API down with it.
			log.Printf("[RateLimit] counter bump failed for %s: %v", key, err)
			c.Next()
			return
		}

		if counter.Count > s.cfg.RateLimitPerWindow {
			retryAfter := int(math.Ceil(counter.ExpiresAt.Sub(now).Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":             "Rate limit exceeded",
				"retryAfterSeconds": retryAfter,
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
