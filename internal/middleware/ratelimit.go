package middleware

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"certflow/internal/port"
)

// RateLimit limits a route group per caller (organization and user) under
// scope. A limiter failure lets the request through.
func RateLimit(limiter port.RateLimiter, scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID, _ := GetOrgID(c)
		userID, _ := GetUserID(c)
		key := scope + ":" + orgID.String() + ":" + userID.String()

		decision, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			zap.L().Warn("middleware.RateLimit: limiter unavailable", zap.String("scope", scope), zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		if !decision.Allowed {
			retryAfter := int(math.Ceil(decision.ResetIn.Seconds()))
			c.Header("Retry-After", strconv.Itoa(max(retryAfter, 1)))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error": gin.H{
					"code":      "RATE_LIMITED",
					"message":   "too many requests; retry later",
					"retryable": true,
				},
			})
			return
		}
		c.Next()
	}
}
