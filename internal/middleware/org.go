package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// OrgGuard returns middleware that ensures an organization context is present.
// It relies on AuthMiddleware having already set org_id.
func OrgGuard() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID, err := GetOrgID(c)
		if err != nil || orgID == uuid.Nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   gin.H{"code": "UNAUTHORIZED", "message": "organization context required"},
			})
			return
		}
		c.Next()
	}
}
