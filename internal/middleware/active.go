package middleware

import (
	"errors"
	"net/http"

	"fieldserve/internal/repository"

	"github.com/gin-gonic/gin"
)

// ActiveUser rejects tokens whose account no longer exists or was deactivated,
// and tokens whose role no longer matches the account. Use after AuthRequired.
func ActiveUser(users *repository.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := GetUserID(c)
		if userID == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		u, err := users.GetByID(c.Request.Context(), userID)
		if errors.Is(err, repository.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "account not found"})
			return
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if !u.IsActive {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "account is disabled"})
			return
		}
		if u.Role != c.GetString("role") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token role is stale"})
			return
		}
		c.Next()
	}
}
