package middleware

import (
	"errors"   // Error inspection
	"net/http" // HTTP status codes

	"elimu_payments/internal/domain" // Role constants
	"elimu_payments/internal/store"  // User lookups

	"github.com/gin-gonic/gin" // Gin web framework
)

// AdminOnlyMiddleware checks the user's role from the database on each request
func AdminOnlyMiddleware(users *store.UserStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := UserID(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		user, err := users.Get(c.Request.Context(), userID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			Log(c).WithError(err).Error("Failed to load user role")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
			return
		}
		// Unknown users and non-admins are treated alike
		if err != nil || user.Role != domain.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}
		c.Next()
	}
}
