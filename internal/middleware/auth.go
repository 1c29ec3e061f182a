package middleware

import (
	"net/http"
	"strings"

	"workbridge_backend/internal/auth"
	"workbridge_backend/internal/models"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware validates the Bearer JWT and stores claims in the context.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		tokenStr := ""

		switch {
		case strings.HasPrefix(authHeader, "Bearer "):
			tokenStr = strings.TrimPrefix(authHeader, "Bearer ")
		case c.Query("token") != "":
			// Browser WebSocket clients cannot set headers on the upgrade
			// request, so /ws accepts the token as a query parameter.
			tokenStr = c.Query("token")
		default:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header missing or invalid"})
			return
		}

		claims, err := auth.ParseToken(tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		c.Set("userID", claims.UserID)
		c.Set("role", claims.Role)
		c.Next()
	}
}

// RequireRoles restricts a route to the given roles.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	roleSet := make(map[models.UserRole]bool)
	for _, r := range roles {
		roleSet[r] = true
	}

	return func(c *gin.Context) {
		roleVal, exists := c.Get("role")
		if !exists {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied: no role"})
			return
		}

		role, ok := roleVal.(models.UserRole)
		if !ok {
			roleStr, isString := roleVal.(string)
			if !isString {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied: invalid role type"})
				return
			}
			role = models.UserRole(roleStr)
		}

		if !roleSet[role] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied: insufficient permissions"})
			return
		}

		c.Next()
	}
}

// GetUserID extracts the authenticated user ID from the gin context.
func GetUserID(c *gin.Context) string {
	userID, exists := c.Get("userID")
	if !exists {
		return ""
	}
	id, _ := userID.(string)
	return id
}

// GetRole extracts the authenticated role from the gin context.
func GetRole(c *gin.Context) models.UserRole {
	roleVal, exists := c.Get("role")
	if !exists {
		return ""
	}
	switch r := roleVal.(type) {
	case models.UserRole:
		return r
	case string:
		return models.UserRole(r)
	}
	return ""
}
