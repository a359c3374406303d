// File: internal/common/context_helpers.go
package common

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// GetTokenFromContext retrieves the JWT token string from the Authorization header.
// Returns an empty string if not found.
func GetTokenFromContext(c *gin.Context) string {
	authHeader := c.GetHeader(AuthorizationHeader)
	if authHeader == "" {
		return ""
	}
	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], AuthorizationTypeBearer) {
		return ""
	}
	return parts[1]
}

// GetUserIDFromContext retrieves the user ID from the Gin context.
// Returns uuid.Nil if not found or not a UUID.
func GetUserIDFromContext(c *gin.Context) uuid.UUID {
	return uuidFromContext(c, UserIDKey)
}

// GetUserUUIDFromContext retrieves the public user UUID from the Gin context.
func GetUserUUIDFromContext(c *gin.Context) uuid.UUID {
	return uuidFromContext(c, UserUUIDKey)
}

// GetUserRoleFromContext retrieves the user role from the Gin context.
func GetUserRoleFromContext(c *gin.Context) string {
	val, exists := c.Get(UserRoleKey)
	if !exists {
		return ""
	}
	role, ok := val.(string)
	if !ok {
		return ""
	}
	return role
}

func uuidFromContext(c *gin.Context, key string) uuid.UUID {
	val, exists := c.Get(key)
	if !exists {
		return uuid.Nil
	}
	id, ok := val.(uuid.UUID)
	if !ok {
		return uuid.Nil
	}
	return id
}
