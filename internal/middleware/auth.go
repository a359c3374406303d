// File: internal/middleware/auth.go
package middleware

import (
	"context"

	"auth_api/internal/auth"
	"auth_api/internal/common"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TokenVerifier validates a raw bearer token of the expected type.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, raw string, expectedType string) (*auth.Claims, error)
}

// AuthMiddleware creates a Gin middleware for JWT authentication that admits only tokenType tokens.
func AuthMiddleware(verifier TokenVerifier, tokenType string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader(common.AuthorizationHeader) == "" {
			logger.Debug("Authorization header missing")
			common.RespondWithError(c, common.ErrUnauthorized.WithDetails("Missing Authorization Header"))
			return
		}
		tokenString := common.GetTokenFromContext(c)
		if tokenString == "" {
			common.RespondWithError(c, common.ErrUnauthorized.WithDetails("Authorization header format must be 'Bearer <token>'."))
			return
		}

		claims, err := verifier.VerifyToken(c.Request.Context(), tokenString, tokenType)
		if err != nil {
			logger.Debug("Token rejected", zap.String("expected_type", tokenType), zap.Error(err))
			common.RespondWithError(c, err)
			return
		}

		c.Set(common.UserIDKey, claims.UserID())
		c.Set(common.UserRoleKey, claims.Role)
		if id := claims.UserUUID(); id != uuid.Nil {
			c.Set(common.UserUUIDKey, id)
		}
		c.Set(common.TokenClaimsKey, claims)
		c.Next()
	}
}

// RoleAuthMiddleware creates a middleware to check if the authenticated user has one of the required roles.
func RoleAuthMiddleware(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole := common.GetUserRoleFromContext(c)
		for _, role := range allowedRoles {
			if userRole == role {
				c.Next()
				return
			}
		}
		common.RespondWithError(c, common.ErrForbidden.WithDetails("You do not have sufficient permissions for this resource."))
	}
}

// RequireAdmin admits admins only.
func RequireAdmin() gin.HandlerFunc {
	return RoleAuthMiddleware(common.RoleAdmin)
}

// UserOrAdmin admits admins and the user whose external uuid is in the named path parameter.
func UserOrAdmin(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if common.GetUserRoleFromContext(c) == common.RoleAdmin {
			c.Next()
			return
		}
		target, err := uuid.Parse(c.Param(param))
		caller := common.GetUserUUIDFromContext(c)
		if err != nil || caller == uuid.Nil || caller != target {
			common.RespondWithError(c, common.ErrForbidden.WithDetails("You are not authorized to access this user."))
			return
		}
		c.Next()
	}
}
