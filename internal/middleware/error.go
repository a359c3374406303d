// File: internal/middleware/error.go
package middleware

import (
	"auth_api/internal/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorHandler converts errors attached with c.Error into API error responses.
// common.RespondWithError defers to it for every error that is not an *APIError.
func ErrorHandler(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(common.ErrorHandlerKey, true)
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		ginErr := c.Errors.Last()
		if apiErr, ok := common.IsAPIError(ginErr.Err); ok {
			c.AbortWithStatusJSON(apiErr.StatusCode, apiErr)
			return
		}
		logger.Error("Unhandled application error",
			zap.Error(ginErr.Err),
			zap.String("path", c.Request.URL.Path),
			zap.Any("meta", ginErr.Meta),
			zap.String("request_id", c.GetString(RequestIDContextKey)),
		)
		genericError := common.ErrInternalServer.WithDetails("An unexpected error occurred.")
		if gin.Mode() == gin.DebugMode {
			genericError = common.ErrInternalServer.WithDetails(ginErr.Err.Error())
		}
		c.AbortWithStatusJSON(genericError.StatusCode, genericError)
	}
}

// NoRoute answers unknown paths with the API error envelope.
func NoRoute() gin.HandlerFunc {
	return func(c *gin.Context) {
		common.RespondWithError(c, common.ErrNotFound.WithDetails("The requested endpoint does not exist."))
	}
}

// NoMethod answers known paths requested with an unsupported method.
func NoMethod() gin.HandlerFunc {
	return func(c *gin.Context) {
		common.RespondWithError(c, common.ErrMethodNotAllowed)
	}
}
