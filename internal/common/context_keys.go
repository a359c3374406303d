// File: internal/common/context_keys.go
package common

const (
	// AuthorizationHeader is the header name for authorization token
	AuthorizationHeader = "Authorization"
	// AuthorizationTypeBearer is the prefix for Bearer tokens
	AuthorizationTypeBearer = "Bearer"
	// UserIDKey is the context key for storing the authenticated user's internal ID
	UserIDKey = "userID"
	// UserUUIDKey is the context key for storing the authenticated user's public UUID
	UserUUIDKey = "userUUID"
	// UserRoleKey is the context key for storing the authenticated user's role
	UserRoleKey = "userRole"
	// TokenClaimsKey stores the verified token claims
	TokenClaimsKey = "tokenClaims"
	// LoggerKey stores the request-scoped logger
	LoggerKey = "logger"
	// ErrorHandlerKey marks requests whose unexpected errors are answered by the error middleware
	ErrorHandlerKey = "errorHandler"
)
