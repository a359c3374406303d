// File: internal/auth/handler.go
package auth

import (
	"auth_api/internal/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// LoginRequest defines the structure for login requests.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// GoogleLoginRequest carries the authorization code obtained by the client.
type GoogleLoginRequest struct {
	Code string `json:"code"`
}

// Handler struct holds dependencies for auth handlers.
type Handler struct {
	service Service
	logger  *zap.Logger
}

// NewHandler creates a new auth handler.
func NewHandler(service Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger.Named("AuthHandler"),
	}
}

// RegisterRoutes sets up the routes for authentication operations.
// accessMW and refreshMW admit only access or refresh tokens respectively.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup, accessMW, refreshMW gin.HandlerFunc) {
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", h.login)
		authGroup.POST("/login/google", h.loginGoogle)
		authGroup.POST("/refresh", refreshMW, h.refresh)
		authGroup.DELETE("/revoke_access", accessMW, h.revoke)
		authGroup.DELETE("/revoke_refresh", refreshMW, h.revoke)
	}
}

func (h *Handler) login(c *gin.Context) {
	var req LoginRequest
	if !bindJSONBody(c, &req) {
		return
	}
	pair, err := h.service.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Login successful.", pair)
}

func (h *Handler) loginGoogle(c *gin.Context) {
	var req GoogleLoginRequest
	if !bindJSONBody(c, &req) {
		return
	}
	pair, err := h.service.LoginWithGoogle(c.Request.Context(), req.Code)
	if err != nil {
		if apiErr, ok := common.IsAPIError(err); ok && apiErr.StatusCode >= 500 {
			h.logger.Error("Google login failed", zap.Error(err))
		}
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Google login successful.", pair)
}

func (h *Handler) refresh(c *gin.Context) {
	claims := ClaimsFromContext(c)
	if claims == nil {
		common.RespondWithError(c, common.ErrUnauthorized)
		return
	}
	pair, err := h.service.Refresh(c.Request.Context(), claims)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Token refreshed successfully.", pair)
}

func (h *Handler) revoke(c *gin.Context) {
	claims := ClaimsFromContext(c)
	if claims == nil {
		common.RespondWithError(c, common.ErrUnauthorized)
		return
	}
	if err := h.service.Revoke(c.Request.Context(), claims); err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "token revoked", nil)
}

// bindJSONBody rejects non-JSON requests the same way for every auth endpoint.
func bindJSONBody(c *gin.Context, dst interface{}) bool {
	if c.ContentType() != gin.MIMEJSON {
		common.RespondWithError(c, ErrMissingJSON)
		return false
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		common.RespondWithError(c, ErrMissingJSON.WithDetails(err.Error()))
		return false
	}
	return true
}

// ClaimsFromContext returns the claims stored by the auth middleware, or nil.
func ClaimsFromContext(c *gin.Context) *Claims {
	val, exists := c.Get(common.TokenClaimsKey)
	if !exists {
		return nil
	}
	claims, ok := val.(*Claims)
	if !ok {
		return nil
	}
	return claims
}
