// File: internal/user/handler.go
package user

import (
	"errors"

	"auth_api/internal/common"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler struct holds dependencies for user handlers.
type Handler struct {
	service Service
	logger  *zap.Logger
}

// NewHandler creates a new user handler.
func NewHandler(service Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger.Named("UserHandler"),
	}
}

// RouteGuards are the middlewares the user routes are mounted behind.
type RouteGuards struct {
	Access      gin.HandlerFunc // valid, unrevoked access token
	Admin       gin.HandlerFunc // caller has the admin role
	UserOrAdmin gin.HandlerFunc // caller is admin or owns :user_uuid
}

// RegisterRoutes sets up the routes for user operations.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup, guards RouteGuards) {
	userGroup := router.Group("/users")
	userGroup.Use(guards.Access)
	{
		userGroup.GET("", guards.Admin, h.list)
		userGroup.GET("/public", h.publicInfo)
		userGroup.GET("/:user_uuid", guards.UserOrAdmin, h.get)
		userGroup.PUT("/:user_uuid", guards.Admin, h.upsert)
		userGroup.DELETE("/:user_uuid", guards.Admin, h.delete)
		userGroup.PUT("/:user_uuid/password", guards.UserOrAdmin, h.changePassword)
	}
}

func (h *Handler) list(c *gin.Context) {
	page := common.GetPaginationParams(c)
	users, total, err := h.service.List(c.Request.Context(), page)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondPaginated(c, "Users retrieved successfully.", ToUserResponses(users),
		common.NewPagination(total, page.Page, page.Limit()))
}

func (h *Handler) publicInfo(c *gin.Context) {
	raw := c.QueryArray("uuids")
	if len(raw) == 0 {
		common.RespondWithError(c, common.NewValidationAPIError(map[string]string{"uuids": "The uuids query parameter is required."}))
		return
	}
	ids := make([]uuid.UUID, 0, len(raw))
	for _, v := range raw {
		id, err := uuid.Parse(v)
		if err != nil {
			common.RespondWithError(c, common.NewValidationAPIError(map[string]string{"uuids": "Not a valid UUID: " + v}))
			return
		}
		ids = append(ids, id)
	}

	users, err := h.service.PublicInfo(c.Request.Context(), ids)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	out := make([]PublicResponse, 0, len(users))
	for _, u := range users {
		out = append(out, ToPublicResponse(u))
	}
	common.RespondOK(c, "Users retrieved successfully.", out)
}

func (h *Handler) get(c *gin.Context) {
	id, ok := h.userUUIDParam(c)
	if !ok {
		return
	}
	usr, err := h.service.GetByUUID(c.Request.Context(), id)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "User retrieved successfully.", gin.H{"user": ToUserResponse(usr)})
}

func (h *Handler) upsert(c *gin.Context) {
	id, ok := h.userUUIDParam(c)
	if !ok {
		return
	}
	var req UpsertUserRequest
	if !h.bindJSON(c, &req) {
		return
	}

	usr, created, err := h.service.Upsert(c.Request.Context(), id, req)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	if created {
		common.RespondCreated(c, "user created", gin.H{"user": ToUserResponse(usr)})
		return
	}
	common.RespondOK(c, "user updated", gin.H{"user": ToUserResponse(usr)})
}

func (h *Handler) delete(c *gin.Context) {
	id, ok := h.userUUIDParam(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "user deleted", nil)
}

func (h *Handler) changePassword(c *gin.Context) {
	id, ok := h.userUUIDParam(c)
	if !ok {
		return
	}
	var req ChangePasswordRequest
	if !h.bindJSON(c, &req) {
		return
	}
	if err := h.service.ChangePassword(c.Request.Context(), id, req.NewPassword); err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondNoContent(c)
}

func (h *Handler) userUUIDParam(c *gin.Context) (uuid.UUID, bool) {
	paramID := c.Param("user_uuid")
	id, err := uuid.Parse(paramID)
	if err != nil {
		h.logger.Debug("Invalid user uuid in URL parameter", zap.String("param", paramID), zap.Error(err))
		common.RespondWithError(c, common.ErrBadRequest.WithDetails("Invalid user uuid format."))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			common.RespondWithError(c, common.NewValidationAPIError(common.FormatValidationErrors(ve)))
			return false
		}
		h.logger.Debug("Invalid request body", zap.Error(err))
		common.RespondWithError(c, common.ErrBadRequest.WithDetails("Missing JSON in request"))
		return false
	}
	return true
}
