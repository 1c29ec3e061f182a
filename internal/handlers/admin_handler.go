package handlers

import (
	"net/http"

	"workbridge_backend/internal/middleware"
	"workbridge_backend/internal/models"
	"workbridge_backend/internal/services"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	*BaseHandler
	adminService *services.AdminService
}

func NewAdminHandler(base *BaseHandler, adminService *services.AdminService) *AdminHandler {
	return &AdminHandler{BaseHandler: base, adminService: adminService}
}

func (h *AdminHandler) RegisterRoutes(r *gin.RouterGroup) {
	admin := r.Group("/admin")
	admin.Use(middleware.AuthMiddleware(), middleware.RequireRoles(models.UserRoleAdmin))
	{
		admin.PUT("/users/:userId/status", h.SetUserStatus)
	}
}

type setUserStatusRequest struct {
	Status models.UserStatus `json:"status" validate:"required,oneof=active banned"`
}

func (h *AdminHandler) SetUserStatus(c *gin.Context) {
	var req setUserStatusRequest
	if !h.BindAndValidateJSON(c, &req) {
		return
	}

	user, err := h.adminService.SetUserStatus(c.Param("userId"), req.Status)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
