package handlers

import (
	"net/http"

	"workbridge_backend/internal/middleware"
	"workbridge_backend/internal/models"
	"workbridge_backend/internal/services"
	"workbridge_backend/internal/services/dto"

	"github.com/gin-gonic/gin"
)

type ProfileHandler struct {
	*BaseHandler
	profileService *services.ProfileService
}

func NewProfileHandler(base *BaseHandler, profileService *services.ProfileService) *ProfileHandler {
	return &ProfileHandler{BaseHandler: base, profileService: profileService}
}

func (h *ProfileHandler) RegisterRoutes(r *gin.RouterGroup) {
	profiles := r.Group("/profiles")
	profiles.Use(middleware.AuthMiddleware())
	{
		profiles.PUT("/freelancer", middleware.RequireRoles(models.UserRoleFreelancer), h.UpsertFreelancer)
		profiles.PUT("/employer", middleware.RequireRoles(models.UserRoleEmployer), h.UpsertEmployer)
		profiles.GET("/freelancer/:userId", h.GetFreelancer)
		profiles.GET("/employer/:userId", h.GetEmployer)
	}
}

func (h *ProfileHandler) UpsertFreelancer(c *gin.Context) {
	userID, ok := h.RequireUserID(c)
	if !ok {
		return
	}

	var req dto.UpsertFreelancerProfileRequest
	if !h.BindAndValidateJSON(c, &req) {
		return
	}

	profile, err := h.profileService.UpsertFreelancerProfile(userID, &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *ProfileHandler) UpsertEmployer(c *gin.Context) {
	userID, ok := h.RequireUserID(c)
	if !ok {
		return
	}

	var req dto.UpsertEmployerProfileRequest
	if !h.BindAndValidateJSON(c, &req) {
		return
	}

	profile, err := h.profileService.UpsertEmployerProfile(userID, &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *ProfileHandler) GetFreelancer(c *gin.Context) {
	profile, err := h.profileService.GetFreelancerProfile(c.Param("userId"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *ProfileHandler) GetEmployer(c *gin.Context) {
	profile, err := h.profileService.GetEmployerProfile(c.Param("userId"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}
