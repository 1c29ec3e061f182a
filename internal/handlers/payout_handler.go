package handlers

import (
	"net/http"

	"workbridge_backend/internal/middleware"
	"workbridge_backend/internal/models"
	"workbridge_backend/internal/services"

	"github.com/gin-gonic/gin"
)

type PayoutHandler struct {
	*BaseHandler
	payoutService *services.PayoutService
}

func NewPayoutHandler(base *BaseHandler, payoutService *services.PayoutService) *PayoutHandler {
	return &PayoutHandler{BaseHandler: base, payoutService: payoutService}
}

func (h *PayoutHandler) RegisterRoutes(r *gin.RouterGroup) {
	payouts := r.Group("/payouts")
	payouts.Use(middleware.AuthMiddleware())
	{
		payouts.GET("", h.List)
		payouts.PUT("/:payoutId/status",
			middleware.RequireRoles(models.UserRoleAdmin), h.SetStatus)
	}
}

func (h *PayoutHandler) List(c *gin.Context) {
	userID, ok := h.RequireUserID(c)
	if !ok {
		return
	}

	payouts, err := h.payoutService.ListFor(userID, middleware.GetRole(c))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payouts": payouts})
}

type setPayoutStatusRequest struct {
	Status models.PayoutStatus `json:"status" validate:"required,oneof=paid failed"`
}

func (h *PayoutHandler) SetStatus(c *gin.Context) {
	var req setPayoutStatusRequest
	if !h.BindAndValidateJSON(c, &req) {
		return
	}

	payout, err := h.payoutService.SetStatus(c.Param("payoutId"), req.Status)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, payout)
}
