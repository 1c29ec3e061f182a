package handlers

import (
	"net/http"

	"workbridge_backend/internal/middleware"
	"workbridge_backend/internal/models"
	"workbridge_backend/internal/services"
	"workbridge_backend/internal/services/dto"

	"github.com/gin-gonic/gin"
)

type ProposalHandler struct {
	*BaseHandler
	proposalService *services.ProposalService
}

func NewProposalHandler(base *BaseHandler, proposalService *services.ProposalService) *ProposalHandler {
	return &ProposalHandler{BaseHandler: base, proposalService: proposalService}
}

func (h *ProposalHandler) RegisterRoutes(r *gin.RouterGroup) {
	proposals := r.Group("/proposals")
	proposals.Use(middleware.AuthMiddleware())
	{
		freelancer := proposals.Group("")
		freelancer.Use(middleware.RequireRoles(models.UserRoleFreelancer))
		{
			freelancer.POST("", h.Create)
			freelancer.GET("/mine", h.ListMine)
			freelancer.POST("/:proposalId/withdraw", h.Withdraw)
		}

		employer := proposals.Group("")
		employer.Use(middleware.RequireRoles(models.UserRoleEmployer))
		{
			employer.GET("/job/:jobId", h.ListForJob)
			employer.PUT("/:proposalId/status", h.Decide)
		}
	}
}

func (h *ProposalHandler) Create(c *gin.Context) {
	userID, ok := h.RequireUserID(c)
	if !ok {
		return
	}

	var req dto.CreateProposalRequest
	if !h.BindAndValidateJSON(c, &req) {
		return
	}

	proposal, err := h.proposalService.Create(userID, &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, proposal)
}

func (h *ProposalHandler) Decide(c *gin.Context) {
	userID, ok := h.RequireUserID(c)
	if !ok {
		return
	}

	var req dto.UpdateProposalStatusRequest
	if !h.BindAndValidateJSON(c, &req) {
		return
	}

	proposal, err := h.proposalService.Decide(userID, c.Param("proposalId"), &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, proposal)
}

func (h *ProposalHandler) Withdraw(c *gin.Context) {
	userID, ok := h.RequireUserID(c)
	if !ok {
		return
	}

	proposal, err := h.proposalService.Withdraw(userID, c.Param("proposalId"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, proposal)
}

func (h *ProposalHandler) ListForJob(c *gin.Context) {
	userID, ok := h.RequireUserID(c)
	if !ok {
		return
	}

	limit, offset := ParsePagination(c)
	resp, err := h.proposalService.ListForJob(userID, c.Param("jobId"), limit, offset)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ProposalHandler) ListMine(c *gin.Context) {
	userID, ok := h.RequireUserID(c)
	if !ok {
		return
	}

	limit, offset := ParsePagination(c)
	resp, err := h.proposalService.ListMine(userID, limit, offset)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
