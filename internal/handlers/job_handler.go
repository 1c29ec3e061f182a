package handlers

import (
	"net/http"

	"workbridge_backend/internal/middleware"
	"workbridge_backend/internal/models"
	"workbridge_backend/internal/services"
	"workbridge_backend/internal/services/dto"

	"github.com/gin-gonic/gin"
)

type JobHandler struct {
	*BaseHandler
	jobService *services.JobService
}

func NewJobHandler(base *BaseHandler, jobService *services.JobService) *JobHandler {
	return &JobHandler{BaseHandler: base, jobService: jobService}
}

func (h *JobHandler) RegisterRoutes(r *gin.RouterGroup) {
	jobs := r.Group("/jobs")
	jobs.Use(middleware.AuthMiddleware())
	{
		jobs.GET("", h.ListOpen)
		jobs.GET("/:jobId", h.Get)

		employer := jobs.Group("")
		employer.Use(middleware.RequireRoles(models.UserRoleEmployer))
		{
			employer.POST("", h.Create)
			employer.GET("/mine", h.ListMine)
			employer.PUT("/:jobId", h.Update)
			employer.POST("/:jobId/publish", h.Publish)
			employer.POST("/:jobId/close", h.Close)
		}
	}
}

func (h *JobHandler) Create(c *gin.Context) {
	userID, ok := h.RequireUserID(c)
	if !ok {
		return
	}

	var req dto.CreateJobRequest
	if !h.BindAndValidateJSON(c, &req) {
		return
	}

	job, err := h.jobService.Create(userID, &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, job)
}

func (h *JobHandler) Update(c *gin.Context) {
	userID, ok := h.RequireUserID(c)
	if !ok {
		return
	}

	var req dto.UpdateJobRequest
	if !h.BindAndValidateJSON(c, &req) {
		return
	}

	job, err := h.jobService.Update(userID, c.Param("jobId"), &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *JobHandler) Publish(c *gin.Context) {
	userID, ok := h.RequireUserID(c)
	if !ok {
		return
	}

	job, err := h.jobService.Publish(userID, c.Param("jobId"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *JobHandler) Close(c *gin.Context) {
	userID, ok := h.RequireUserID(c)
	if !ok {
		return
	}

	cancelled := c.Query("cancelled") == "true"
	job, err := h.jobService.Close(userID, c.Param("jobId"), cancelled)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *JobHandler) Get(c *gin.Context) {
	job, err := h.jobService.Get(c.Param("jobId"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *JobHandler) ListOpen(c *gin.Context) {
	limit, offset := ParsePagination(c)
	resp, err := h.jobService.ListOpen(limit, offset)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *JobHandler) ListMine(c *gin.Context) {
	userID, ok := h.RequireUserID(c)
	if !ok {
		return
	}

	limit, offset := ParsePagination(c)
	resp, err := h.jobService.ListMine(userID, limit, offset)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
