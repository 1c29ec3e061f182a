package handlers

import (
	"net/http"

	"workbridge_backend/internal/middleware"
	"workbridge_backend/internal/services"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	*BaseHandler
	notificationService *services.NotificationService
}

func NewNotificationHandler(base *BaseHandler, notificationService *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{BaseHandler: base, notificationService: notificationService}
}

func (h *NotificationHandler) RegisterRoutes(r *gin.RouterGroup) {
	notifications := r.Group("/notifications")
	notifications.Use(middleware.AuthMiddleware())
	{
		notifications.GET("", h.List)
		notifications.GET("/unread-count", h.UnreadCount)
		notifications.PUT("/:notificationId/read", h.MarkRead)
		notifications.PUT("/read-all", h.MarkAllRead)
		notifications.DELETE("/:notificationId", h.Delete)
	}
}

func (h *NotificationHandler) List(c *gin.Context) {
	userID, ok := h.RequireUserID(c)
	if !ok {
		return
	}

	limit, offset := ParsePagination(c)
	unreadOnly := c.Query("unread") == "true"

	notifications, total, err := h.notificationService.List(userID, unreadOnly, limit, offset)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notifications, "total": total})
}

func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	userID, ok := h.RequireUserID(c)
	if !ok {
		return
	}

	count, err := h.notificationService.UnreadCount(userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID, ok := h.RequireUserID(c)
	if !ok {
		return
	}

	if err := h.notificationService.MarkRead(userID, c.Param("notificationId")); err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID, ok := h.RequireUserID(c)
	if !ok {
		return
	}

	if err := h.notificationService.MarkAllRead(userID); err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *NotificationHandler) Delete(c *gin.Context) {
	userID, ok := h.RequireUserID(c)
	if !ok {
		return
	}

	if err := h.notificationService.Delete(userID, c.Param("notificationId")); err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
