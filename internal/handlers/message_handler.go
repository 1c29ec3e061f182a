package handlers

import (
	"net/http"

	"workbridge_backend/internal/middleware"
	"workbridge_backend/internal/services"
	"workbridge_backend/internal/services/dto"

	"github.com/gin-gonic/gin"
)

type MessageHandler struct {
	*BaseHandler
	messageService *services.MessageService
}

func NewMessageHandler(base *BaseHandler, messageService *services.MessageService) *MessageHandler {
	return &MessageHandler{BaseHandler: base, messageService: messageService}
}

func (h *MessageHandler) RegisterRoutes(r *gin.RouterGroup) {
	dialogs := r.Group("/dialogs")
	dialogs.Use(middleware.AuthMiddleware())
	{
		dialogs.GET("", h.ListDialogs)
		dialogs.POST("", h.StartDialog)
		dialogs.GET("/:dialogId/messages", h.ListMessages)
		dialogs.POST("/messages", h.SendMessage)
		dialogs.PUT("/messages/:messageId/read", h.MarkRead)
	}
}

func (h *MessageHandler) StartDialog(c *gin.Context) {
	userID, ok := h.RequireUserID(c)
	if !ok {
		return
	}

	var req dto.StartDialogRequest
	if !h.BindAndValidateJSON(c, &req) {
		return
	}

	message, err := h.messageService.StartDialog(userID, &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, message)
}

func (h *MessageHandler) SendMessage(c *gin.Context) {
	userID, ok := h.RequireUserID(c)
	if !ok {
		return
	}

	var req dto.SendMessageRequest
	if !h.BindAndValidateJSON(c, &req) {
		return
	}

	message, err := h.messageService.SendMessage(userID, &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, message)
}

func (h *MessageHandler) ListDialogs(c *gin.Context) {
	userID, ok := h.RequireUserID(c)
	if !ok {
		return
	}

	dialogs, err := h.messageService.ListDialogs(userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"dialogs": dialogs})
}

func (h *MessageHandler) ListMessages(c *gin.Context) {
	userID, ok := h.RequireUserID(c)
	if !ok {
		return
	}

	limit, offset := ParsePagination(c)
	resp, err := h.messageService.ListMessages(userID, c.Param("dialogId"), limit, offset)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *MessageHandler) MarkRead(c *gin.Context) {
	userID, ok := h.RequireUserID(c)
	if !ok {
		return
	}

	if err := h.messageService.MarkRead(userID, c.Param("messageId")); err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
