package routes

import (
	"net/http"

	"workbridge_backend/internal/handlers"
	"workbridge_backend/internal/middleware"
	"workbridge_backend/ws"

	"github.com/gin-gonic/gin"
)

// Handlers aggregates everything the router mounts.
type Handlers struct {
	Auth         *handlers.AuthHandler
	Profile      *handlers.ProfileHandler
	Job          *handlers.JobHandler
	Proposal     *handlers.ProposalHandler
	Message      *handlers.MessageHandler
	Notification *handlers.NotificationHandler
	Payout       *handlers.PayoutHandler
	Admin        *handlers.AdminHandler
}

func RegisterRoutes(router *gin.Engine, h *Handlers, wsHandler *ws.Handler) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")
	{
		h.Auth.RegisterRoutes(api)
		h.Profile.RegisterRoutes(api)
		h.Job.RegisterRoutes(api)
		h.Proposal.RegisterRoutes(api)
		h.Message.RegisterRoutes(api)
		h.Notification.RegisterRoutes(api)
		h.Payout.RegisterRoutes(api)
		h.Admin.RegisterRoutes(api)
	}

	// The realtime entry point. Auth middleware accepts the JWT as a
	// query parameter here; see middleware.AuthMiddleware.
	router.GET("/ws", middleware.AuthMiddleware(), wsHandler.ServeWS)
}
