package ws

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"workbridge_backend/internal/logger"
	"workbridge_backend/internal/middleware"
	"workbridge_backend/internal/realtime"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type Handler struct {
	manager  *Manager
	service  *realtime.Service
	upgrader websocket.Upgrader
}

func NewHandler(manager *Manager, service *realtime.Service, allowedOrigin string) *Handler {
	return &Handler{
		manager: manager,
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return originAllowed(allowedOrigin, r)
			},
		},
	}
}

// originAllowed accepts same-host upgrades and, when configured, the
// frontend origin. Non-browser clients send no Origin header and pass.
func originAllowed(allowed string, r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if allowed != "" && strings.EqualFold(strings.TrimSuffix(origin, "/"), strings.TrimSuffix(allowed, "/")) {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// ServeWS upgrades an authenticated request to a websocket and spins up
// the connection's private realtime session. Auth runs in middleware; the
// browser passes its JWT as a `token` query parameter since it cannot set
// headers on websocket upgrades.
func (h *Handler) ServeWS(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("ws upgrade failed", "user_id", userID, "error", err)
		return
	}

	client := &Client{
		UserID:  userID,
		conn:    conn,
		send:    make(chan OutgoingFrame, sendCap),
		manager: h.manager,
	}

	session, err := h.service.NewSession(userID, client)
	if err != nil {
		logger.Warn("ws session rejected", "user_id", userID, "error", err)
		conn.WriteJSON(OutgoingFrame{Type: FrameSessionClose, Data: closePayload{Reason: "unauthorized"}})
		conn.Close()
		return
	}
	client.ID = session.ID()
	client.session = session

	h.manager.register <- client

	// The request context dies when this handler returns; the session
	// lives until the socket closes.
	go session.Run(context.Background())
	go client.writePump()
	go client.readPump()
}
