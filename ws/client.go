package ws

import (
	"encoding/json"
	"sync"
	"time"

	"workbridge_backend/internal/logger"
	"workbridge_backend/internal/realtime"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	sendCap   = 256
)

// Frame types pushed to the browser.
const (
	FrameCacheChange  = "cache_change"
	FrameToast        = "toast"
	FrameUnreadCount  = "unread_count"
	FrameConnectivity = "connectivity"
	FrameSessionClose = "session_closed"
)

// IncomingMessage is one client request over the socket.
type IncomingMessage struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

// OutgoingFrame is one server push.
type OutgoingFrame struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type unreadPayload struct {
	EntityType realtime.EntityType `json:"entity_type"`
	Count      int                 `json:"count"`
}

type connectivityPayload struct {
	Connected bool `json:"connected"`
}

type closePayload struct {
	Reason string `json:"reason"`
}

// Client is one websocket connection. It implements realtime.Sink: the
// session loop pushes frames through the buffered send channel and never
// touches the connection directly.
type Client struct {
	ID     string
	UserID string

	conn    *websocket.Conn
	send    chan OutgoingFrame
	manager *Manager
	session *realtime.Session

	// sendMu serializes pushes against closeSend: the session loop can
	// still be emitting frames when the reader unregisters the client.
	sendMu     sync.Mutex
	sendClosed bool
	closeOnce  sync.Once
}

// --- realtime.Sink ---

func (c *Client) SendToast(toast realtime.Toast) {
	c.push(OutgoingFrame{Type: FrameToast, Data: toast})
}

func (c *Client) SendCacheChange(change realtime.CacheChange) {
	c.push(OutgoingFrame{Type: FrameCacheChange, Data: change})
}

func (c *Client) SendUnreadCount(entity realtime.EntityType, count int) {
	c.push(OutgoingFrame{Type: FrameUnreadCount, Data: unreadPayload{EntityType: entity, Count: count}})
}

func (c *Client) SendConnectivity(connected bool) {
	c.push(OutgoingFrame{Type: FrameConnectivity, Data: connectivityPayload{Connected: connected}})
}

func (c *Client) CloseSession(reason string) {
	c.push(OutgoingFrame{Type: FrameSessionClose, Data: closePayload{Reason: reason}})
	c.closeOnce.Do(func() { c.conn.Close() })
}

// push hands a frame to the write pump without ever blocking the session
// loop. Frames arriving after the client disconnected are dropped; a
// client that cannot drain its buffer is dropped too.
func (c *Client) push(frame OutgoingFrame) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sendClosed {
		return
	}
	select {
	case c.send <- frame:
	default:
		logger.Warn("ws send buffer full, dropping client", "client_id", c.ID, "user_id", c.UserID)
		c.closeOnce.Do(func() { c.conn.Close() })
	}
}

// closeSend ends the write pump. Idempotent, and safe while the session
// loop is still pushing.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sendClosed {
		return
	}
	c.sendClosed = true
	close(c.send)
}

// --- pumps ---

func (c *Client) readPump() {
	defer func() {
		c.session.Close()
		c.manager.unregister <- c
		c.conn.Close()
	}()

	for {
		_, msgBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("ws read error", "client_id", c.ID, "error", err)
			}
			return
		}

		var msg IncomingMessage
		if err := json.Unmarshal(msgBytes, &msg); err != nil {
			logger.Warn("ws unparseable message", "client_id", c.ID, "error", err)
			continue
		}
		c.handleMessage(msg)
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for frame := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(frame); err != nil {
			logger.Warn("ws write error", "client_id", c.ID, "error", err)
			return
		}
	}
	// Manager closed the send channel; say goodbye properly.
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// --- actions ---

type entityPayload struct {
	EntityType realtime.EntityType `json:"entity_type"`
}

type markReadPayload struct {
	NotificationID string `json:"notification_id"`
}

func (c *Client) handleMessage(msg IncomingMessage) {
	switch msg.Action {

	case "subscribe":
		var payload entityPayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			logger.Warn("ws invalid subscribe payload", "client_id", c.ID, "error", err)
			return
		}
		if err := c.session.Subscribe(payload.EntityType); err != nil {
			logger.Warn("ws subscribe rejected", "client_id", c.ID, "entity", string(payload.EntityType), "error", err)
		}

	case "unsubscribe":
		var payload entityPayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			logger.Warn("ws invalid unsubscribe payload", "client_id", c.ID, "error", err)
			return
		}
		c.session.Unsubscribe(payload.EntityType)

	case "refresh":
		var payload entityPayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			logger.Warn("ws invalid refresh payload", "client_id", c.ID, "error", err)
			return
		}
		c.session.Refresh(payload.EntityType)

	case "mark_read":
		var payload markReadPayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			logger.Warn("ws invalid mark_read payload", "client_id", c.ID, "error", err)
			return
		}
		c.session.MarkNotificationRead(payload.NotificationID)

	default:
		logger.Warn("ws unhandled action", "client_id", c.ID, "action", msg.Action)
	}
}
