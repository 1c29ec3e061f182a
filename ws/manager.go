package ws

import (
	"sync"

	"workbridge_backend/internal/logger"
)

// Manager tracks live websocket clients. Keyed by connection ID, with a
// per-user index so the notification service can check presence before
// falling back to email.
type Manager struct {
	clients map[string]*Client
	byUser  map[string]int

	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		clients:    make(map[string]*Client),
		byUser:     make(map[string]int),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

func (m *Manager) Run() {
	for {
		select {
		case client := <-m.register:
			m.mu.Lock()
			m.clients[client.ID] = client
			m.byUser[client.UserID]++
			m.mu.Unlock()
			logger.Info("ws client connected", "client_id", client.ID, "user_id", client.UserID, "total", m.ClientCount())

		case client := <-m.unregister:
			m.mu.Lock()
			if _, ok := m.clients[client.ID]; ok {
				delete(m.clients, client.ID)
				if m.byUser[client.UserID] <= 1 {
					delete(m.byUser, client.UserID)
				} else {
					m.byUser[client.UserID]--
				}
				client.closeSend()
			}
			m.mu.Unlock()
			logger.Info("ws client disconnected", "client_id", client.ID, "user_id", client.UserID, "total", m.ClientCount())
		}
	}
}

func (m *Manager) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// IsUserConnected reports whether the user has at least one live
// connection. Offline users get notified by email instead.
func (m *Manager) IsUserConnected(userID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byUser[userID] > 0
}
