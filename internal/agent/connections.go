package agent

import (
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// socket is the part of a WebSocket connection the registry needs.
type socket interface {
	Close(code websocket.StatusCode, reason string) error
}

// ConnectionRegistry tracks the live chat WebSocket of each browser tab.
// A tab has at most one; registering a new one closes the old.
type ConnectionRegistry struct {
	mu     sync.RWMutex
	active map[string]map[string]socket
}

// NewConnectionRegistry creates an empty registry.
func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		active: make(map[string]map[string]socket),
	}
}

// get returns the live connection for a user and session.
func (m *ConnectionRegistry) get(userID, sessionID string) socket {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if sessions, ok := m.active[userID]; ok {
		return sessions[sessionID]
	}
	return nil
}

// Register records conn for a user/session, closing any previous one.
func (m *ConnectionRegistry) Register(userID, sessionID string, conn socket) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.active[userID]; !exists {
		m.active[userID] = make(map[string]socket)
	}

	if existing, exists := m.active[userID][sessionID]; exists && existing != conn {
		_ = existing.Close(websocket.StatusNormalClosure, "session replaced")
	}

	m.active[userID][sessionID] = conn
	slog.Debug("Chat socket registered", "user_id", userID, "session_id", sessionID)
}

// Unregister removes conn if it is still the live connection for the session.
func (m *ConnectionRegistry) Unregister(userID, sessionID string, conn socket) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sessions, ok := m.active[userID]; ok {
		if current, exists := sessions[sessionID]; exists && current == conn {
			delete(sessions, sessionID)
			if len(sessions) == 0 {
				delete(m.active, userID)
			}
			slog.Debug("Chat socket unregistered", "user_id", userID, "session_id", sessionID)
		}
	}
}

// Close terminates the live connection of one session, if any.
func (m *ConnectionRegistry) Close(userID, sessionID, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessions, ok := m.active[userID]
	if !ok {
		return
	}
	conn, ok := sessions[sessionID]
	if !ok {
		return
	}
	_ = conn.Close(websocket.StatusNormalClosure, reason)
	delete(sessions, sessionID)
	if len(sessions) == 0 {
		delete(m.active, userID)
	}
	slog.Info("Chat socket closed", "user_id", userID, "session_id", sessionID, "reason", reason)
}

// Len returns the number of live connections.
func (m *ConnectionRegistry) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, sessions := range m.active {
		n += len(sessions)
	}
	return n
}
