package services

import (
	"log"
	"sync"

	"ticus/internal/models"
)

// ConnectionManager tracks all live WebSocket connections and the
// per-user index used to fan out session events.
type ConnectionManager struct {
	connections map[string]*models.UserConnection
	byUser      map[string]map[string]*models.UserConnection
	mutex       sync.RWMutex
}

// NewConnectionManager creates a new connection manager.
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]*models.UserConnection),
		byUser:      make(map[string]map[string]*models.UserConnection),
	}
}

// Add registers a new connection.
func (cm *ConnectionManager) Add(conn *models.UserConnection) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()
	cm.connections[conn.ConnID] = conn
	if cm.byUser[conn.UserID] == nil {
		cm.byUser[conn.UserID] = make(map[string]*models.UserConnection)
	}
	cm.byUser[conn.UserID][conn.ConnID] = conn
	log.Printf("✅ Connection added: %s user=%s (Total: %d)", conn.ConnID, conn.UserID, len(cm.connections))
}

// Remove closes and deletes a connection.
func (cm *ConnectionManager) Remove(connID string) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()
	conn, exists := cm.connections[connID]
	if !exists {
		return
	}
	close(conn.StopChan)
	close(conn.WriteChan)
	delete(cm.connections, connID)
	if byUser := cm.byUser[conn.UserID]; byUser != nil {
		delete(byUser, connID)
		if len(byUser) == 0 {
			delete(cm.byUser, conn.UserID)
		}
	}
	log.Printf("❌ Connection removed: %s (Total: %d)", connID, len(cm.connections))
}

// Get retrieves a connection by ID.
func (cm *ConnectionManager) Get(connID string) (*models.UserConnection, bool) {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()
	conn, exists := cm.connections[connID]
	return conn, exists
}

// Count returns the number of active connections.
func (cm *ConnectionManager) Count() int {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()
	return len(cm.connections)
}

// SendToUser queues an event on every connection the user holds. Slow
// consumers are skipped rather than blocking the caller.
func (cm *ConnectionManager) SendToUser(userID string, event models.SessionEvent) int {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	sent := 0
	for _, conn := range cm.byUser[userID] {
		select {
		case conn.WriteChan <- event:
			sent++
		default:
			log.Printf("⚠️  Dropping %s event for slow connection %s", event.Type, conn.ConnID)
		}
	}
	return sent
}
