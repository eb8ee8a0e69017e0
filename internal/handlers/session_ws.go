package handlers

import (
	"log"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"

	"ticus/internal/focus"
	"ticus/internal/models"
	"ticus/internal/services"
)

// SessionStreamHandler pushes live session events to connected clients.
// The stream is one-way apart from ping/pong keepalive; all state
// changes go through the REST endpoints.
type SessionStreamHandler struct {
	connManager *services.ConnectionManager
	registry    *focus.Registry
}

// NewSessionStreamHandler creates a new session stream handler.
func NewSessionStreamHandler(connManager *services.ConnectionManager, registry *focus.Registry) *SessionStreamHandler {
	return &SessionStreamHandler{connManager: connManager, registry: registry}
}

// Handle handles a new WebSocket connection.
func (h *SessionStreamHandler) Handle(c *websocket.Conn) {
	connID := uuid.New().String()
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		c.Close()
		return
	}

	done := make(chan struct{})

	userConn := &models.UserConnection{
		ConnID:    connID,
		UserID:    userID,
		Conn:      c,
		CreatedAt: time.Now(),
		WriteChan: make(chan models.SessionEvent, 100),
		StopChan:  make(chan struct{}),
	}

	h.connManager.Add(userConn)
	defer func() {
		close(done)
		h.connManager.Remove(connID)
	}()

	c.SetReadDeadline(time.Now().Add(90 * time.Second))
	c.SetPongHandler(func(string) error {
		c.SetReadDeadline(time.Now().Add(90 * time.Second))
		return nil
	})

	go h.pingLoop(userConn, done)
	go h.writeLoop(userConn)

	// Seed the stream with the current state so a reconnecting client
	// does not wait a full tick.
	if ctrl, ok := h.registry.Get(userID); ok {
		view := ctrl.View()
		userConn.WriteChan <- models.SessionEvent{
			Type:             models.EventTick,
			SessionID:        view.Session.ID,
			Timestamp:        time.Now(),
			ElapsedSeconds:   view.ElapsedSeconds,
			RemainingSeconds: view.RemainingSeconds,
			Paused:           view.Paused,
		}
	}

	h.readLoop(userConn)
}

func (h *SessionStreamHandler) pingLoop(userConn *models.UserConnection, done <-chan struct{}) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := userConn.Conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		}
	}
}

// readLoop drains (and ignores) client frames so pongs are processed
// and closes are noticed.
func (h *SessionStreamHandler) readLoop(userConn *models.UserConnection) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ Panic in readLoop: %v", r)
		}
	}()

	for {
		if _, _, err := userConn.Conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *SessionStreamHandler) writeLoop(userConn *models.UserConnection) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ Panic in writeLoop: %v", r)
		}
	}()

	for event := range userConn.WriteChan {
		if err := userConn.Conn.WriteJSON(event); err != nil {
			log.Printf("❌ WebSocket write error for %s: %v", userConn.ConnID, err)
			return
		}
	}
}
