package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"peer-service/internal/models"
	"peer-service/internal/observability"
)

const kindSession = "session"

// Hub maintains active websocket connections per study session and is the
// push half of the sync transport: clients that stay connected receive
// whiteboard, message and roster events instead of polling.
type Hub struct {
	sessionRooms    map[string]map[*websocket.Conn]bool
	sessionConnInfo map[string]map[*websocket.Conn]ConnInfo
	mu              sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		sessionRooms:    make(map[string]map[*websocket.Conn]bool),
		sessionConnInfo: make(map[string]map[*websocket.Conn]ConnInfo),
	}
}

// AddSessionClient registers a websocket connection to a session room.
func (h *Hub) AddSessionClient(sessionID string, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessionRooms[sessionID]; !ok {
		h.sessionRooms[sessionID] = make(map[*websocket.Conn]bool)
	}
	h.sessionRooms[sessionID][conn] = true
	if _, ok := h.sessionConnInfo[sessionID]; !ok {
		h.sessionConnInfo[sessionID] = make(map[*websocket.Conn]ConnInfo)
	}
	h.sessionConnInfo[sessionID][conn] = info
}

// RemoveSessionClient removes a session websocket connection.
func (h *Hub) RemoveSessionClient(sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.sessionRooms[sessionID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.sessionRooms, sessionID)
		}
	}
	if infos, ok := h.sessionConnInfo[sessionID]; ok {
		delete(infos, conn)
		if len(infos) == 0 {
			delete(h.sessionConnInfo, sessionID)
		}
	}
}

// BroadcastSessionEvent sends an event to every client in a session room.
func (h *Hub) BroadcastSessionEvent(sessionID string, event models.SessionEvent) {
	h.mu.RLock()
	conns := h.sessionRooms[sessionID]
	h.mu.RUnlock()

	payload, _ := json.Marshal(event)
	for conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("websocket write error: %v", err)
			conn.Close()
			h.RemoveSessionClient(sessionID, conn)
			h.publishWSError(sessionID, conn, err)
		}
	}
}

func (h *Hub) publishWSError(sessionID string, conn *websocket.Conn, err error) {
	info, ok := h.getConnInfo(sessionID, conn)
	if !ok {
		return
	}

	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"kind":        kindSession,
			"session_id":  sessionID,
			"event":       "ws_error",
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      err.Error(),
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}

	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(context.Background(), "ws_events.sessions", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_error",
		Payload:   payload,
	}, headers)
	observability.IncWSEvent(kindSession, "ws_error")
}

func (h *Hub) getConnInfo(sessionID string, conn *websocket.Conn) (ConnInfo, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if infos, ok := h.sessionConnInfo[sessionID]; ok {
		info, exists := infos[conn]
		return info, exists
	}
	return ConnInfo{}, false
}
