package ws

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"peer-service/internal/middleware"
	"peer-service/internal/observability"
	"peer-service/internal/repositories"
)

// SessionWebSocketHandler handles study session websocket connections.
type SessionWebSocketHandler struct {
	hub         *Hub
	sessionRepo repositories.SessionRepository
	verifier    *middleware.TokenVerifier
}

// NewSessionWebSocketHandler constructs a SessionWebSocketHandler.
func NewSessionWebSocketHandler(hub *Hub, sessionRepo repositories.SessionRepository, verifier *middleware.TokenVerifier) *SessionWebSocketHandler {
	return &SessionWebSocketHandler{hub: hub, sessionRepo: sessionRepo, verifier: verifier}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection and registers the client with the session room.
func (h *SessionWebSocketHandler) Handle(c *gin.Context) {
	sessionID := c.Param("session_id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	ctx, span := otel.Tracer("peer-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := c.GetHeader("Authorization")
	if token == "" {
		token = c.Query("token")
		if token != "" {
			token = "Bearer " + token
		}
	}

	userID, err := h.validateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	member, err := h.sessionRepo.IsActiveParticipant(c.Request.Context(), sessionID, userID)
	if err != nil || !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not authorized for session"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	traceID := span.SpanContext().TraceID().String()
	requestID := observability.RequestIDFromRequest(c.Request)
	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   requestID,
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}
	h.hub.AddSessionClient(sessionID, conn, info)

	observability.IncWSActive(kindSession)
	observability.IncWSEvent(kindSession, "ws_connect")
	_ = observability.PublishEvent(ctx, "ws_events.sessions", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_connect",
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"kind":        kindSession,
				"session_id":  sessionID,
				"event":       "ws_connect",
				"conn_id":     info.ConnID,
				"duration_ms": 0,
				"reason":      "",
			},
			"identity": map[string]interface{}{
				"user_id":   info.UserID,
				"device_id": info.DeviceID,
				"ip":        info.IP,
			},
		},
	}, observability.BuildHeaders(requestID, traceID))

	// Keep connection alive and clean on close
	go func() {
		var closeReason string
		defer func() {
			h.hub.RemoveSessionClient(sessionID, conn)
			observability.DecWSActive(kindSession)
			observability.IncWSEvent(kindSession, "ws_disconnect")
			_ = observability.PublishEvent(ctx, "ws_events.sessions", observability.EventEnvelope{
				EventType: "ws_events",
				EventName: "ws_disconnect",
				Payload: map[string]interface{}{
					"ws": map[string]interface{}{
						"kind":        kindSession,
						"session_id":  sessionID,
						"event":       "ws_disconnect",
						"conn_id":     info.ConnID,
						"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
						"reason":      closeReason,
					},
					"identity": map[string]interface{}{
						"user_id":   info.UserID,
						"device_id": info.DeviceID,
						"ip":        info.IP,
					},
				},
			}, observability.BuildHeaders(requestID, traceID))
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				closeReason = err.Error()
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					observability.IncWSEvent(kindSession, "ws_error")
					_ = observability.PublishEvent(ctx, "ws_events.sessions", observability.EventEnvelope{
						EventType: "ws_events",
						EventName: "ws_error",
						Payload: map[string]interface{}{
							"ws": map[string]interface{}{
								"kind":        kindSession,
								"session_id":  sessionID,
								"event":       "ws_error",
								"conn_id":     info.ConnID,
								"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
								"reason":      closeReason,
							},
							"identity": map[string]interface{}{
								"user_id":   info.UserID,
								"device_id": info.DeviceID,
								"ip":        info.IP,
							},
						},
					}, observability.BuildHeaders(requestID, traceID))
				}
				return
			}
		}
	}()
}

func (h *SessionWebSocketHandler) validateToken(header string) (string, error) {
	parts := strings.Split(header, " ")
	if len(parts) == 2 {
		return h.verifier.Verify(parts[1])
	}
	return "", fmt.Errorf("invalid token")
}
