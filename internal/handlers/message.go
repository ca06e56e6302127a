package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"peer-service/internal/models"
	"peer-service/internal/repositories"
	"peer-service/internal/telemetry"
	"peer-service/internal/ws"
)

// MessageHandler manages encrypted session message endpoints. Content is a
// recipient to ciphertext map the service stores and relays without reading.
type MessageHandler struct {
	messageRepo repositories.MessageRepository
	sessionRepo repositories.SessionRepository
	hub         *ws.Hub
	audit       *telemetry.AuditEmitter
}

// NewMessageHandler constructs a MessageHandler.
func NewMessageHandler(messageRepo repositories.MessageRepository, sessionRepo repositories.SessionRepository, hub *ws.Hub, audit *telemetry.AuditEmitter) *MessageHandler {
	return &MessageHandler{
		messageRepo: messageRepo,
		sessionRepo: sessionRepo,
		hub:         hub,
		audit:       audit,
	}
}

// SendMessage handles POST /peer/messages.
func (h *MessageHandler) SendMessage(c *gin.Context) {
	userID := c.GetString("userID")

	var req struct {
		SessionID        string            `json:"session_id" binding:"required"`
		EncryptedContent map[string]string `json:"encrypted_content" binding:"required"`
		MessageType      string            `json:"message_type"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.MessageType == "" {
		req.MessageType = "text"
	}

	member, err := h.sessionRepo.IsActiveParticipant(c.Request.Context(), req.SessionID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a session participant"})
		return
	}

	msg, err := h.messageRepo.CreateMessage(c.Request.Context(), req.SessionID, userID, req.EncryptedContent, req.MessageType)
	if err != nil {
		h.emitAudit(c, "ERROR", "message store failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}

	h.emitAudit(c, "INFO", "Session message sent")
	h.hub.BroadcastSessionEvent(req.SessionID, models.SessionEvent{
		Type:      "message",
		SessionID: req.SessionID,
		UserID:    userID,
		Message:   &msg,
	})
	c.JSON(http.StatusCreated, gin.H{"status": "sent", "message_id": msg.ID})
}

// ListMessages handles GET /peer/messages/:session_id.
func (h *MessageHandler) ListMessages(c *gin.Context) {
	sessionID := c.Param("session_id")
	userID := c.GetString("userID")

	member, err := h.sessionRepo.IsActiveParticipant(c.Request.Context(), sessionID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a session participant"})
		return
	}

	var since *time.Time
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid since timestamp"})
			return
		}
		since = &parsed
	}

	msgs, err := h.messageRepo.ListMessages(c.Request.Context(), sessionID, since)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (h *MessageHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}
