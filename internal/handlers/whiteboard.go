package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"peer-service/internal/models"
	"peer-service/internal/observability"
	"peer-service/internal/repositories"
	"peer-service/internal/telemetry"
	"peer-service/internal/whiteboard"
	"peer-service/internal/ws"
)

// WhiteboardHandler manages whiteboard sync endpoints.
type WhiteboardHandler struct {
	whiteboardRepo repositories.WhiteboardRepository
	sessionRepo    repositories.SessionRepository
	hub            *ws.Hub
	audit          *telemetry.AuditEmitter
}

// NewWhiteboardHandler constructs a WhiteboardHandler.
func NewWhiteboardHandler(whiteboardRepo repositories.WhiteboardRepository, sessionRepo repositories.SessionRepository, hub *ws.Hub, audit *telemetry.AuditEmitter) *WhiteboardHandler {
	return &WhiteboardHandler{
		whiteboardRepo: whiteboardRepo,
		sessionRepo:    sessionRepo,
		hub:            hub,
		audit:          audit,
	}
}

// Sync handles POST /peer/whiteboard/sync. Incoming operations are decoded
// leniently, merged into the stored log under the session's state row lock and
// the merged result is pushed to connected clients.
func (h *WhiteboardHandler) Sync(c *gin.Context) {
	userID := c.GetString("userID")

	var req struct {
		SessionID  string                     `json:"session_id" binding:"required"`
		Operations []whiteboard.WireOperation `json:"operations"`
		Version    int                        `json:"version"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		observability.IncWhiteboardSync("bad_request")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	member, err := h.sessionRepo.IsActiveParticipant(c.Request.Context(), req.SessionID, userID)
	if err != nil {
		observability.IncWhiteboardSync("error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}
	if !member {
		observability.IncWhiteboardSync("forbidden")
		c.JSON(http.StatusForbidden, gin.H{"error": "not a session participant"})
		return
	}

	ops := make([]models.Operation, 0, len(req.Operations))
	for _, w := range req.Operations {
		op := whiteboard.DecodeOperation(w)
		if op.UserID == "" {
			op.UserID = userID
		}
		ops = append(ops, op)
	}

	state, err := h.whiteboardRepo.SyncOperations(c.Request.Context(), req.SessionID, userID, ops)
	if err != nil {
		if errors.Is(err, repositories.ErrWhiteboardNotFound) {
			observability.IncWhiteboardSync("not_found")
			c.JSON(http.StatusNotFound, gin.H{"error": "whiteboard not found"})
			return
		}
		observability.IncWhiteboardSync("error")
		h.emitAudit(c, "ERROR", "whiteboard sync failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not sync whiteboard"})
		return
	}

	observability.IncWhiteboardSync("synced")
	observability.AddWhiteboardOpsMerged(len(ops))
	h.hub.BroadcastSessionEvent(req.SessionID, models.SessionEvent{
		Type:       "whiteboard_sync",
		SessionID:  req.SessionID,
		UserID:     userID,
		Version:    state.Version,
		Operations: state.Operations,
	})

	c.JSON(http.StatusOK, gin.H{"status": "synced", "version": state.Version})
}

// GetState handles GET /peer/whiteboard/:session_id. The encoding query
// parameter selects the operation wire format of the response.
func (h *WhiteboardHandler) GetState(c *gin.Context) {
	sessionID := c.Param("session_id")
	userID := c.GetString("userID")
	enc := whiteboard.ParseEncoding(c.Query("encoding"))

	member, err := h.sessionRepo.IsActiveParticipant(c.Request.Context(), sessionID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a session participant"})
		return
	}

	state, err := h.whiteboardRepo.GetState(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, repositories.ErrWhiteboardNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "whiteboard not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load whiteboard"})
		return
	}

	wireOps := make([]whiteboard.WireOperation, 0, len(state.Operations))
	for _, op := range state.Operations {
		wireOps = append(wireOps, whiteboard.EncodeOperation(op, enc))
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": state.SessionID,
		"operations": wireOps,
		"version":    state.Version,
	})
}

func (h *WhiteboardHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}
