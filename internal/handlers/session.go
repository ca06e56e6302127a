package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"peer-service/internal/models"
	"peer-service/internal/repositories"
	"peer-service/internal/telemetry"
	"peer-service/internal/ws"
)

// SessionHandler manages study session endpoints.
type SessionHandler struct {
	sessionRepo repositories.SessionRepository
	userRepo    repositories.UserRepository
	hub         *ws.Hub
	audit       *telemetry.AuditEmitter
}

// NewSessionHandler constructs a SessionHandler.
func NewSessionHandler(sessionRepo repositories.SessionRepository, userRepo repositories.UserRepository, hub *ws.Hub, audit *telemetry.AuditEmitter) *SessionHandler {
	return &SessionHandler{
		sessionRepo: sessionRepo,
		userRepo:    userRepo,
		hub:         hub,
		audit:       audit,
	}
}

// CreateSession handles POST /peer/sessions.
func (h *SessionHandler) CreateSession(c *gin.Context) {
	userID := c.GetString("userID")

	var req struct {
		Name                *string `json:"name"`
		Topic               string  `json:"topic" binding:"required"`
		Subject             string  `json:"subject" binding:"required"`
		MaxParticipants     int     `json:"max_participants"`
		IsVoiceEnabled      bool    `json:"is_voice_enabled"`
		IsWhiteboardEnabled bool    `json:"is_whiteboard_enabled"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.emitAudit(c, "ERROR", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.MaxParticipants == 0 {
		req.MaxParticipants = 4
	}
	if req.MaxParticipants < 2 || req.MaxParticipants > 4 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "max_participants must be between 2 and 4"})
		return
	}

	creator, err := h.userRepo.GetProfile(c.Request.Context(), userID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrUserNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "failed to load user"})
		return
	}

	session, err := h.sessionRepo.CreateSession(c.Request.Context(), creator, repositories.CreateSessionParams{
		Name:                req.Name,
		Topic:               req.Topic,
		Subject:             req.Subject,
		MaxParticipants:     req.MaxParticipants,
		IsVoiceEnabled:      req.IsVoiceEnabled,
		IsWhiteboardEnabled: req.IsWhiteboardEnabled,
	})
	if err != nil {
		if errors.Is(err, repositories.ErrNoSchool) {
			h.emitAudit(c, "ERROR", "session create without school")
			c.JSON(http.StatusPreconditionFailed, gin.H{"error": "user has no school set"})
			return
		}
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create session"})
		return
	}

	h.emitAudit(c, "INFO", "Session created")
	c.JSON(http.StatusCreated, models.SessionSummary{Session: session, ParticipantCount: 1})
}

// ListSessions handles GET /peer/sessions.
func (h *SessionHandler) ListSessions(c *gin.Context) {
	userID := c.GetString("userID")

	profile, err := h.userRepo.GetProfile(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
		return
	}
	if profile.SchoolID == nil {
		c.JSON(http.StatusPreconditionFailed, gin.H{"error": "user has no school set"})
		return
	}

	sessions, err := h.sessionRepo.ListSessions(c.Request.Context(), *profile.SchoolID, profile.ClassLevel, c.Query("topic"), c.Query("subject"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load sessions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// JoinSession handles POST /peer/sessions/:session_id/join.
func (h *SessionHandler) JoinSession(c *gin.Context) {
	sessionID := c.Param("session_id")
	userID := c.GetString("userID")

	user, err := h.userRepo.GetProfile(c.Request.Context(), userID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrUserNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "failed to load user"})
		return
	}

	if err := h.sessionRepo.JoinSession(c.Request.Context(), sessionID, user); err != nil {
		switch {
		case errors.Is(err, repositories.ErrSessionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		case errors.Is(err, repositories.ErrSchoolMismatch):
			h.emitAudit(c, "ERROR", "join rejected: school mismatch")
			c.JSON(http.StatusForbidden, gin.H{"error": "session is restricted to your school and class"})
		case errors.Is(err, repositories.ErrUserBlocked):
			h.emitAudit(c, "ERROR", "join rejected: blocked user in session")
			c.JSON(http.StatusForbidden, gin.H{"error": "cannot join this session"})
		case errors.Is(err, repositories.ErrSessionFull):
			c.JSON(http.StatusConflict, gin.H{"error": "session is full"})
		case errors.Is(err, repositories.ErrNoSchool):
			c.JSON(http.StatusPreconditionFailed, gin.H{"error": "user has no school set"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not join session"})
		}
		return
	}

	h.emitAudit(c, "INFO", "Session joined")
	h.hub.BroadcastSessionEvent(sessionID, models.SessionEvent{
		Type:      "participant_joined",
		SessionID: sessionID,
		UserID:    userID,
	})
	c.JSON(http.StatusOK, gin.H{"status": "joined", "session_id": sessionID})
}

// LeaveSession handles POST /peer/sessions/:session_id/leave.
func (h *SessionHandler) LeaveSession(c *gin.Context) {
	sessionID := c.Param("session_id")
	userID := c.GetString("userID")

	closed, err := h.sessionRepo.LeaveSession(c.Request.Context(), sessionID, userID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrSessionNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "could not leave session"})
		return
	}

	h.emitAudit(c, "INFO", "Session left")
	h.hub.BroadcastSessionEvent(sessionID, models.SessionEvent{
		Type:      "participant_left",
		SessionID: sessionID,
		UserID:    userID,
	})

	resp := gin.H{"status": "left", "session_id": sessionID}
	if closed {
		resp["session_closed"] = true
	}
	c.JSON(http.StatusOK, resp)
}

// ListParticipants handles GET /peer/sessions/:session_id/participants.
func (h *SessionHandler) ListParticipants(c *gin.Context) {
	sessionID := c.Param("session_id")

	if _, err := h.sessionRepo.GetSession(c.Request.Context(), sessionID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrSessionNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "session not found"})
		return
	}

	participants, err := h.sessionRepo.ListParticipants(c.Request.Context(), sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load participants"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"participants": participants})
}

func (h *SessionHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}
