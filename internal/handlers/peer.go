package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"peer-service/internal/models"
	"peer-service/internal/repositories"
	"peer-service/internal/telemetry"
)

// PeerHandler manages discovery, safety and key registry endpoints.
type PeerHandler struct {
	peerRepo repositories.PeerRepository
	userRepo repositories.UserRepository
	audit    *telemetry.AuditEmitter
}

// NewPeerHandler constructs a PeerHandler.
func NewPeerHandler(peerRepo repositories.PeerRepository, userRepo repositories.UserRepository, audit *telemetry.AuditEmitter) *PeerHandler {
	return &PeerHandler{peerRepo: peerRepo, userRepo: userRepo, audit: audit}
}

// SetAvailability handles POST /peer/availability.
func (h *PeerHandler) SetAvailability(c *gin.Context) {
	userID := c.GetString("userID")

	var req struct {
		IsAvailable       bool     `json:"is_available"`
		StatusMessage     *string  `json:"status_message"`
		StrongTopics      []string `json:"strong_topics"`
		SeekingHelpTopics []string `json:"seeking_help_topics"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	profile, err := h.userRepo.GetProfile(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
		return
	}
	if profile.SchoolID == nil {
		c.JSON(http.StatusPreconditionFailed, gin.H{"error": "user has no school set"})
		return
	}

	err = h.peerRepo.UpsertAvailability(c.Request.Context(), models.Availability{
		UserID:            userID,
		IsAvailable:       req.IsAvailable,
		StatusMessage:     req.StatusMessage,
		StrongTopics:      req.StrongTopics,
		SeekingHelpTopics: req.SeekingHelpTopics,
		SchoolID:          *profile.SchoolID,
		ClassLevel:        profile.ClassLevel,
		LastSeenAt:        time.Now().UTC(),
	})
	if err != nil {
		h.emitAudit(c, "ERROR", "availability update failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update availability"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// ListAvailable handles GET /peer/available.
func (h *PeerHandler) ListAvailable(c *gin.Context) {
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

	peers, err := h.peerRepo.ListAvailablePeers(c.Request.Context(), userID, *profile.SchoolID, profile.ClassLevel)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load peers"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"peers": peers})
}

// FindByTopic handles POST /peer/find-by-topic.
func (h *PeerHandler) FindByTopic(c *gin.Context) {
	userID := c.GetString("userID")

	var req struct {
		Topic string `json:"topic" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	profile, err := h.userRepo.GetProfile(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
		return
	}
	if profile.SchoolID == nil {
		c.JSON(http.StatusPreconditionFailed, gin.H{"error": "user has no school set"})
		return
	}

	peers, err := h.peerRepo.FindPeersByTopic(c.Request.Context(), userID, *profile.SchoolID, profile.ClassLevel, req.Topic)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to search peers"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"peers": peers})
}

// BlockUser handles POST /peer/block.
func (h *PeerHandler) BlockUser(c *gin.Context) {
	userID := c.GetString("userID")

	var req struct {
		UserID string  `json:"user_id" binding:"required"`
		Reason *string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.peerRepo.BlockUser(c.Request.Context(), userID, req.UserID, req.Reason); err != nil {
		if errors.Is(err, repositories.ErrSelfBlock) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot block yourself"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not block user"})
		return
	}

	h.emitAudit(c, "INFO", "User blocked")
	c.JSON(http.StatusOK, gin.H{"status": "blocked"})
}

// UnblockUser handles DELETE /peer/block/:user_id.
func (h *PeerHandler) UnblockUser(c *gin.Context) {
	userID := c.GetString("userID")
	blockedID := c.Param("user_id")

	if err := h.peerRepo.UnblockUser(c.Request.Context(), userID, blockedID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not unblock user"})
		return
	}

	h.emitAudit(c, "INFO", "User unblocked")
	c.JSON(http.StatusOK, gin.H{"status": "unblocked"})
}

// ListBlocked handles GET /peer/blocked.
func (h *PeerHandler) ListBlocked(c *gin.Context) {
	userID := c.GetString("userID")

	blocked, err := h.peerRepo.ListBlocked(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load blocked users"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"blocked_user_ids": blocked})
}

// ReportUser handles POST /peer/report.
func (h *PeerHandler) ReportUser(c *gin.Context) {
	userID := c.GetString("userID")

	var req struct {
		UserID      string  `json:"user_id" binding:"required"`
		Reason      string  `json:"reason" binding:"required"`
		SessionID   *string `json:"session_id"`
		Description *string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.peerRepo.CreateReport(c.Request.Context(), userID, req.UserID, req.SessionID, req.Description, req.Reason); err != nil {
		if errors.Is(err, repositories.ErrSelfReport) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot report yourself"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create report"})
		return
	}

	h.emitAudit(c, "INFO", "User reported")
	c.JSON(http.StatusCreated, gin.H{"status": "reported"})
}

// RegisterKeys handles POST /peer/keys/register.
func (h *PeerHandler) RegisterKeys(c *gin.Context) {
	userID := c.GetString("userID")

	var req struct {
		IdentityPublicKey     string                 `json:"identity_public_key" binding:"required"`
		SignedPrekeyPublic    string                 `json:"signed_prekey_public" binding:"required"`
		SignedPrekeySignature string                 `json:"signed_prekey_signature" binding:"required"`
		SignedPrekeyID        int                    `json:"signed_prekey_id"`
		OneTimePrekeys        []models.OneTimePrekey `json:"one_time_prekeys"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	bundle := models.KeyBundle{
		IdentityPublicKey:     req.IdentityPublicKey,
		SignedPrekeyPublic:    req.SignedPrekeyPublic,
		SignedPrekeySignature: req.SignedPrekeySignature,
		SignedPrekeyID:        req.SignedPrekeyID,
	}
	if err := h.peerRepo.RegisterKeys(c.Request.Context(), userID, bundle, req.OneTimePrekeys); err != nil {
		h.emitAudit(c, "ERROR", "key registration failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not register keys"})
		return
	}

	h.emitAudit(c, "INFO", "Encryption keys registered")
	c.JSON(http.StatusCreated, gin.H{"status": "registered"})
}

// GetKeyBundle handles GET /peer/keys/:user_id.
func (h *PeerHandler) GetKeyBundle(c *gin.Context) {
	targetID := c.Param("user_id")

	bundle, err := h.peerRepo.GetKeyBundle(c.Request.Context(), targetID)
	if err != nil {
		if errors.Is(err, repositories.ErrKeysNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no keys registered for user"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load keys"})
		return
	}

	c.JSON(http.StatusOK, bundle)
}

func (h *PeerHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}
