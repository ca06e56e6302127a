package models

import "time"

// Session statuses.
const (
	SessionWaiting = "waiting"
	SessionActive  = "active"
	SessionClosed  = "closed"
)

// Participant roles.
const (
	RoleHost        = "host"
	RoleParticipant = "participant"
)

// Session represents a bounded study room. School and class level are copied
// from the creator at creation time and never change afterwards.
type Session struct {
	ID                  string     `db:"id" json:"id"`
	Name                *string    `db:"name" json:"name"`
	Topic               string     `db:"topic" json:"topic"`
	Subject             string     `db:"subject" json:"subject"`
	SchoolID            string     `db:"school_id" json:"school_id"`
	ClassLevel          int        `db:"class_level" json:"class_level"`
	MaxParticipants     int        `db:"max_participants" json:"max_participants"`
	IsVoiceEnabled      bool       `db:"is_voice_enabled" json:"is_voice_enabled"`
	IsWhiteboardEnabled bool       `db:"is_whiteboard_enabled" json:"is_whiteboard_enabled"`
	Status              string     `db:"status" json:"status"`
	CreatedBy           string     `db:"created_by" json:"created_by"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	StartedAt           *time.Time `db:"started_at" json:"started_at,omitempty"`
	ClosedAt            *time.Time `db:"closed_at" json:"closed_at,omitempty"`
}

// SessionSummary is the API-friendly listing view including the live
// participant count.
type SessionSummary struct {
	Session
	ParticipantCount int `db:"participant_count" json:"participant_count"`
}

// Participant binds a user to a session. Rows are never hard-deleted; leaving
// sets left_at.
type Participant struct {
	ID            int        `db:"id" json:"-"`
	SessionID     string     `db:"session_id" json:"session_id"`
	UserID        string     `db:"user_id" json:"user_id"`
	UserName      string     `db:"user_name" json:"user_name"`
	Role          string     `db:"role" json:"role"`
	IsMuted       bool       `db:"is_muted" json:"is_muted"`
	IsVoiceActive bool       `db:"is_voice_active" json:"is_voice_active"`
	JoinedAt      time.Time  `db:"joined_at" json:"joined_at"`
	LeftAt        *time.Time `db:"left_at" json:"left_at,omitempty"`
}

// SessionEvent is emitted over session websocket connections.
type SessionEvent struct {
	Type       string          `json:"type"`
	SessionID  string          `json:"session_id"`
	UserID     string          `json:"user_id,omitempty"`
	Message    *SessionMessage `json:"message,omitempty"`
	Version    int             `json:"version,omitempty"`
	Operations []Operation     `json:"operations,omitempty"`
}
