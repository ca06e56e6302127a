package models

import (
	"time"

	"github.com/lib/pq"
)

// Availability advertises a user as open for peer sessions within their
// school and class.
type Availability struct {
	UserID            string         `db:"user_id" json:"user_id"`
	IsAvailable       bool           `db:"is_available" json:"is_available"`
	StatusMessage     *string        `db:"status_message" json:"status_message"`
	StrongTopics      pq.StringArray `db:"strong_topics" json:"strong_topics"`
	SeekingHelpTopics pq.StringArray `db:"seeking_help_topics" json:"seeking_help_topics"`
	SchoolID          string         `db:"school_id" json:"school_id"`
	ClassLevel        int            `db:"class_level" json:"class_level"`
	LastSeenAt        time.Time      `db:"last_seen_at" json:"last_seen_at"`
}

// AvailablePeer is the discovery view of an available user.
type AvailablePeer struct {
	UserID            string         `db:"user_id" json:"user_id"`
	UserName          string         `db:"user_name" json:"user_name"`
	StrongTopics      pq.StringArray `db:"strong_topics" json:"strong_topics"`
	SeekingHelpTopics pq.StringArray `db:"seeking_help_topics" json:"seeking_help_topics"`
	StatusMessage     *string        `db:"status_message" json:"status_message"`
	LastSeenAt        *time.Time     `db:"last_seen_at" json:"last_seen_at"`
}

// Block is a directed blocker→blocked pair. Exclusion is applied in both
// directions at query time, never stored symmetrically.
type Block struct {
	BlockerID string    `db:"blocker_id" json:"blocker_id"`
	BlockedID string    `db:"blocked_id" json:"blocked_id"`
	Reason    *string   `db:"reason" json:"reason,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// KeyBundle holds a user's public encryption keys. The one-time prekey is
// consumed on first fetch.
type KeyBundle struct {
	IdentityPublicKey     string  `db:"identity_public_key" json:"identity_public_key"`
	SignedPrekeyPublic    string  `db:"signed_prekey_public" json:"signed_prekey_public"`
	SignedPrekeySignature string  `db:"signed_prekey_signature" json:"signed_prekey_signature"`
	SignedPrekeyID        int     `db:"signed_prekey_id" json:"signed_prekey_id"`
	OneTimePrekeyPublic   *string `json:"one_time_prekey_public,omitempty"`
	OneTimePrekeyID       *int    `json:"one_time_prekey_id,omitempty"`
}

// OneTimePrekey is a single-use public prekey uploaded in batches.
type OneTimePrekey struct {
	ID  int    `json:"id"`
	Key string `json:"key"`
}

// UserProfile is the slice of the users table this service reads: identity
// plus the school/class pair that gates session membership.
type UserProfile struct {
	ID         string  `db:"id" json:"id"`
	FullName   string  `db:"full_name" json:"full_name"`
	SchoolID   *string `db:"school_id" json:"school_id"`
	ClassLevel int     `db:"class_level" json:"class_level"`
}
