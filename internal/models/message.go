package models

import "time"

// SessionMessage is an end-to-end encrypted message stored for a session.
// EncryptedContent maps recipient user id to that recipient's ciphertext; the
// server never sees plaintext.
type SessionMessage struct {
	ID               string            `db:"id" json:"id"`
	SessionID        string            `db:"session_id" json:"session_id"`
	SenderID         string            `db:"sender_id" json:"sender_id"`
	SenderName       string            `db:"sender_name" json:"sender_name"`
	EncryptedContent map[string]string `json:"encrypted_content"`
	MessageType      string            `db:"message_type" json:"message_type"`
	CreatedAt        time.Time         `db:"created_at" json:"created_at"`
}
