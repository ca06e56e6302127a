package repositories

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"

	"peer-service/internal/models"
)

// MessageRepository stores end-to-end encrypted session messages. Content is
// opaque to the server.
type MessageRepository interface {
	CreateMessage(ctx context.Context, sessionID, senderID string, content map[string]string, messageType string) (models.SessionMessage, error)
	ListMessages(ctx context.Context, sessionID string, since *time.Time) ([]models.SessionMessage, error)
}

// MessageRepo is a sqlx implementation of MessageRepository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs a MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage stores an encrypted message for a session.
func (r *MessageRepo) CreateMessage(ctx context.Context, sessionID, senderID string, content map[string]string, messageType string) (models.SessionMessage, error) {
	payload, err := json.Marshal(content)
	if err != nil {
		return models.SessionMessage{}, err
	}

	var row struct {
		ID        string    `db:"id"`
		CreatedAt time.Time `db:"created_at"`
	}
	err = r.db.QueryRowxContext(ctx,
		`INSERT INTO peer_messages (session_id, sender_id, encrypted_content, message_type)
         VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
		sessionID, senderID, payload, messageType).StructScan(&row)
	if err != nil {
		return models.SessionMessage{}, err
	}

	return models.SessionMessage{
		ID:               row.ID,
		SessionID:        sessionID,
		SenderID:         senderID,
		EncryptedContent: content,
		MessageType:      messageType,
		CreatedAt:        row.CreatedAt,
	}, nil
}

// ListMessages returns a session's messages oldest first, optionally only
// those after since, capped at 100.
func (r *MessageRepo) ListMessages(ctx context.Context, sessionID string, since *time.Time) ([]models.SessionMessage, error) {
	query := `SELECT m.id, m.session_id, m.sender_id, COALESCE(u.full_name, 'Anonymous') AS sender_name,
                     m.encrypted_content, m.message_type, m.created_at
              FROM peer_messages m
              LEFT JOIN users u ON u.id = m.sender_id
              WHERE m.session_id=$1`
	args := []any{sessionID}
	if since != nil {
		query += ` AND m.created_at > $2`
		args = append(args, *since)
	}
	query += ` ORDER BY m.created_at ASC LIMIT 100`

	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs := []models.SessionMessage{}
	for rows.Next() {
		var row struct {
			ID               string    `db:"id"`
			SessionID        string    `db:"session_id"`
			SenderID         string    `db:"sender_id"`
			SenderName       string    `db:"sender_name"`
			EncryptedContent []byte    `db:"encrypted_content"`
			MessageType      string    `db:"message_type"`
			CreatedAt        time.Time `db:"created_at"`
		}
		if err := rows.StructScan(&row); err != nil {
			return nil, err
		}
		msg := models.SessionMessage{
			ID:          row.ID,
			SessionID:   row.SessionID,
			SenderID:    row.SenderID,
			SenderName:  row.SenderName,
			MessageType: row.MessageType,
			CreatedAt:   row.CreatedAt,
		}
		if len(row.EncryptedContent) > 0 {
			if err := json.Unmarshal(row.EncryptedContent, &msg.EncryptedContent); err != nil {
				return nil, err
			}
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}
