package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"peer-service/internal/models"
)

var (
	ErrSelfBlock    = errors.New("cannot block yourself")
	ErrSelfReport   = errors.New("cannot report yourself")
	ErrKeysNotFound = errors.New("user keys not found")
)

// PeerRepository covers discovery, safety and the encryption key registry.
type PeerRepository interface {
	UpsertAvailability(ctx context.Context, availability models.Availability) error
	ListAvailablePeers(ctx context.Context, userID, schoolID string, classLevel int) ([]models.AvailablePeer, error)
	FindPeersByTopic(ctx context.Context, userID, schoolID string, classLevel int, topic string) ([]models.AvailablePeer, error)
	BlockUser(ctx context.Context, blockerID, blockedID string, reason *string) error
	UnblockUser(ctx context.Context, blockerID, blockedID string) error
	ListBlocked(ctx context.Context, blockerID string) ([]string, error)
	CreateReport(ctx context.Context, reporterID, reportedID string, sessionID, description *string, reason string) error
	RegisterKeys(ctx context.Context, userID string, bundle models.KeyBundle, oneTimePrekeys []models.OneTimePrekey) error
	GetKeyBundle(ctx context.Context, userID string) (models.KeyBundle, error)
}

// PeerRepo is a sqlx implementation of PeerRepository.
type PeerRepo struct {
	db *sqlx.DB
}

// NewPeerRepo constructs a PeerRepo.
func NewPeerRepo(db *sqlx.DB) *PeerRepo {
	return &PeerRepo{db: db}
}

// UpsertAvailability writes the caller's availability row.
func (r *PeerRepo) UpsertAvailability(ctx context.Context, a models.Availability) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO peer_availability (user_id, is_available, status_message, strong_topics, seeking_help_topics, school_id, class_level, last_seen_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
         ON CONFLICT (user_id) DO UPDATE SET
             is_available = EXCLUDED.is_available,
             status_message = EXCLUDED.status_message,
             strong_topics = EXCLUDED.strong_topics,
             seeking_help_topics = EXCLUDED.seeking_help_topics,
             school_id = EXCLUDED.school_id,
             class_level = EXCLUDED.class_level,
             last_seen_at = NOW()`,
		a.UserID, a.IsAvailable, a.StatusMessage, a.StrongTopics, a.SeekingHelpTopics, a.SchoolID, a.ClassLevel)
	return err
}

const availablePeerQuery = `SELECT a.user_id, COALESCE(u.full_name, 'Anonymous') AS user_name,
           a.strong_topics, a.seeking_help_topics, a.status_message, a.last_seen_at
    FROM peer_availability a
    LEFT JOIN users u ON u.id = a.user_id
    WHERE a.is_available = TRUE
      AND a.user_id <> $1
      AND a.school_id = $2
      AND a.class_level = $3
      AND NOT EXISTS (
          SELECT 1 FROM user_blocks b
          WHERE (b.blocker_id = $1 AND b.blocked_id = a.user_id)
             OR (b.blocked_id = $1 AND b.blocker_id = a.user_id)
      )`

// ListAvailablePeers returns available users from the caller's school and
// class, excluding anyone blocked in either direction.
func (r *PeerRepo) ListAvailablePeers(ctx context.Context, userID, schoolID string, classLevel int) ([]models.AvailablePeer, error) {
	peers := []models.AvailablePeer{}
	err := r.db.SelectContext(ctx, &peers,
		availablePeerQuery+` ORDER BY a.last_seen_at DESC LIMIT 50`,
		userID, schoolID, classLevel)
	return peers, err
}

// FindPeersByTopic narrows available peers to those strong in the topic.
func (r *PeerRepo) FindPeersByTopic(ctx context.Context, userID, schoolID string, classLevel int, topic string) ([]models.AvailablePeer, error) {
	peers := []models.AvailablePeer{}
	err := r.db.SelectContext(ctx, &peers,
		availablePeerQuery+` AND $4 = ANY(a.strong_topics) ORDER BY a.last_seen_at DESC LIMIT 50`,
		userID, schoolID, classLevel, topic)
	return peers, err
}

// BlockUser records a directed block. Upserts so re-blocking updates the
// reason.
func (r *PeerRepo) BlockUser(ctx context.Context, blockerID, blockedID string, reason *string) error {
	if blockerID == blockedID {
		return ErrSelfBlock
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_blocks (blocker_id, blocked_id, reason) VALUES ($1, $2, $3)
         ON CONFLICT (blocker_id, blocked_id) DO UPDATE SET reason = EXCLUDED.reason`,
		blockerID, blockedID, reason)
	return err
}

// UnblockUser removes a directed block. Unblocking a user who was never
// blocked is a no-op.
func (r *PeerRepo) UnblockUser(ctx context.Context, blockerID, blockedID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM user_blocks WHERE blocker_id=$1 AND blocked_id=$2`, blockerID, blockedID)
	return err
}

// ListBlocked returns the ids the caller has blocked.
func (r *PeerRepo) ListBlocked(ctx context.Context, blockerID string) ([]string, error) {
	ids := []string{}
	err := r.db.SelectContext(ctx, &ids,
		`SELECT blocked_id FROM user_blocks WHERE blocker_id=$1 ORDER BY created_at DESC`, blockerID)
	return ids, err
}

// CreateReport stores a user report.
func (r *PeerRepo) CreateReport(ctx context.Context, reporterID, reportedID string, sessionID, description *string, reason string) error {
	if reporterID == reportedID {
		return ErrSelfReport
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_reports (reporter_id, reported_id, session_id, reason, description)
         VALUES ($1, $2, $3, $4, $5)`,
		reporterID, reportedID, sessionID, reason, description)
	return err
}

// RegisterKeys upserts the identity/signed-prekey bundle and stores the
// one-time prekey batch.
func (r *PeerRepo) RegisterKeys(ctx context.Context, userID string, bundle models.KeyBundle, oneTimePrekeys []models.OneTimePrekey) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO user_encryption_keys (user_id, identity_public_key, signed_prekey_public, signed_prekey_signature, signed_prekey_id, updated_at)
         VALUES ($1, $2, $3, $4, $5, NOW())
         ON CONFLICT (user_id) DO UPDATE SET
             identity_public_key = EXCLUDED.identity_public_key,
             signed_prekey_public = EXCLUDED.signed_prekey_public,
             signed_prekey_signature = EXCLUDED.signed_prekey_signature,
             signed_prekey_id = EXCLUDED.signed_prekey_id,
             updated_at = NOW()`,
		userID, bundle.IdentityPublicKey, bundle.SignedPrekeyPublic, bundle.SignedPrekeySignature, bundle.SignedPrekeyID); err != nil {
		return err
	}

	for _, pk := range oneTimePrekeys {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO user_one_time_prekeys (user_id, prekey_id, prekey_public)
             VALUES ($1, $2, $3)
             ON CONFLICT (user_id, prekey_id) DO UPDATE SET prekey_public = EXCLUDED.prekey_public, used = FALSE`,
			userID, pk.ID, pk.Key); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetKeyBundle returns a user's public keys, consuming one unused one-time
// prekey when available.
func (r *PeerRepo) GetKeyBundle(ctx context.Context, userID string) (models.KeyBundle, error) {
	var bundle models.KeyBundle
	err := r.db.GetContext(ctx, &bundle,
		`SELECT identity_public_key, signed_prekey_public, signed_prekey_signature, signed_prekey_id
         FROM user_encryption_keys WHERE user_id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.KeyBundle{}, ErrKeysNotFound
	}
	if err != nil {
		return models.KeyBundle{}, err
	}

	var otp struct {
		PrekeyID     int    `db:"prekey_id"`
		PrekeyPublic string `db:"prekey_public"`
	}
	err = r.db.QueryRowxContext(ctx,
		`UPDATE user_one_time_prekeys SET used = TRUE
         WHERE id = (
             SELECT id FROM user_one_time_prekeys
             WHERE user_id=$1 AND used = FALSE
             ORDER BY prekey_id ASC LIMIT 1
             FOR UPDATE SKIP LOCKED
         )
         RETURNING prekey_id, prekey_public`, userID).StructScan(&otp)
	if err == nil {
		bundle.OneTimePrekeyPublic = &otp.PrekeyPublic
		bundle.OneTimePrekeyID = &otp.PrekeyID
	} else if !errors.Is(err, sql.ErrNoRows) {
		return models.KeyBundle{}, err
	}

	return bundle, nil
}
