package repositories

import (
	"context"
	"database/sql"
	"errors"
	"strconv"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"peer-service/internal/models"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSchoolMismatch  = errors.New("user school or class does not match session")
	ErrSessionFull     = errors.New("session is full")
	ErrUserBlocked     = errors.New("blocked user in session")
	ErrNoSchool        = errors.New("user has no school set")
)

// CreateSessionParams carries the caller-supplied session options.
type CreateSessionParams struct {
	Name                *string
	Topic               string
	Subject             string
	MaxParticipants     int
	IsVoiceEnabled      bool
	IsWhiteboardEnabled bool
}

// SessionRepository is admission control and lifecycle for study rooms.
// Join and leave run inside a transaction holding the session row lock, which
// is the per-session serialization point for the participant roster.
type SessionRepository interface {
	CreateSession(ctx context.Context, creator models.UserProfile, params CreateSessionParams) (models.Session, error)
	GetSession(ctx context.Context, sessionID string) (models.Session, error)
	ListSessions(ctx context.Context, schoolID string, classLevel int, topic, subject string) ([]models.SessionSummary, error)
	JoinSession(ctx context.Context, sessionID string, user models.UserProfile) error
	LeaveSession(ctx context.Context, sessionID, userID string) (closed bool, err error)
	ListParticipants(ctx context.Context, sessionID string) ([]models.Participant, error)
	IsActiveParticipant(ctx context.Context, sessionID, userID string) (bool, error)
	CloseStaleSessions(ctx context.Context) (int64, error)
}

// SessionRepo is a sqlx implementation of SessionRepository.
type SessionRepo struct {
	db *sqlx.DB
}

// NewSessionRepo constructs a SessionRepo.
func NewSessionRepo(db *sqlx.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

const sessionColumns = `id, name, topic, subject, school_id, class_level, max_participants,
    is_voice_enabled, is_whiteboard_enabled, status, created_by, created_at, started_at, closed_at`

// CreateSession creates the room, its host participant row and, when the
// whiteboard flag is set, an empty whiteboard state, all atomically. School and
// class level are copied from the creator and never change afterwards.
func (r *SessionRepo) CreateSession(ctx context.Context, creator models.UserProfile, params CreateSessionParams) (models.Session, error) {
	if creator.SchoolID == nil {
		return models.Session{}, ErrNoSchool
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Session{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var session models.Session
	err = tx.QueryRowxContext(ctx,
		`INSERT INTO peer_sessions (name, topic, subject, school_id, class_level, max_participants, is_voice_enabled, is_whiteboard_enabled, created_by)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
         RETURNING `+sessionColumns,
		params.Name, params.Topic, params.Subject, *creator.SchoolID, creator.ClassLevel,
		params.MaxParticipants, params.IsVoiceEnabled, params.IsWhiteboardEnabled, creator.ID).
		StructScan(&session)
	if err != nil {
		return models.Session{}, err
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO peer_session_participants (session_id, user_id, role) VALUES ($1, $2, $3)`,
		session.ID, creator.ID, models.RoleHost); err != nil {
		return models.Session{}, err
	}

	if params.IsWhiteboardEnabled {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO peer_whiteboard_state (session_id) VALUES ($1)`, session.ID); err != nil {
			return models.Session{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return models.Session{}, err
	}
	return session, nil
}

// GetSession fetches a single session.
func (r *SessionRepo) GetSession(ctx context.Context, sessionID string) (models.Session, error) {
	var session models.Session
	err := r.db.GetContext(ctx, &session,
		`SELECT `+sessionColumns+` FROM peer_sessions WHERE id=$1`, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Session{}, ErrSessionNotFound
	}
	return session, err
}

// ListSessions returns open rooms for the user's school and class, newest
// first, capped at 20.
func (r *SessionRepo) ListSessions(ctx context.Context, schoolID string, classLevel int, topic, subject string) ([]models.SessionSummary, error) {
	query := `SELECT ` + sessionColumns + `,
        (SELECT COUNT(*) FROM peer_session_participants p WHERE p.session_id = s.id AND p.left_at IS NULL) AS participant_count
        FROM peer_sessions s
        WHERE school_id=$1 AND class_level=$2 AND status IN ('waiting', 'active')`
	args := []any{schoolID, classLevel}

	if topic != "" {
		args = append(args, "%"+topic+"%")
		query += ` AND topic ILIKE $` + strconv.Itoa(len(args))
	}
	if subject != "" {
		args = append(args, subject)
		query += ` AND subject = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY created_at DESC LIMIT 20`

	sessions := []models.SessionSummary{}
	err := r.db.SelectContext(ctx, &sessions, query, args...)
	return sessions, err
}

// JoinSession admits a user under the session row lock: school/class match,
// capacity, and block exclusion in both directions. The waiting→active
// transition fires exactly once, on the second distinct active participant.
// Joining a session the user is already active in is a no-op.
func (r *SessionRepo) JoinSession(ctx context.Context, sessionID string, user models.UserProfile) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var session models.Session
	err = tx.QueryRowxContext(ctx,
		`SELECT `+sessionColumns+` FROM peer_sessions WHERE id=$1 FOR UPDATE`, sessionID).
		StructScan(&session)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrSessionNotFound
		return err
	}
	if err != nil {
		return err
	}

	if user.SchoolID == nil || *user.SchoolID != session.SchoolID || user.ClassLevel != session.ClassLevel {
		err = ErrSchoolMismatch
		return err
	}

	var activeIDs []string
	if err = tx.SelectContext(ctx, &activeIDs,
		`SELECT user_id FROM peer_session_participants WHERE session_id=$1 AND left_at IS NULL`, sessionID); err != nil {
		return err
	}

	for _, id := range activeIDs {
		if id == user.ID {
			return tx.Commit()
		}
	}

	if len(activeIDs) >= session.MaxParticipants {
		err = ErrSessionFull
		return err
	}

	if len(activeIDs) > 0 {
		var blocked bool
		if err = tx.GetContext(ctx, &blocked,
			`SELECT EXISTS(
                SELECT 1 FROM user_blocks
                WHERE (blocker_id = $1 AND blocked_id = ANY($2))
                   OR (blocked_id = $1 AND blocker_id = ANY($2))
            )`, user.ID, pq.Array(activeIDs)); err != nil {
			return err
		}
		if blocked {
			err = ErrUserBlocked
			return err
		}
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO peer_session_participants (session_id, user_id, role)
         VALUES ($1, $2, $3)
         ON CONFLICT (session_id, user_id) DO UPDATE SET left_at = NULL, joined_at = NOW()`,
		sessionID, user.ID, models.RoleParticipant); err != nil {
		return err
	}

	if session.Status == models.SessionWaiting {
		if _, err = tx.ExecContext(ctx,
			`UPDATE peer_sessions SET status=$1, started_at=NOW() WHERE id=$2`,
			models.SessionActive, sessionID); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// LeaveSession marks the caller's participant row as left and closes the
// session when nobody remains active. Leaving twice is a no-op.
func (r *SessionRepo) LeaveSession(ctx context.Context, sessionID, userID string) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`UPDATE peer_session_participants SET left_at=NOW()
         WHERE session_id=$1 AND user_id=$2 AND left_at IS NULL`, sessionID, userID); err != nil {
		return false, err
	}

	var active int
	if err = tx.GetContext(ctx, &active,
		`SELECT COUNT(*) FROM peer_session_participants WHERE session_id=$1 AND left_at IS NULL`, sessionID); err != nil {
		return false, err
	}

	closed := false
	if active == 0 {
		var res sql.Result
		res, err = tx.ExecContext(ctx,
			`UPDATE peer_sessions SET status=$1, closed_at=NOW() WHERE id=$2 AND status <> $1`,
			models.SessionClosed, sessionID)
		if err != nil {
			return false, err
		}
		if count, _ := res.RowsAffected(); count > 0 {
			closed = true
		}
	}

	if err = tx.Commit(); err != nil {
		return false, err
	}
	return closed, nil
}

// ListParticipants returns the active participant rows with user names.
func (r *SessionRepo) ListParticipants(ctx context.Context, sessionID string) ([]models.Participant, error) {
	participants := []models.Participant{}
	err := r.db.SelectContext(ctx, &participants,
		`SELECT p.id, p.session_id, p.user_id, COALESCE(u.full_name, 'Anonymous') AS user_name,
                p.role, p.is_muted, p.is_voice_active, p.joined_at, p.left_at
         FROM peer_session_participants p
         LEFT JOIN users u ON u.id = p.user_id
         WHERE p.session_id=$1 AND p.left_at IS NULL
         ORDER BY p.joined_at ASC`, sessionID)
	return participants, err
}

// IsActiveParticipant checks current membership.
func (r *SessionRepo) IsActiveParticipant(ctx context.Context, sessionID, userID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM peer_session_participants WHERE session_id=$1 AND user_id=$2 AND left_at IS NULL)`,
		sessionID, userID)
	return exists, err
}

// CloseStaleSessions closes sessions with no active participants created more
// than 10 minutes ago, and any session older than 4 hours regardless of
// activity. Invoked by the background sweep.
func (r *SessionRepo) CloseStaleSessions(ctx context.Context) (int64, error) {
	var total int64

	res, err := r.db.ExecContext(ctx,
		`UPDATE peer_sessions SET status=$1, closed_at=NOW()
         WHERE status <> $1
           AND created_at < NOW() - INTERVAL '10 minutes'
           AND NOT EXISTS (
               SELECT 1 FROM peer_session_participants p
               WHERE p.session_id = peer_sessions.id AND p.left_at IS NULL
           )`, models.SessionClosed)
	if err != nil {
		return 0, err
	}
	if count, err := res.RowsAffected(); err == nil {
		total += count
	}

	res, err = r.db.ExecContext(ctx,
		`UPDATE peer_sessions SET status=$1, closed_at=NOW()
         WHERE status <> $1 AND created_at < NOW() - INTERVAL '4 hours'`, models.SessionClosed)
	if err != nil {
		return total, err
	}
	if count, err := res.RowsAffected(); err == nil {
		total += count
	}

	return total, nil
}
