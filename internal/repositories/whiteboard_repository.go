package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/jmoiron/sqlx"

	"peer-service/internal/models"
	"peer-service/internal/whiteboard"
)

var ErrWhiteboardNotFound = errors.New("whiteboard not found")

// WhiteboardRepository owns the per-session operation log.
type WhiteboardRepository interface {
	GetState(ctx context.Context, sessionID string) (models.WhiteboardState, error)
	SyncOperations(ctx context.Context, sessionID, userID string, ops []models.Operation) (models.WhiteboardState, error)
}

// WhiteboardRepo is a sqlx implementation of WhiteboardRepository.
type WhiteboardRepo struct {
	db *sqlx.DB
}

// NewWhiteboardRepo constructs a WhiteboardRepo.
func NewWhiteboardRepo(db *sqlx.DB) *WhiteboardRepo {
	return &WhiteboardRepo{db: db}
}

// GetState returns the current operation log and version.
func (r *WhiteboardRepo) GetState(ctx context.Context, sessionID string) (models.WhiteboardState, error) {
	var row struct {
		Operations []byte `db:"operations"`
		Version    int    `db:"version"`
	}
	err := r.db.GetContext(ctx, &row,
		`SELECT operations, version FROM peer_whiteboard_state WHERE session_id=$1`, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.WhiteboardState{}, ErrWhiteboardNotFound
	}
	if err != nil {
		return models.WhiteboardState{}, err
	}
	return buildState(sessionID, row.Operations, row.Version)
}

// SyncOperations merges a batch into the stored log and bumps the version by
// exactly one. The SELECT ... FOR UPDATE on the state row serializes
// concurrent sync calls against the same session, so the read-modify-write
// never loses a batch.
func (r *WhiteboardRepo) SyncOperations(ctx context.Context, sessionID, userID string, ops []models.Operation) (models.WhiteboardState, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.WhiteboardState{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var row struct {
		Operations []byte `db:"operations"`
		Version    int    `db:"version"`
	}
	err = tx.QueryRowxContext(ctx,
		`SELECT operations, version FROM peer_whiteboard_state WHERE session_id=$1 FOR UPDATE`, sessionID).
		StructScan(&row)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrWhiteboardNotFound
		return models.WhiteboardState{}, err
	}
	if err != nil {
		return models.WhiteboardState{}, err
	}

	var existing []models.Operation
	if len(row.Operations) > 0 {
		// a corrupted log column resets to empty rather than wedging the session
		_ = json.Unmarshal(row.Operations, &existing)
	}

	merged := whiteboard.Merge(existing, ops)
	version := row.Version + 1

	var payload []byte
	payload, err = json.Marshal(merged)
	if err != nil {
		return models.WhiteboardState{}, err
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE peer_whiteboard_state SET operations=$1, version=$2, updated_at=NOW(), updated_by=$3 WHERE session_id=$4`,
		payload, version, userID, sessionID); err != nil {
		return models.WhiteboardState{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.WhiteboardState{}, err
	}

	return models.WhiteboardState{SessionID: sessionID, Operations: merged, Version: version}, nil
}

func buildState(sessionID string, raw []byte, version int) (models.WhiteboardState, error) {
	state := models.WhiteboardState{SessionID: sessionID, Operations: []models.Operation{}, Version: version}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &state.Operations); err != nil {
			return models.WhiteboardState{}, err
		}
	}
	return state, nil
}
