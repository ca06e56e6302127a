package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"peer-service/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository reads the slice of user data this service needs.
type UserRepository interface {
	GetProfile(ctx context.Context, userID string) (models.UserProfile, error)
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// GetProfile fetches a user's name, school and class level.
func (r *UserRepo) GetProfile(ctx context.Context, userID string) (models.UserProfile, error) {
	var profile models.UserProfile
	err := r.db.GetContext(ctx, &profile, `SELECT id, full_name, school_id, class_level FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.UserProfile{}, ErrUserNotFound
	}
	return profile, err
}
