package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"schoolmail/internal/model"
)

type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a user and returns the new id.
func (r *UserRepository) Create(ctx context.Context, email, passwordHash string) (int, error) {
	query := `
        INSERT INTO users (email, password_hash, created_at)
        VALUES ($1, $2, NOW())
        RETURNING id
    `
	var id int
	err := r.db.QueryRow(ctx, query, email, passwordHash).Scan(&id)
	return id, err
}

// FindByEmail loads a user by email. Returns nil without error when no such
// user exists.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `
        SELECT id, email, password_hash, created_at
        FROM users
        WHERE email = $1
    `
	var u model.User
	err := r.db.QueryRow(ctx, query, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
