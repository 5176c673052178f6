package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/outfit-wizard-api/internal/models"
	"github.com/noah-isme/outfit-wizard-api/pkg/database"
)

// UserRepository provides database access for accounts.
type UserRepository struct {
	pool *database.Pool
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(pool *database.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Create inserts a new user. Duplicate emails surface as AlreadyExists.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	const query = `INSERT INTO users (email, password_hash, role) VALUES ($1, $2, $3) RETURNING id, created_at`
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	err := r.pool.Tx(ctx, "users_create", func(ctx context.Context, tx *sqlx.Tx) error {
		return tx.QueryRowxContext(ctx, query, user.Email, user.PasswordHash, user.Role).Scan(&user.ID, &user.CreatedAt)
	})
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// FindByEmail returns a user by email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	const query = `SELECT id, email, password_hash, role, created_at FROM users WHERE email = $1 LIMIT 1`
	var user models.User
	err := r.pool.Do(ctx, "users_by_email", func(ctx context.Context, q database.Querier) error {
		return q.GetContext(ctx, &user, query, strings.ToLower(strings.TrimSpace(email)))
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id int64) (*models.User, error) {
	const query = `SELECT id, email, password_hash, role, created_at FROM users WHERE id = $1 LIMIT 1`
	var user models.User
	err := r.pool.Do(ctx, "users_by_id", func(ctx context.Context, q database.Querier) error {
		return q.GetContext(ctx, &user, query, id)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// Exists reports whether an account uses email.
func (r *UserRepository) Exists(ctx context.Context, email string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`
	var exists bool
	err := r.pool.Do(ctx, "users_exists", func(ctx context.Context, q database.Querier) error {
		return q.GetContext(ctx, &exists, query, strings.ToLower(strings.TrimSpace(email)))
	})
	if err != nil {
		return false, fmt.Errorf("check user exists: %w", err)
	}
	return exists, nil
}
