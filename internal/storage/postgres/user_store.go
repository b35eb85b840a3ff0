package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"fx-backtest-lab/internal/domain"
	"fx-backtest-lab/internal/storage"
)

// UserStore implements storage.UserStore using PostgreSQL.
type UserStore struct {
	pool *Pool
}

// NewUserStore creates a new UserStore.
func NewUserStore(pool *Pool) *UserStore {
	return &UserStore{pool: pool}
}

// Compile-time interface check.
var _ storage.UserStore = (*UserStore)(nil)

// GetByID retrieves a user by id. Returns ErrNotFound if not exists.
func (s *UserStore) GetByID(ctx context.Context, userID string) (*domain.User, error) {
	query := `SELECT user_id, email, name, created_at FROM users WHERE user_id = $1`
	return s.scanOne(s.pool.QueryRow(ctx, query, userID))
}

// GetByEmail retrieves a user by email. Returns ErrNotFound if not exists.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT user_id, email, name, created_at FROM users WHERE email = $1`
	return s.scanOne(s.pool.QueryRow(ctx, query, email))
}

// Upsert inserts or replaces a user record.
func (s *UserStore) Upsert(ctx context.Context, u *domain.User) error {
	if u == nil || u.ID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO users (user_id, email, name, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			email = EXCLUDED.email,
			name = EXCLUDED.name
	`

	_, err := s.pool.Exec(ctx, query, u.ID, u.Email, u.Name, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// List returns all users ordered by id.
func (s *UserStore) List(ctx context.Context) ([]*domain.User, error) {
	query := `SELECT user_id, email, name, created_at FROM users ORDER BY user_id ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var result []*domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		result = append(result, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return result, nil
}

func (s *UserStore) scanOne(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}
