package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"fx-backtest-lab/internal/domain"
	"fx-backtest-lab/internal/storage"
)

// SessionStore implements storage.SessionStore using PostgreSQL.
// The full session snapshot is stored as JSONB; indexed columns are
// duplicated for listing and filtering.
type SessionStore struct {
	pool *Pool
}

// NewSessionStore creates a new SessionStore.
func NewSessionStore(pool *Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SessionStore = (*SessionStore)(nil)

// Save upserts a session snapshot. Last write wins per session id.
func (s *SessionStore) Save(ctx context.Context, session *domain.BacktestSession) error {
	if session == nil || session.ID == "" {
		return storage.ErrInvalidInput
	}

	snapshot, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session snapshot: %w", err)
	}

	query := `
		INSERT INTO backtest_sessions (
			session_id, user_id, symbol, status, created_at, snapshot
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (session_id) DO UPDATE SET
			status = EXCLUDED.status,
			snapshot = EXCLUDED.snapshot
	`

	_, err = s.pool.Exec(ctx, query,
		session.ID, session.UserID, session.Symbol,
		string(session.Status), session.CreatedAt, snapshot,
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Get retrieves a session by id. Returns ErrNotFound if not exists.
func (s *SessionStore) Get(ctx context.Context, sessionID string) (*domain.BacktestSession, error) {
	query := `SELECT snapshot FROM backtest_sessions WHERE session_id = $1`

	var snapshot []byte
	err := s.pool.QueryRow(ctx, query, sessionID).Scan(&snapshot)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	var session domain.BacktestSession
	if err := json.Unmarshal(snapshot, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session snapshot: %w", err)
	}
	return &session, nil
}

// List returns all stored session ids, oldest first.
func (s *SessionStore) List(ctx context.Context) ([]string, error) {
	query := `SELECT session_id FROM backtest_sessions ORDER BY created_at ASC, session_id ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return ids, nil
}

// Delete removes a session. Reports whether a record was removed.
func (s *SessionStore) Delete(ctx context.Context, sessionID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM backtest_sessions WHERE session_id = $1`, sessionID)
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
