// Package storage defines the persistence contracts consumed by the
// backtest core. Implementations live in the memory, postgres and
// clickhouse subpackages.
package storage

import (
	"context"

	"fx-backtest-lab/internal/domain"
)

// SessionStore persists backtest session snapshots. The session record is
// the unit of persistence; writes are last-write-wins per session id.
type SessionStore interface {
	// Save upserts a session snapshot.
	Save(ctx context.Context, s *domain.BacktestSession) error

	// Get retrieves a session by id. Returns ErrNotFound if not exists.
	Get(ctx context.Context, sessionID string) (*domain.BacktestSession, error)

	// List returns all stored session ids, oldest first.
	List(ctx context.Context) ([]string, error)

	// Delete removes a session. Reports whether a record was removed.
	Delete(ctx context.Context, sessionID string) (bool, error)
}

// UserStore provides access to user records.
type UserStore interface {
	// GetByID retrieves a user by id. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, userID string) (*domain.User, error)

	// GetByEmail retrieves a user by email. Returns ErrNotFound if not exists.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// Upsert inserts or replaces a user record.
	Upsert(ctx context.Context, u *domain.User) error

	// List returns all users.
	List(ctx context.Context) ([]*domain.User, error)
}

// TradeArchive is an append-only analytical sink for closed trades and
// equity curves, written once at session finalize. Optional: a nil archive
// disables archival.
type TradeArchive interface {
	// ArchiveTrades appends a session's trades.
	ArchiveTrades(ctx context.Context, trades []domain.Trade) error

	// ArchiveEquityCurve appends a session's equity curve.
	ArchiveEquityCurve(ctx context.Context, sessionID string, points []domain.EquityPoint) error
}
