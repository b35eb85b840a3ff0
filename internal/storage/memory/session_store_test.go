package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fx-backtest-lab/internal/domain"
	"fx-backtest-lab/internal/storage"
)

func sampleSession(id string, createdAt time.Time) *domain.BacktestSession {
	closed := createdAt.Add(2 * time.Hour)
	return &domain.BacktestSession{
		ID:             id,
		UserID:         "u1",
		Symbol:         "EURUSD",
		StartDate:      createdAt.Add(-30 * 24 * time.Hour),
		EndDate:        createdAt.Add(-24 * time.Hour),
		InitialBalance: 10000,
		SkipCandles:    6,
		Status:         domain.SessionStatusCompleted,
		CreatedAt:      createdAt,
		FinishedAt:     &closed,
		Summary:        domain.PerformanceSummary{TotalTrades: 1, WinningTrades: 1, WinRatePercent: 100, NetPnL: 9.3},
		Trades: []domain.Trade{{
			ID: "t1", SessionID: id, Side: domain.SideBuy,
			EntryPrice: 1.1, ExitPrice: 1.11, LotSize: 0.1,
			OpenedAt: createdAt, ClosedAt: closed,
			GrossPnL: 10, NetPnL: 9.3, Outcome: domain.OutcomeWin,
			ExitReason: domain.ExitReasonTakeProfit,
		}},
		EquityCurve: []domain.EquityPoint{
			{Timestamp: createdAt, Balance: 10000, Equity: 10000},
			{Timestamp: closed, Balance: 10009.3, Equity: 10009.3},
		},
		AnalysisLog: []string{"d1"},
	}
}

func TestSessionStore_SaveAndGetRoundTrip(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()
	session := sampleSession("s1", time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC))

	require.NoError(t, store.Save(ctx, session))

	loaded, err := store.Get(ctx, "s1")
	require.NoError(t, err)

	// Field-for-field round trip: trades, equity curve and summary intact
	assert.Equal(t, session, loaded)
}

func TestSessionStore_GetNotFound(t *testing.T) {
	store := NewSessionStore()
	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSessionStore_SaveIsLastWriteWins(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()
	session := sampleSession("s1", time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC))
	require.NoError(t, store.Save(ctx, session))

	session.Status = domain.SessionStatusFailed
	require.NoError(t, store.Save(ctx, session))

	loaded, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusFailed, loaded.Status)
}

func TestSessionStore_StoredCopyIsIsolated(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()
	session := sampleSession("s1", time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC))
	require.NoError(t, store.Save(ctx, session))

	// Mutating the caller's copy must not affect the stored snapshot
	session.Trades[0].NetPnL = -999

	loaded, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 9.3, loaded.Trades[0].NetPnL)
}

func TestSessionStore_ListOldestFirst(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()
	base := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.Save(ctx, sampleSession("s2", base.Add(time.Hour))))
	require.NoError(t, store.Save(ctx, sampleSession("s1", base)))
	require.NoError(t, store.Save(ctx, sampleSession("s3", base.Add(2*time.Hour))))

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2", "s3"}, ids)
}

func TestSessionStore_Delete(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, sampleSession("s1", time.Now())))

	removed, err := store.Delete(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = store.Delete(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = store.Get(ctx, "s1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSessionStore_SaveInvalid(t *testing.T) {
	store := NewSessionStore()
	assert.ErrorIs(t, store.Save(context.Background(), nil), storage.ErrInvalidInput)
	assert.ErrorIs(t, store.Save(context.Background(), &domain.BacktestSession{}), storage.ErrInvalidInput)
}
