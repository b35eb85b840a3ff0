package clickhouse

import (
	"context"
	"fmt"

	"fx-backtest-lab/internal/domain"
	"fx-backtest-lab/internal/storage"
)

// TradeArchive implements storage.TradeArchive using ClickHouse. Closed
// trades and equity curves are appended at session finalize for offline
// cross-session analytics; the core never reads them back.
type TradeArchive struct {
	conn *Conn
}

// NewTradeArchive creates a new TradeArchive.
func NewTradeArchive(conn *Conn) *TradeArchive {
	return &TradeArchive{conn: conn}
}

// Compile-time interface check.
var _ storage.TradeArchive = (*TradeArchive)(nil)

// ArchiveTrades appends a session's trades.
func (a *TradeArchive) ArchiveTrades(ctx context.Context, trades []domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	batch, err := a.conn.PrepareBatch(ctx, `
		INSERT INTO trades (
			trade_id, session_id, side, entry_price, exit_price,
			stop_loss, take_profit, lot_size, opened_at, closed_at,
			duration_minutes, gross_pnl, pnl_percent, outcome, exit_reason,
			commission, swap, net_pnl, decision_id
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare trade batch: %w", err)
	}

	for _, t := range trades {
		err = batch.Append(
			t.ID, t.SessionID, string(t.Side), t.EntryPrice, t.ExitPrice,
			t.StopLoss, t.TakeProfit, t.LotSize, t.OpenedAt, t.ClosedAt,
			t.DurationMinutes, t.GrossPnL, t.PnLPercent, string(t.Outcome), string(t.ExitReason),
			t.Commission, t.Swap, t.NetPnL, t.DecisionID,
		)
		if err != nil {
			return fmt.Errorf("append trade to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send trade batch: %w", err)
	}
	return nil
}

// ArchiveEquityCurve appends a session's equity curve.
func (a *TradeArchive) ArchiveEquityCurve(ctx context.Context, sessionID string, points []domain.EquityPoint) error {
	if len(points) == 0 {
		return nil
	}

	batch, err := a.conn.PrepareBatch(ctx, `
		INSERT INTO equity_points (
			session_id, timestamp, balance, equity, drawdown, drawdown_percent
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare equity batch: %w", err)
	}

	for _, p := range points {
		err = batch.Append(
			sessionID, p.Timestamp, p.Balance, p.Equity, p.Drawdown, p.DrawdownPercent,
		)
		if err != nil {
			return fmt.Errorf("append equity point to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send equity batch: %w", err)
	}
	return nil
}
