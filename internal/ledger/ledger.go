// Package ledger maintains a backtest session's trade list, equity curve
// and performance summary. All functions are stateless transforms over a
// domain.BacktestSession owned by exactly one run.
package ledger

import (
	"fmt"
	"time"

	"fx-backtest-lab/internal/accounting"
	"fx-backtest-lab/internal/domain"
)

// SeedEquity appends the initial equity point at simulation start.
func SeedEquity(s *domain.BacktestSession, at time.Time) {
	s.EquityCurve = append(s.EquityCurve, domain.EquityPoint{
		Timestamp: at,
		Balance:   s.InitialBalance,
		Equity:    s.InitialBalance,
	})
}

// AddTrade appends a confirmed trade to the session, recomputes the
// performance summary in full from the trade list, and appends exactly one
// equity point. Called exactly once per position close.
func AddTrade(s *domain.BacktestSession, trade domain.Trade) {
	s.Trades = append(s.Trades, trade)

	// Full recompute, not an incremental patch.
	sharpe, sortino, calmar := s.Summary.SharpeRatio, s.Summary.SortinoRatio, s.Summary.CalmarRatio
	s.Summary = accounting.ComputeSummary(s.Trades)
	s.Summary.SharpeRatio, s.Summary.SortinoRatio, s.Summary.CalmarRatio = sharpe, sortino, calmar

	appendEquityPoint(s, trade)
	s.Summary.MaxDrawdownPercent = MaxDrawdownPercent(s.EquityCurve)
}

// appendEquityPoint extends the curve by one step after a trade close.
func appendEquityPoint(s *domain.BacktestSession, trade domain.Trade) {
	prevBalance := s.InitialBalance
	if n := len(s.EquityCurve); n > 0 {
		prevBalance = s.EquityCurve[n-1].Balance
	}
	balance := prevBalance + trade.NetPnL

	peak := balance
	for _, p := range s.EquityCurve {
		if p.Balance > peak {
			peak = p.Balance
		}
	}

	drawdown := peak - balance
	if drawdown < 0 {
		drawdown = 0
	}
	// A loss beyond the whole balance caps at a full drawdown.
	drawdownPercent := 0.0
	if peak > 0 {
		drawdownPercent = drawdown / peak * 100
		if drawdownPercent > 100 {
			drawdownPercent = 100
		}
	}

	s.EquityCurve = append(s.EquityCurve, domain.EquityPoint{
		Timestamp:       trade.ClosedAt,
		Balance:         balance,
		Equity:          balance,
		Drawdown:        drawdown,
		DrawdownPercent: drawdownPercent,
	})
}

// MaxDrawdownPercent returns the maximum percent drawdown observed over the
// equity curve, tracking the running peak in a single pass. The result is
// capped at 100 even when the balance goes negative.
func MaxDrawdownPercent(curve []domain.EquityPoint) float64 {
	peak := 0.0
	maxDD := 0.0

	for _, p := range curve {
		if p.Balance > peak {
			peak = p.Balance
		}
		if peak <= 0 {
			continue
		}
		dd := (peak - p.Balance) / peak * 100
		if dd > 100 {
			dd = 100
		}
		if dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// LogAnalysis appends an oracle decision id to the session's analysis log.
func LogAnalysis(s *domain.BacktestSession, decisionID string) {
	s.AnalysisLog = append(s.AnalysisLog, decisionID)
}

// LogError appends a formatted error entry to the session's error log.
func LogError(s *domain.BacktestSession, at time.Time, err error) {
	s.ErrorLog = append(s.ErrorLog, fmt.Sprintf("%s: %v", at.Format(time.RFC3339), err))
}

// CompleteSession transitions the session to COMPLETED. One-way: no-op when
// the session is already terminal.
func CompleteSession(s *domain.BacktestSession, at time.Time) {
	if s.Terminal() {
		return
	}
	s.Status = domain.SessionStatusCompleted
	s.FinishedAt = &at
}

// FailSession transitions the session to FAILED and records the error.
// One-way: no-op when the session is already terminal.
func FailSession(s *domain.BacktestSession, at time.Time, err error) {
	if s.Terminal() {
		return
	}
	LogError(s, at, err)
	s.Status = domain.SessionStatusFailed
	s.FinishedAt = &at
}

// CancelSession transitions the session to CANCELLED. One-way: no-op when
// the session is already terminal.
func CancelSession(s *domain.BacktestSession, at time.Time) {
	if s.Terminal() {
		return
	}
	s.Status = domain.SessionStatusCancelled
	s.FinishedAt = &at
}
