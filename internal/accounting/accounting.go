// Package accounting provides pure trade math: per-trade P&L, outcome
// classification and aggregate performance summaries. No state, no I/O.
package accounting

import (
	"time"

	"fx-backtest-lab/internal/domain"
)

// PnL computes the signed gross P&L of a round trip in account currency.
// The price difference is expressed in pips (buy: exit-entry, sell:
// entry-exit) and scaled by the symbol's pip value and the lot size.
func PnL(side domain.Side, entry, exit, lotSize float64, spec domain.SymbolSpec) float64 {
	pipSize := spec.PipSize
	if pipSize <= 0 {
		pipSize = domain.DefaultPipSize
	}
	pipValue := spec.PipValue
	if pipValue <= 0 {
		pipValue = domain.DefaultPipValue
	}

	diff := exit - entry
	if side == domain.SideSell {
		diff = entry - exit
	}
	return diff / pipSize * pipValue * lotSize
}

// PnLPercent returns net P&L as a percentage of the reference balance.
// The reference balance is the balance before the trade's net effect;
// callers must guard against a zero reference.
func PnLPercent(netPnL, referenceBalance float64) float64 {
	return netPnL / referenceBalance * 100
}

// Outcome classifies a trade strictly by the sign of its gross P&L.
func Outcome(grossPnL float64) domain.TradeOutcome {
	switch {
	case grossPnL > 0:
		return domain.OutcomeWin
	case grossPnL < 0:
		return domain.OutcomeLoss
	default:
		return domain.OutcomeBreakeven
	}
}

// DurationMinutes returns the whole minutes between open and close, floored,
// never negative. Callers guarantee closedAt >= openedAt.
func DurationMinutes(openedAt, closedAt time.Time) int64 {
	d := closedAt.Sub(openedAt)
	if d < 0 {
		return 0
	}
	return int64(d / time.Minute)
}
