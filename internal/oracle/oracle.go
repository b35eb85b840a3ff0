// Package oracle produces trade/no-trade decisions from market context.
package oracle

import (
	"context"
	"errors"
	"fmt"

	"fx-backtest-lab/internal/domain"
)

// ErrAnalysis is returned when the oracle fails to produce a decision.
// Callers treat an analysis failure as recoverable: log and advance.
var ErrAnalysis = errors.New("analysis failed")

// Oracle decides whether to trade at a point in the replay.
type Oracle interface {
	// Decide evaluates the market context and returns a decision. A TRADE
	// decision carries validated trade parameters.
	Decide(ctx context.Context, dctx domain.DecisionContext) (*domain.Decision, error)
}

// ValidateParams checks trade parameters for internal consistency. For a
// buy the prices must satisfy stop < entry < target; a sell is mirrored.
func ValidateParams(p *domain.TradeParams) error {
	if p == nil {
		return fmt.Errorf("missing trade params")
	}
	if p.Side != domain.SideBuy && p.Side != domain.SideSell {
		return fmt.Errorf("invalid side %q", p.Side)
	}
	if p.EntryPrice <= 0 || p.StopLoss <= 0 || p.TakeProfit <= 0 {
		return fmt.Errorf("prices must be positive")
	}
	switch p.Side {
	case domain.SideBuy:
		if !(p.StopLoss < p.EntryPrice && p.EntryPrice < p.TakeProfit) {
			return fmt.Errorf("buy requires stop < entry < target")
		}
	case domain.SideSell:
		if !(p.TakeProfit < p.EntryPrice && p.EntryPrice < p.StopLoss) {
			return fmt.Errorf("sell requires target < entry < stop")
		}
	}
	if p.LotSize < 0 {
		return fmt.Errorf("lot size must not be negative")
	}
	return nil
}
