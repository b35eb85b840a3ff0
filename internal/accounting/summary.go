package accounting

import (
	"math"

	"fx-backtest-lab/internal/domain"
)

// ComputeSummary calculates trade-derived aggregate metrics from a trade
// list. Win/loss aggregates (profit factor, averages, largest) sum gross
// P&L, consistent with the gross-sign outcome classification; NetPnL sums
// the net. On empty input every field is zero, including the profit factor
// (0, not NaN). Drawdown and risk-adjusted ratios are derived from the
// equity curve by the ledger, not here.
func ComputeSummary(trades []domain.Trade) domain.PerformanceSummary {
	n := len(trades)
	if n == 0 {
		return domain.PerformanceSummary{}
	}

	var (
		wins, losses, breakevens int
		grossWin, grossLoss      float64
		largestWin, largestLoss  float64
		totalCommission          float64
		totalSwap                float64
		netPnL                   float64
	)

	for _, t := range trades {
		switch t.Outcome {
		case domain.OutcomeWin:
			wins++
			grossWin += t.GrossPnL
			if t.GrossPnL > largestWin {
				largestWin = t.GrossPnL
			}
		case domain.OutcomeLoss:
			losses++
			grossLoss += t.GrossPnL
			if t.GrossPnL < largestLoss {
				largestLoss = t.GrossPnL
			}
		default:
			breakevens++
		}
		totalCommission += t.Commission
		totalSwap += t.Swap
		netPnL += t.NetPnL
	}

	maxWins, maxLosses := ConsecutiveWinsLosses(trades)

	return domain.PerformanceSummary{
		TotalTrades:          n,
		WinningTrades:        wins,
		LosingTrades:         losses,
		BreakevenTrades:      breakevens,
		WinRatePercent:       float64(wins) / float64(n) * 100,
		ProfitFactor:         computeProfitFactor(grossWin, grossLoss),
		AverageWin:           computeAverage(grossWin, wins),
		AverageLoss:          computeAverage(grossLoss, losses),
		LargestWin:           largestWin,
		LargestLoss:          largestLoss,
		MaxConsecutiveWins:   maxWins,
		MaxConsecutiveLosses: maxLosses,
		TotalCommission:      totalCommission,
		TotalSwap:            totalSwap,
		NetPnL:               netPnL,
	}
}

// ConsecutiveWinsLosses finds the longest win and loss streaks in one pass.
// A BREAKEVEN trade resets both counters: it continues neither streak.
func ConsecutiveWinsLosses(trades []domain.Trade) (maxWins, maxLosses int) {
	currentWins := 0
	currentLosses := 0

	for _, t := range trades {
		switch t.Outcome {
		case domain.OutcomeWin:
			currentWins++
			currentLosses = 0
			if currentWins > maxWins {
				maxWins = currentWins
			}
		case domain.OutcomeLoss:
			currentLosses++
			currentWins = 0
			if currentLosses > maxLosses {
				maxLosses = currentLosses
			}
		default:
			currentWins = 0
			currentLosses = 0
		}
	}
	return maxWins, maxLosses
}

// computeProfitFactor is grossWin / |grossLoss|.
// +Inf sentinel when there are wins and no losses, 0 when neither.
func computeProfitFactor(grossWin, grossLoss float64) float64 {
	if grossLoss == 0 {
		if grossWin > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return grossWin / math.Abs(grossLoss)
}

// computeAverage divides a total by a count, 0 on an empty count.
func computeAverage(total float64, count int) float64 {
	if count == 0 {
		return 0
	}
	return total / float64(count)
}
