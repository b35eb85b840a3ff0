package ledger

import (
	"math"

	"fx-backtest-lab/internal/domain"
)

// AdvancedMetrics derives Sharpe, Sortino and Calmar ratios from the
// per-step returns implied by the equity curve and stores them on the
// session summary. Best-effort diagnostics, never used for control flow.
func AdvancedMetrics(s *domain.BacktestSession) {
	returns := equityReturns(s.EquityCurve)

	s.Summary.SharpeRatio = sharpe(returns)
	s.Summary.SortinoRatio = sortino(returns)
	s.Summary.CalmarRatio = calmar(returns, s.Summary.MaxDrawdownPercent)
}

// equityReturns computes period-over-period returns from the balance curve.
// A step is skipped when the previous balance is non-positive.
func equityReturns(curve []domain.EquityPoint) []float64 {
	var returns []float64
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Balance
		if prev <= 0 {
			continue
		}
		returns = append(returns, (curve[i].Balance-prev)/prev)
	}
	return returns
}

// sharpe is mean(returns) / stdev(returns), 0 when stdev is 0.
func sharpe(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	m := mean(returns)
	sd := stddev(returns, m)
	if sd == 0 {
		return 0
	}
	return m / sd
}

// sortino is mean(returns) / downside-deviation, 0 when there are no
// negative returns.
func sortino(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	downSumSq := 0.0
	downCount := 0
	for _, r := range returns {
		if r < 0 {
			downSumSq += r * r
			downCount++
		}
	}
	if downCount == 0 {
		return 0
	}
	downside := math.Sqrt(downSumSq / float64(downCount))
	if downside == 0 {
		return 0
	}
	return mean(returns) / downside
}

// calmar is (mean(returns) * 100) / maxDrawdownPercent, 0 when the drawdown
// is 0.
func calmar(returns []float64, maxDrawdownPercent float64) float64 {
	if len(returns) == 0 || maxDrawdownPercent == 0 {
		return 0
	}
	return mean(returns) * 100 / maxDrawdownPercent
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stddev is the sample standard deviation (n-1 denominator).
func stddev(values []float64, mean float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n-1))
}
