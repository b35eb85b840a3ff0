package accounting

import (
	"math"
	"testing"

	"fx-backtest-lab/internal/domain"
)

func TestComputeSummary_EmptyInput(t *testing.T) {
	// Empty trade list → all-zero summary, profit factor 0, never NaN
	s := ComputeSummary(nil)

	if s.TotalTrades != 0 || s.WinningTrades != 0 || s.LosingTrades != 0 {
		t.Errorf("expected zero counts, got %+v", s)
	}
	if s.ProfitFactor != 0 {
		t.Errorf("expected profit factor 0, got %f", s.ProfitFactor)
	}
	if math.IsNaN(s.WinRatePercent) || math.IsNaN(s.AverageWin) || math.IsNaN(s.AverageLoss) {
		t.Error("empty summary must not contain NaN")
	}
}

func TestComputeSummary_Counts(t *testing.T) {
	trades := []domain.Trade{
		{Outcome: domain.OutcomeWin, GrossPnL: 100, NetPnL: 97, Commission: 2, Swap: 1},
		{Outcome: domain.OutcomeLoss, GrossPnL: -40, NetPnL: -42, Commission: 2},
		{Outcome: domain.OutcomeWin, GrossPnL: 60, NetPnL: 58, Commission: 2},
		{Outcome: domain.OutcomeBreakeven, GrossPnL: 0, NetPnL: -2, Commission: 2},
	}

	s := ComputeSummary(trades)

	if s.TotalTrades != 4 || s.WinningTrades != 2 || s.LosingTrades != 1 || s.BreakevenTrades != 1 {
		t.Errorf("unexpected counts: %+v", s)
	}
	if s.WinRatePercent != 50 {
		t.Errorf("expected win rate 50, got %f", s.WinRatePercent)
	}
	// Profit factor = gross 160 / 40 = 4
	if s.ProfitFactor != 4 {
		t.Errorf("expected profit factor 4, got %f", s.ProfitFactor)
	}
	if s.AverageWin != 80 || s.AverageLoss != -40 {
		t.Errorf("expected avg win 80 / avg loss -40, got %f / %f", s.AverageWin, s.AverageLoss)
	}
	if s.LargestWin != 100 || s.LargestLoss != -40 {
		t.Errorf("expected largest 100 / -40, got %f / %f", s.LargestWin, s.LargestLoss)
	}
	if s.TotalCommission != 8 || s.TotalSwap != 1 {
		t.Errorf("expected commission 8 swap 1, got %f / %f", s.TotalCommission, s.TotalSwap)
	}
	if s.NetPnL != 111 {
		t.Errorf("expected net pnl 111, got %f", s.NetPnL)
	}
}

func TestComputeSummary_ProfitFactorInfSentinel(t *testing.T) {
	// Wins and no losses → +Inf, not NaN
	trades := []domain.Trade{
		{Outcome: domain.OutcomeWin, GrossPnL: 10, NetPnL: 10},
		{Outcome: domain.OutcomeWin, GrossPnL: 20, NetPnL: 20},
	}

	s := ComputeSummary(trades)

	if !math.IsInf(s.ProfitFactor, 1) {
		t.Errorf("expected +Inf profit factor, got %f", s.ProfitFactor)
	}
}

func TestComputeSummary_NetNegativeWinSumsGross(t *testing.T) {
	// A tiny gross win eaten by commission stays a positive contribution
	// to the gross-win sum; the profit factor must not be skewed by it.
	trades := []domain.Trade{
		{Outcome: domain.OutcomeWin, GrossPnL: 1, NetPnL: -6, Commission: 7},
		{Outcome: domain.OutcomeLoss, GrossPnL: -10, NetPnL: -17, Commission: 7},
	}

	s := ComputeSummary(trades)

	if s.ProfitFactor != 0.1 {
		t.Errorf("expected profit factor 0.1, got %f", s.ProfitFactor)
	}
	if s.AverageWin != 1 || s.LargestWin != 1 {
		t.Errorf("expected gross win 1, got avg %f largest %f", s.AverageWin, s.LargestWin)
	}
	if s.NetPnL != -23 {
		t.Errorf("expected net pnl -23, got %f", s.NetPnL)
	}
}

func TestComputeSummary_ProfitFactorAllBreakeven(t *testing.T) {
	trades := []domain.Trade{
		{Outcome: domain.OutcomeBreakeven, NetPnL: 0},
	}

	s := ComputeSummary(trades)

	if s.ProfitFactor != 0 {
		t.Errorf("expected profit factor 0 with neither wins nor losses, got %f", s.ProfitFactor)
	}
}

func TestConsecutiveWinsLosses_Streaks(t *testing.T) {
	// W W L W W W → max wins 3, max losses 1
	trades := []domain.Trade{
		{Outcome: domain.OutcomeWin},
		{Outcome: domain.OutcomeWin},
		{Outcome: domain.OutcomeLoss},
		{Outcome: domain.OutcomeWin},
		{Outcome: domain.OutcomeWin},
		{Outcome: domain.OutcomeWin},
	}

	maxWins, maxLosses := ConsecutiveWinsLosses(trades)

	if maxWins != 3 {
		t.Errorf("expected maxWins 3, got %d", maxWins)
	}
	if maxLosses != 1 {
		t.Errorf("expected maxLosses 1, got %d", maxLosses)
	}
}

func TestConsecutiveWinsLosses_BreakevenResetsBoth(t *testing.T) {
	// W W B W → breakeven interrupts the streak, max wins stays 2
	trades := []domain.Trade{
		{Outcome: domain.OutcomeWin},
		{Outcome: domain.OutcomeWin},
		{Outcome: domain.OutcomeBreakeven},
		{Outcome: domain.OutcomeWin},
	}

	maxWins, maxLosses := ConsecutiveWinsLosses(trades)

	if maxWins != 2 {
		t.Errorf("expected maxWins 2 (breakeven resets), got %d", maxWins)
	}
	if maxLosses != 0 {
		t.Errorf("expected maxLosses 0, got %d", maxLosses)
	}
}

func TestConsecutiveWinsLosses_Empty(t *testing.T) {
	maxWins, maxLosses := ConsecutiveWinsLosses(nil)
	if maxWins != 0 || maxLosses != 0 {
		t.Errorf("expected 0/0, got %d/%d", maxWins, maxLosses)
	}
}
