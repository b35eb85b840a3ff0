package ledger

import (
	"errors"
	"testing"
	"time"

	"fx-backtest-lab/internal/domain"
)

var t0 = time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

func newSession() *domain.BacktestSession {
	s := &domain.BacktestSession{
		ID:             "sess-1",
		Symbol:         "EURUSD",
		InitialBalance: 10000,
		Status:         domain.SessionStatusRunning,
		CreatedAt:      t0,
	}
	SeedEquity(s, t0)
	return s
}

func closedTrade(netPnL float64, closedAt time.Time) domain.Trade {
	outcome := domain.OutcomeBreakeven
	if netPnL > 0 {
		outcome = domain.OutcomeWin
	} else if netPnL < 0 {
		outcome = domain.OutcomeLoss
	}
	return domain.Trade{
		NetPnL:   netPnL,
		GrossPnL: netPnL,
		Outcome:  outcome,
		ClosedAt: closedAt,
	}
}

func TestSeedEquity(t *testing.T) {
	s := newSession()
	if len(s.EquityCurve) != 1 {
		t.Fatalf("expected 1 seed point, got %d", len(s.EquityCurve))
	}
	if s.EquityCurve[0].Balance != 10000 || s.EquityCurve[0].Drawdown != 0 {
		t.Errorf("unexpected seed point: %+v", s.EquityCurve[0])
	}
}

func TestAddTrade_AppendsExactlyOne(t *testing.T) {
	s := newSession()

	AddTrade(s, closedTrade(100, t0.Add(time.Hour)))

	if len(s.Trades) != 1 {
		t.Errorf("expected 1 trade, got %d", len(s.Trades))
	}
	if len(s.EquityCurve) != 2 {
		t.Errorf("expected 2 equity points, got %d", len(s.EquityCurve))
	}

	AddTrade(s, closedTrade(-50, t0.Add(2*time.Hour)))

	if len(s.Trades) != 2 || len(s.EquityCurve) != 3 {
		t.Errorf("each AddTrade must append exactly one of each, got %d trades / %d points",
			len(s.Trades), len(s.EquityCurve))
	}
}

func TestAddTrade_BalanceAndDrawdown(t *testing.T) {
	s := newSession()

	AddTrade(s, closedTrade(200, t0.Add(time.Hour)))
	AddTrade(s, closedTrade(-300, t0.Add(2*time.Hour)))

	last := s.EquityCurve[len(s.EquityCurve)-1]
	if last.Balance != 9900 {
		t.Errorf("expected balance 9900, got %f", last.Balance)
	}
	// Peak was 10200 after the first trade
	if last.Drawdown != 300 {
		t.Errorf("expected drawdown 300 from peak 10200, got %f", last.Drawdown)
	}
	wantPct := 300.0 / 10200 * 100
	if diff := last.DrawdownPercent - wantPct; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected drawdown percent %f, got %f", wantPct, last.DrawdownPercent)
	}
	if s.Summary.NetPnL != -100 {
		t.Errorf("expected summary net pnl -100, got %f", s.Summary.NetPnL)
	}
}

func TestAddTrade_DrawdownAlwaysNonNegative(t *testing.T) {
	s := newSession()
	pnls := []float64{50, -120, 300, -80, -40, 500, -20000}
	for i, pnl := range pnls {
		AddTrade(s, closedTrade(pnl, t0.Add(time.Duration(i+1)*time.Hour)))
	}

	for _, p := range s.EquityCurve {
		if p.Drawdown < 0 {
			t.Errorf("drawdown must be >= 0, got %f at %s", p.Drawdown, p.Timestamp)
		}
		if p.DrawdownPercent < 0 || p.DrawdownPercent > 100 {
			t.Errorf("drawdown percent must be in [0, 100], got %f", p.DrawdownPercent)
		}
	}
}

func TestAddTrade_LossBeyondBalanceCapsPercent(t *testing.T) {
	// A single loss twice the balance drives it to -10000; the drawdown
	// percent still stays at 100.
	s := newSession()
	AddTrade(s, closedTrade(-20000, t0.Add(time.Hour)))

	last := s.EquityCurve[len(s.EquityCurve)-1]
	if last.Balance != -10000 {
		t.Errorf("expected balance -10000, got %f", last.Balance)
	}
	if last.DrawdownPercent != 100 {
		t.Errorf("expected drawdown percent capped at 100, got %f", last.DrawdownPercent)
	}
	if s.Summary.MaxDrawdownPercent != 100 {
		t.Errorf("expected max drawdown capped at 100, got %f", s.Summary.MaxDrawdownPercent)
	}
}

func TestMaxDrawdownPercent(t *testing.T) {
	curve := []domain.EquityPoint{
		{Balance: 10000},
		{Balance: 10500},
		{Balance: 9450}, // 10% off the 10500 peak
		{Balance: 10200},
		{Balance: 9690}, // 7.7% off, smaller
	}

	got := MaxDrawdownPercent(curve)
	if diff := got - 10.0; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected max drawdown 10%%, got %f", got)
	}
}

func TestMaxDrawdownPercent_Empty(t *testing.T) {
	if got := MaxDrawdownPercent(nil); got != 0 {
		t.Errorf("expected 0 for empty curve, got %f", got)
	}
}

func TestStreakScenario(t *testing.T) {
	// Two wins, one loss, three wins → maxConsecutiveWins 3, maxConsecutiveLosses 1
	s := newSession()
	pnls := []float64{10, 20, -5, 15, 25, 35}
	for i, pnl := range pnls {
		AddTrade(s, closedTrade(pnl, t0.Add(time.Duration(i+1)*time.Hour)))
	}

	if s.Summary.MaxConsecutiveWins != 3 {
		t.Errorf("expected maxConsecutiveWins 3, got %d", s.Summary.MaxConsecutiveWins)
	}
	if s.Summary.MaxConsecutiveLosses != 1 {
		t.Errorf("expected maxConsecutiveLosses 1, got %d", s.Summary.MaxConsecutiveLosses)
	}
}

func TestCompleteSession_OneWay(t *testing.T) {
	s := newSession()
	CompleteSession(s, t0.Add(time.Hour))

	if s.Status != domain.SessionStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", s.Status)
	}
	if s.FinishedAt == nil {
		t.Fatal("expected finished timestamp")
	}

	// Terminal status is immutable
	FailSession(s, t0.Add(2*time.Hour), errors.New("late failure"))
	if s.Status != domain.SessionStatusCompleted {
		t.Errorf("terminal transition must be one-way, got %s", s.Status)
	}
	if len(s.ErrorLog) != 0 {
		t.Errorf("no error entry after terminal state, got %v", s.ErrorLog)
	}
}

func TestFailSession_LogsError(t *testing.T) {
	s := newSession()
	FailSession(s, t0.Add(time.Hour), errors.New("candle fetch failed"))

	if s.Status != domain.SessionStatusFailed {
		t.Fatalf("expected FAILED, got %s", s.Status)
	}
	if len(s.ErrorLog) != 1 {
		t.Fatalf("expected 1 error entry, got %d", len(s.ErrorLog))
	}
}

func TestCancelSession(t *testing.T) {
	s := newSession()
	CancelSession(s, t0.Add(time.Hour))
	if s.Status != domain.SessionStatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", s.Status)
	}
	CompleteSession(s, t0.Add(2*time.Hour))
	if s.Status != domain.SessionStatusCancelled {
		t.Error("cancelled session must stay cancelled")
	}
}
