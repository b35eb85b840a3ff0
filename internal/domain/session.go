package domain

import "time"

// SessionStatus is the lifecycle state of a backtest session.
// RUNNING -> exactly one of {COMPLETED | FAILED | CANCELLED}, terminal.
type SessionStatus string

// Session status constants.
const (
	SessionStatusRunning   SessionStatus = "RUNNING"
	SessionStatusCompleted SessionStatus = "COMPLETED"
	SessionStatusFailed    SessionStatus = "FAILED"
	SessionStatusCancelled SessionStatus = "CANCELLED"
)

// EquityPoint is one step of the running balance/drawdown curve.
// The first point is seeded at simulation start with the initial balance.
type EquityPoint struct {
	Timestamp       time.Time `json:"timestamp"`
	Balance         float64   `json:"balance"`
	Equity          float64   `json:"equity"`
	Drawdown        float64   `json:"drawdown"`         // running peak - balance, floor 0
	DrawdownPercent float64   `json:"drawdown_percent"` // relative to peak, 0 if peak is 0
}

// PerformanceSummary holds aggregate metrics over a session's trades.
// Recomputed in full from the trade list every time a trade is appended.
type PerformanceSummary struct {
	TotalTrades          int     `json:"total_trades"`
	WinningTrades        int     `json:"winning_trades"`
	LosingTrades         int     `json:"losing_trades"`
	BreakevenTrades      int     `json:"breakeven_trades"`
	WinRatePercent       float64 `json:"win_rate_percent"`
	ProfitFactor         float64 `json:"profit_factor"` // +Inf when wins and no losses, 0 when neither
	AverageWin           float64 `json:"average_win"`
	AverageLoss          float64 `json:"average_loss"`
	LargestWin           float64 `json:"largest_win"`
	LargestLoss          float64 `json:"largest_loss"`
	MaxConsecutiveWins   int     `json:"max_consecutive_wins"`
	MaxConsecutiveLosses int     `json:"max_consecutive_losses"`
	MaxDrawdownPercent   float64 `json:"max_drawdown_percent"`
	TotalCommission      float64 `json:"total_commission"`
	TotalSwap            float64 `json:"total_swap"`
	NetPnL               float64 `json:"net_pnl"`
	SharpeRatio          float64 `json:"sharpe_ratio"`
	SortinoRatio         float64 `json:"sortino_ratio"`
	CalmarRatio          float64 `json:"calmar_ratio"`
}

// BacktestSession is the aggregate root of one backtest run. Mutated only by
// the orchestrator and the ledger while RUNNING; immutable after a terminal
// transition.
type BacktestSession struct {
	ID                  string             `json:"id"`
	UserID              string             `json:"user_id"`
	Symbol              string             `json:"symbol"`
	StartDate           time.Time          `json:"start_date"`
	EndDate             time.Time          `json:"end_date"`
	InitialBalance      float64            `json:"initial_balance"`
	SkipCandles         int                `json:"skip_candles"`
	AnalysisWindowHours int                `json:"analysis_window_hours"`
	ScreeningPrompt     string             `json:"screening_prompt,omitempty"`
	DecisionPrompt      string             `json:"decision_prompt,omitempty"`
	Status              SessionStatus      `json:"status"`
	CreatedAt           time.Time          `json:"created_at"`
	FinishedAt          *time.Time         `json:"finished_at,omitempty"`
	Summary             PerformanceSummary `json:"summary"`
	Trades              []Trade            `json:"trades"`
	EquityCurve         []EquityPoint      `json:"equity_curve"`
	AnalysisLog         []string           `json:"analysis_log"` // append-only oracle decision ids
	ErrorLog            []string           `json:"error_log"`    // append-only error messages
}

// Terminal reports whether the session reached a terminal status.
func (s *BacktestSession) Terminal() bool {
	return s.Status != SessionStatusRunning
}
