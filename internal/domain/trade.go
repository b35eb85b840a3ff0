package domain

import "time"

// TradeOutcome classifies a closed trade by the sign of its gross P&L.
type TradeOutcome string

// Outcome constants.
const (
	OutcomeWin       TradeOutcome = "WIN"
	OutcomeLoss      TradeOutcome = "LOSS"
	OutcomeBreakeven TradeOutcome = "BREAKEVEN"
)

// ExitReason records why a position was closed.
type ExitReason string

// Exit reason constants.
const (
	ExitReasonTakeProfit ExitReason = "TAKE_PROFIT"
	ExitReasonStopLoss   ExitReason = "STOP_LOSS"
	ExitReasonManual     ExitReason = "MANUAL"
	ExitReasonExpired    ExitReason = "EXPIRED"
)

// Trade is the immutable record created the instant a position closes.
type Trade struct {
	ID              string       `json:"id"`
	SessionID       string       `json:"session_id"`
	Side            Side         `json:"side"`
	EntryPrice      float64      `json:"entry_price"`
	ExitPrice       float64      `json:"exit_price"`
	StopLoss        float64      `json:"stop_loss"`
	TakeProfit      float64      `json:"take_profit"`
	LotSize         float64      `json:"lot_size"`
	OpenedAt        time.Time    `json:"opened_at"`
	ClosedAt        time.Time    `json:"closed_at"`
	DurationMinutes int64        `json:"duration_minutes"` // whole minutes, floored
	GrossPnL        float64      `json:"gross_pnl"`
	PnLPercent      float64      `json:"pnl_percent"` // relative to balance before this trade
	Outcome         TradeOutcome `json:"outcome"`
	ExitReason      ExitReason   `json:"exit_reason"`
	Commission      float64      `json:"commission"`
	Swap            float64      `json:"swap"`
	NetPnL          float64      `json:"net_pnl"` // gross - commission - swap
	DecisionID      string       `json:"decision_id"`
}
