package domain

import "time"

// Verdict is the oracle's trade/no-trade decision.
type Verdict string

// Verdict constants.
const (
	VerdictTrade   Verdict = "TRADE"
	VerdictNoTrade Verdict = "NO_TRADE"
)

// TradeParams are the trade parameters attached to a TRADE verdict.
type TradeParams struct {
	Side       Side    `json:"side"`
	EntryPrice float64 `json:"entry_price"`
	StopLoss   float64 `json:"stop_loss"`
	TakeProfit float64 `json:"take_profit"`
	LotSize    float64 `json:"lot_size"` // 0 means use the default lot size
}

// Decision is the oracle's answer for one decision request.
type Decision struct {
	ID         string       `json:"id"`
	Verdict    Verdict      `json:"verdict"`
	Params     *TradeParams `json:"params,omitempty"`
	Confidence float64      `json:"confidence"`
	Reasoning  string       `json:"reasoning,omitempty"`
}

// DecisionContext is the market context handed to the oracle for one
// decision request: a trailing look-back window of multi-resolution candles
// plus optional rendered charts.
type DecisionContext struct {
	Symbol          string
	WindowStart     time.Time
	WindowEnd       time.Time
	Candles         map[Resolution][]Candle
	Charts          [][]byte // rendered chart images, best-effort
	ScreeningPrompt string
	DecisionPrompt  string
}
