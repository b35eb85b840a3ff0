package domain

import "time"

// PositionStatus is the lifecycle state of a position.
// OPEN -> CLOSED, terminal; after close the single position slot is free.
type PositionStatus string

// Position status constants.
const (
	PositionStatusOpen   PositionStatus = "OPEN"
	PositionStatusClosed PositionStatus = "CLOSED"
)

// ActivePosition is the single open position of a simulation instance.
// At most one exists at any simulated instant.
type ActivePosition struct {
	ID          string         `json:"id"`
	Side        Side           `json:"side"`
	EntryPrice  float64        `json:"entry_price"`
	StopLoss    float64        `json:"stop_loss"`
	TakeProfit  float64        `json:"take_profit"`
	LotSize     float64        `json:"lot_size"`
	OpenedAt    time.Time      `json:"opened_at"`
	Status      PositionStatus `json:"status"`
	ClosedAt    *time.Time     `json:"closed_at,omitempty"`
	ExitPrice   *float64       `json:"exit_price,omitempty"`
	RealizedPnL *float64       `json:"realized_pnl,omitempty"`
	DecisionID  string         `json:"decision_id"`
}
