package domain

import "time"

// Side is the direction of an order or position.
type Side string

// Side constants.
const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderKind is the trigger condition of a pending order.
type OrderKind string

// Order kind constants.
const (
	OrderKindBuyStop   OrderKind = "BUY_STOP"
	OrderKindSellStop  OrderKind = "SELL_STOP"
	OrderKindBuyLimit  OrderKind = "BUY_LIMIT"
	OrderKindSellLimit OrderKind = "SELL_LIMIT"
)

// Side returns the position side an order of this kind opens.
func (k OrderKind) Side() Side {
	switch k {
	case OrderKindBuyStop, OrderKindBuyLimit:
		return SideBuy
	default:
		return SideSell
	}
}

// StopOrderFor maps a requested side to a stop order in that direction.
func StopOrderFor(side Side) OrderKind {
	if side == SideSell {
		return OrderKindSellStop
	}
	return OrderKindBuyStop
}

// OrderStatus is the lifecycle state of a pending order.
// Transitions are one-way: PENDING -> {EXECUTED | CANCELLED | EXPIRED}.
type OrderStatus string

// Order status constants.
const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusExecuted  OrderStatus = "EXECUTED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusExpired   OrderStatus = "EXPIRED"
)

// PendingOrder is a conditional order awaiting trigger.
// An order past its expiry time must never execute.
type PendingOrder struct {
	ID         string      `json:"id"`
	Kind       OrderKind   `json:"kind"`
	Price      float64     `json:"price"` // trigger price
	StopLoss   float64     `json:"stop_loss"`
	TakeProfit float64     `json:"take_profit"`
	LotSize    float64     `json:"lot_size"`
	CreatedAt  time.Time   `json:"created_at"`
	ExpiresAt  time.Time   `json:"expires_at"`
	Status     OrderStatus `json:"status"`
	DecisionID string      `json:"decision_id"` // originating oracle decision
}
