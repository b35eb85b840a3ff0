// Package engine implements the pending-order/position state machine of one
// backtest run. A Manager holds the mutable simulation state (balance,
// equity, margin, pending orders, at most one open position) and advances it
// one candle at a time.
package engine

import (
	"time"

	"github.com/rs/zerolog"

	"fx-backtest-lab/internal/accounting"
	"fx-backtest-lab/internal/domain"
	"fx-backtest-lab/internal/idgen"
)

// Default cost and margin parameters applied when Config leaves them zero.
const (
	DefaultCommissionPerLot = 7.0
	DefaultLeverage         = 100.0
)

// Config holds the cost model and sizing conventions of one run.
type Config struct {
	SessionID          string
	InitialBalance     float64
	SymbolSpec         domain.SymbolSpec
	CommissionPerLot   float64 // flat commission charged per lot on close
	SwapLongPerLotDay  float64 // swap per lot per whole day held, buy side
	SwapShortPerLotDay float64 // swap per lot per whole day held, sell side
	Leverage           float64
	Logger             zerolog.Logger
}

// Manager owns the order and position state of a single simulation
// instance. Not safe for concurrent use: each run drives its own Manager
// strictly sequentially.
type Manager struct {
	cfg      Config
	balance  float64
	equity   float64
	margin   float64
	pending  []*domain.PendingOrder
	position *domain.ActivePosition
	seq      *idgen.Sequence

	executedCount  int
	cancelledCount int
	expiredCount   int
	closedTrades   int
}

// Stats is a point-in-time snapshot of the manager's state.
type Stats struct {
	Balance         float64
	Equity          float64
	Margin          float64
	FreeMargin      float64
	PendingOrders   int
	ExecutedOrders  int
	CancelledOrders int
	ExpiredOrders   int
	ClosedTrades    int
	PositionOpen    bool
}

// UpdateResult reports what one candle produced: zero-or-one order
// execution, zero-or-one position close, and how many pending orders
// expired unfilled.
type UpdateResult struct {
	Executed *domain.PendingOrder
	Closed   *domain.Trade
	Expired  int
}

// NewManager creates a fresh state machine seeded with the initial balance.
func NewManager(cfg Config) *Manager {
	if cfg.CommissionPerLot == 0 {
		cfg.CommissionPerLot = DefaultCommissionPerLot
	}
	if cfg.Leverage <= 0 {
		cfg.Leverage = DefaultLeverage
	}
	if cfg.SymbolSpec.PipSize == 0 {
		cfg.SymbolSpec = domain.SpecForSymbol(cfg.SymbolSpec.Symbol)
	}
	return &Manager{
		cfg:     cfg,
		balance: cfg.InitialBalance,
		equity:  cfg.InitialBalance,
		seq:     idgen.NewSequence(""),
	}
}

// ProcessCandle advances the state machine by one candle, in fixed order:
// expire stale orders, trigger pending orders if flat, update the open
// position (stop-loss checked before take-profit), recompute equity/margin.
func (m *Manager) ProcessCandle(c domain.Candle) UpdateResult {
	var result UpdateResult

	result.Expired = m.expireOrders(c.Timestamp)

	if m.position == nil {
		result.Executed = m.triggerOrders(c)
	}

	if m.position != nil {
		result.Closed = m.updatePosition(c)
	}

	m.recomputeEquity(c.Close)
	return result
}

// Submit registers a new pending order. Submission is never blocked; an
// order that can never execute simply expires.
func (m *Manager) Submit(kind domain.OrderKind, price, stopLoss, takeProfit, lotSize float64, createdAt, expiresAt time.Time, decisionID string) *domain.PendingOrder {
	if lotSize <= 0 {
		lotSize = domain.DefaultLotSize
	}
	order := &domain.PendingOrder{
		ID:         m.seq.Next("ord"),
		Kind:       kind,
		Price:      price,
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
		LotSize:    lotSize,
		CreatedAt:  createdAt,
		ExpiresAt:  expiresAt,
		Status:     domain.OrderStatusPending,
		DecisionID: decisionID,
	}
	m.pending = append(m.pending, order)

	m.cfg.Logger.Debug().
		Str("order_id", order.ID).
		Str("kind", string(kind)).
		Float64("price", price).
		Msg("pending order submitted")
	return order
}

// Cancel marks a pending order CANCELLED. No-op unless the order exists and
// is still PENDING; returns whether a cancellation happened.
func (m *Manager) Cancel(orderID string) bool {
	for _, o := range m.pending {
		if o.ID == orderID && o.Status == domain.OrderStatusPending {
			o.Status = domain.OrderStatusCancelled
			m.cancelledCount++
			return true
		}
	}
	return false
}

// CanPlaceOrder reports whether a new order may currently be placed:
// no active position and positive free margin.
func (m *Manager) CanPlaceOrder() bool {
	return m.position == nil && m.equity-m.margin > 0
}

// Position returns the open position, or nil when flat.
func (m *Manager) Position() *domain.ActivePosition {
	return m.position
}

// Balance returns the realized account balance.
func (m *Manager) Balance() float64 {
	return m.balance
}

// Stats returns live counters and balances.
func (m *Manager) Stats() Stats {
	pendingCount := 0
	for _, o := range m.pending {
		if o.Status == domain.OrderStatusPending {
			pendingCount++
		}
	}
	return Stats{
		Balance:         m.balance,
		Equity:          m.equity,
		Margin:          m.margin,
		FreeMargin:      m.equity - m.margin,
		PendingOrders:   pendingCount,
		ExecutedOrders:  m.executedCount,
		CancelledOrders: m.cancelledCount,
		ExpiredOrders:   m.expiredCount,
		ClosedTrades:    m.closedTrades,
		PositionOpen:    m.position != nil,
	}
}

// CloseManually closes the open position at the given price, used when the
// candle sequence is exhausted with a position still open. Returns nil when
// flat.
func (m *Manager) CloseManually(at time.Time, price float64) *domain.Trade {
	if m.position == nil {
		return nil
	}
	trade := m.closePosition(at, price, domain.ExitReasonManual)
	m.recomputeEquity(price)
	return trade
}

// expireOrders marks every PENDING order whose expiry time has passed the
// candle's time as EXPIRED and returns how many expired. Expired orders
// never execute.
func (m *Manager) expireOrders(now time.Time) int {
	expired := 0
	for _, o := range m.pending {
		if o.Status == domain.OrderStatusPending && now.After(o.ExpiresAt) {
			o.Status = domain.OrderStatusExpired
			m.expiredCount++
			expired++
			m.cfg.Logger.Debug().Str("order_id", o.ID).Msg("pending order expired")
		}
	}
	return expired
}

// triggerOrders checks remaining PENDING orders against the candle range and
// executes at most one: the position slot gates any further execution.
func (m *Manager) triggerOrders(c domain.Candle) *domain.PendingOrder {
	for _, o := range m.pending {
		if o.Status != domain.OrderStatusPending {
			continue
		}
		if !triggered(o.Kind, o.Price, c) {
			continue
		}

		// Executed at the trigger price, no slippage modeling.
		o.Status = domain.OrderStatusExecuted
		m.executedCount++
		m.position = &domain.ActivePosition{
			ID:         m.seq.Next("pos"),
			Side:       o.Kind.Side(),
			EntryPrice: o.Price,
			StopLoss:   o.StopLoss,
			TakeProfit: o.TakeProfit,
			LotSize:    o.LotSize,
			OpenedAt:   c.Timestamp,
			Status:     domain.PositionStatusOpen,
			DecisionID: o.DecisionID,
		}

		m.cfg.Logger.Debug().
			Str("order_id", o.ID).
			Str("position_id", m.position.ID).
			Float64("entry", o.Price).
			Msg("order executed, position opened")
		return o
	}
	return nil
}

// triggered evaluates an order kind against one candle's range.
func triggered(kind domain.OrderKind, price float64, c domain.Candle) bool {
	switch kind {
	case domain.OrderKindBuyStop:
		return c.High >= price
	case domain.OrderKindSellStop:
		return c.Low <= price
	case domain.OrderKindBuyLimit:
		return c.Low <= price
	case domain.OrderKindSellLimit:
		return c.High >= price
	default:
		return false
	}
}

// updatePosition checks the open position against the candle range.
// Stop-loss has precedence over take-profit: when both levels fall inside
// one candle, the position is assumed to have hit the stop first.
func (m *Manager) updatePosition(c domain.Candle) *domain.Trade {
	p := m.position

	if p.Side == domain.SideBuy {
		if p.StopLoss > 0 && c.Low <= p.StopLoss {
			return m.closePosition(c.Timestamp, p.StopLoss, domain.ExitReasonStopLoss)
		}
		if p.TakeProfit > 0 && c.High >= p.TakeProfit {
			return m.closePosition(c.Timestamp, p.TakeProfit, domain.ExitReasonTakeProfit)
		}
		return nil
	}

	if p.StopLoss > 0 && c.High >= p.StopLoss {
		return m.closePosition(c.Timestamp, p.StopLoss, domain.ExitReasonStopLoss)
	}
	if p.TakeProfit > 0 && c.Low <= p.TakeProfit {
		return m.closePosition(c.Timestamp, p.TakeProfit, domain.ExitReasonTakeProfit)
	}
	return nil
}

// closePosition settles the open position at the exit price, charges
// commission and swap, updates the balance and frees the position slot.
func (m *Manager) closePosition(at time.Time, exitPrice float64, reason domain.ExitReason) *domain.Trade {
	p := m.position

	gross := accounting.PnL(p.Side, p.EntryPrice, exitPrice, p.LotSize, m.cfg.SymbolSpec)
	commission := m.cfg.CommissionPerLot * p.LotSize
	swap := m.swapCost(p, at)
	net := gross - commission - swap

	balanceBefore := m.balance
	m.balance += net

	pnlPercent := 0.0
	if balanceBefore > 0 {
		pnlPercent = accounting.PnLPercent(net, balanceBefore)
	}

	trade := &domain.Trade{
		ID:              idgen.ComputeTradeID(m.cfg.SessionID, p.ID, at),
		SessionID:       m.cfg.SessionID,
		Side:            p.Side,
		EntryPrice:      p.EntryPrice,
		ExitPrice:       exitPrice,
		StopLoss:        p.StopLoss,
		TakeProfit:      p.TakeProfit,
		LotSize:         p.LotSize,
		OpenedAt:        p.OpenedAt,
		ClosedAt:        at,
		DurationMinutes: accounting.DurationMinutes(p.OpenedAt, at),
		GrossPnL:        gross,
		PnLPercent:      pnlPercent,
		Outcome:         accounting.Outcome(gross),
		ExitReason:      reason,
		Commission:      commission,
		Swap:            swap,
		NetPnL:          net,
		DecisionID:      p.DecisionID,
	}

	p.Status = domain.PositionStatusClosed
	p.ClosedAt = &at
	p.ExitPrice = &exitPrice
	p.RealizedPnL = &net
	m.position = nil
	m.closedTrades++

	m.cfg.Logger.Debug().
		Str("trade_id", trade.ID).
		Str("reason", string(reason)).
		Float64("net_pnl", net).
		Msg("position closed")
	return trade
}

// swapCost accrues the per-day holding cost, only once at least 24h have
// elapsed. The configured rate sign carries the side convention.
func (m *Manager) swapCost(p *domain.ActivePosition, closedAt time.Time) float64 {
	days := int64(closedAt.Sub(p.OpenedAt) / (24 * time.Hour))
	if days < 1 {
		return 0
	}
	rate := m.cfg.SwapLongPerLotDay
	if p.Side == domain.SideSell {
		rate = m.cfg.SwapShortPerLotDay
	}
	return float64(days) * rate * p.LotSize
}

// recomputeEquity values the account at the candle close: equity is balance
// plus unrealized P&L, margin is notional exposure over leverage.
func (m *Manager) recomputeEquity(closePrice float64) {
	m.equity = m.balance
	m.margin = 0

	if m.position != nil {
		unrealized := accounting.PnL(m.position.Side, m.position.EntryPrice, closePrice, m.position.LotSize, m.cfg.SymbolSpec)
		m.equity = m.balance + unrealized
		m.margin = m.position.LotSize * m.cfg.SymbolSpec.ContractSize * closePrice / m.cfg.Leverage
	}
}
