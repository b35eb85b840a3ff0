// Package simulation orchestrates one backtest run: config validation, the
// candle replay loop, oracle decision requests and session finalization.
package simulation

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

// ErrInvalidConfig is returned when a run configuration fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// Configuration bounds.
const (
	MaxSpanDays        = 366
	MinSkipCandles     = 1
	MaxSkipCandles     = 1440
	MinWindowHours     = 1
	MaxWindowHours     = 168
	DefaultOrderExpiry = 3 * time.Hour
	DefaultSkipCandles = 30
	DefaultWindowHours = 24
)

// symbolPattern matches six-letter FX pairs, with an optional slash.
var symbolPattern = regexp.MustCompile(`^[A-Z]{3}/?[A-Z]{3}$`)

// Config is the full configuration of one backtest run.
type Config struct {
	// SessionID is optional: API-created runs carry a pre-assigned handle,
	// otherwise a deterministic id is derived from the run content.
	SessionID           string    `json:"session_id,omitempty"`
	UserID              string    `json:"user_id"`
	Symbol              string    `json:"symbol"`
	StartDate           time.Time `json:"start_date"`
	EndDate             time.Time `json:"end_date"`
	InitialBalance      float64   `json:"initial_balance"`
	SkipCandles         int       `json:"skip_candles"`
	AnalysisWindowHours int       `json:"analysis_window_hours"`
	ScreeningPrompt     string    `json:"screening_prompt,omitempty"`
	DecisionPrompt      string    `json:"decision_prompt,omitempty"`

	// Cost model, zero values take the engine defaults.
	CommissionPerLot   float64 `json:"commission_per_lot,omitempty"`
	SwapLongPerLotDay  float64 `json:"swap_long_per_lot_day,omitempty"`
	SwapShortPerLotDay float64 `json:"swap_short_per_lot_day,omitempty"`
	Leverage           float64 `json:"leverage,omitempty"`

	// OrderExpiry bounds how long a pending order may wait for its trigger.
	OrderExpiry time.Duration `json:"order_expiry,omitempty"`
}

// ApplyDefaults fills optional fields left zero.
func (c *Config) ApplyDefaults() {
	if c.SkipCandles == 0 {
		c.SkipCandles = DefaultSkipCandles
	}
	if c.AnalysisWindowHours == 0 {
		c.AnalysisWindowHours = DefaultWindowHours
	}
	if c.OrderExpiry == 0 {
		c.OrderExpiry = DefaultOrderExpiry
	}
}

// Validate checks the configuration against its bounds. now anchors the
// date-range sanity check.
func (c *Config) Validate(now time.Time) error {
	if !symbolPattern.MatchString(c.Symbol) {
		return fmt.Errorf("%w: malformed symbol %q", ErrInvalidConfig, c.Symbol)
	}
	if c.StartDate.IsZero() || c.EndDate.IsZero() {
		return fmt.Errorf("%w: start and end dates are required", ErrInvalidConfig)
	}
	if !c.StartDate.Before(c.EndDate) {
		return fmt.Errorf("%w: start date must precede end date", ErrInvalidConfig)
	}
	if c.EndDate.After(now) {
		return fmt.Errorf("%w: end date is in the future", ErrInvalidConfig)
	}
	if c.EndDate.Sub(c.StartDate) > MaxSpanDays*24*time.Hour {
		return fmt.Errorf("%w: date range exceeds %d days", ErrInvalidConfig, MaxSpanDays)
	}
	if c.InitialBalance <= 0 {
		return fmt.Errorf("%w: initial balance must be positive", ErrInvalidConfig)
	}
	if c.SkipCandles < MinSkipCandles || c.SkipCandles > MaxSkipCandles {
		return fmt.Errorf("%w: skip candles must be in [%d, %d]", ErrInvalidConfig, MinSkipCandles, MaxSkipCandles)
	}
	if c.AnalysisWindowHours < MinWindowHours || c.AnalysisWindowHours > MaxWindowHours {
		return fmt.Errorf("%w: analysis window must be in [%d, %d] hours", ErrInvalidConfig, MinWindowHours, MaxWindowHours)
	}
	if c.OrderExpiry < 0 {
		return fmt.Errorf("%w: order expiry must not be negative", ErrInvalidConfig)
	}
	return nil
}
