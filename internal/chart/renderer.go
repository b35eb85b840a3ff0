// Package chart renders candlestick chart images for oracle context.
package chart

import (
	"context"
	"time"

	"fx-backtest-lab/internal/domain"
)

// Renderer produces a chart image for a symbol over a time range. Charts
// are best-effort context: render failures must not fail a backtest.
type Renderer interface {
	Render(ctx context.Context, symbol string, resolution domain.Resolution, start, end time.Time) ([]byte, error)
}
