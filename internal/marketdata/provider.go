// Package marketdata provides historical candle retrieval and validation.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fx-backtest-lab/internal/domain"
)

// Data errors.
var (
	// ErrNoData is returned when a provider yields an empty series.
	ErrNoData = errors.New("no candle data")

	// ErrMalformedData is returned when a provider yields invalid bars.
	ErrMalformedData = errors.New("malformed candle data")
)

// Provider fetches an ordered candle series for a symbol and resolution.
type Provider interface {
	// Fetch returns candles within [start, end], oldest first. Returns a
	// data error when no data or malformed bars come back.
	Fetch(ctx context.Context, symbol string, resolution domain.Resolution, start, end time.Time) ([]domain.Candle, error)
}

// ValidateSeries checks every bar's OHLC invariant and the ascending
// timestamp order of the whole series. Candles must be validated before
// being trusted.
func ValidateSeries(candles []domain.Candle) error {
	if len(candles) == 0 {
		return ErrNoData
	}
	for i, c := range candles {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("%w: bar %d: %v", ErrMalformedData, i, err)
		}
		if i > 0 && !candles[i-1].Timestamp.Before(c.Timestamp) {
			return fmt.Errorf("%w: bar %d out of order", ErrMalformedData, i)
		}
	}
	return nil
}

// WindowBefore returns the candles within the trailing look-back window
// (windowHours hours ending at cutoff, inclusive).
func WindowBefore(candles []domain.Candle, cutoff time.Time, windowHours int) []domain.Candle {
	start := cutoff.Add(-time.Duration(windowHours) * time.Hour)
	var out []domain.Candle
	for _, c := range candles {
		if c.Timestamp.After(cutoff) {
			break
		}
		if !c.Timestamp.Before(start) {
			out = append(out, c)
		}
	}
	return out
}
