package marketdata

import (
	"context"
	"time"

	"fx-backtest-lab/internal/domain"
)

// SliceProvider serves canned candles from memory, used in tests and
// offline CLI runs. Candles must be pre-sorted oldest first.
type SliceProvider struct {
	candles map[domain.Resolution][]domain.Candle
}

// NewSliceProvider creates a provider over canned series per resolution.
func NewSliceProvider(candles map[domain.Resolution][]domain.Candle) *SliceProvider {
	return &SliceProvider{candles: candles}
}

// Fetch returns the canned candles within [start, end].
func (p *SliceProvider) Fetch(_ context.Context, _ string, resolution domain.Resolution, start, end time.Time) ([]domain.Candle, error) {
	series := p.candles[resolution]

	var out []domain.Candle
	for _, c := range series {
		if c.Timestamp.Before(start) || c.Timestamp.After(end) {
			continue
		}
		out = append(out, c)
	}
	if err := ValidateSeries(out); err != nil {
		return nil, err
	}
	return out, nil
}

var _ Provider = (*SliceProvider)(nil)
