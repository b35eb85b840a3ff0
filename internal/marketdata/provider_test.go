package marketdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"fx-backtest-lab/internal/domain"
)

var t0 = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

func series(n int, step time.Duration) []domain.Candle {
	out := make([]domain.Candle, n)
	for i := range out {
		out[i] = domain.Candle{
			Timestamp: t0.Add(time.Duration(i) * step),
			Open:      1.1000, High: 1.1010, Low: 1.0990, Close: 1.1005,
		}
	}
	return out
}

func TestValidateSeries_Empty(t *testing.T) {
	if err := ValidateSeries(nil); !errors.Is(err, ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
}

func TestValidateSeries_MalformedBar(t *testing.T) {
	candles := series(3, time.Minute)
	candles[1].Low = 1.2000 // low above high

	err := ValidateSeries(candles)
	if !errors.Is(err, ErrMalformedData) {
		t.Errorf("expected ErrMalformedData, got %v", err)
	}
}

func TestValidateSeries_OutOfOrder(t *testing.T) {
	candles := series(3, time.Minute)
	candles[2].Timestamp = candles[0].Timestamp

	err := ValidateSeries(candles)
	if !errors.Is(err, ErrMalformedData) {
		t.Errorf("expected ErrMalformedData for out-of-order bars, got %v", err)
	}
}

func TestValidateSeries_OK(t *testing.T) {
	if err := ValidateSeries(series(5, time.Minute)); err != nil {
		t.Errorf("expected valid series, got %v", err)
	}
}

func TestWindowBefore(t *testing.T) {
	candles := series(10, time.Hour)
	cutoff := t0.Add(6 * time.Hour)

	window := WindowBefore(candles, cutoff, 3)

	// 3h window ending at cutoff: bars at 3h, 4h, 5h, 6h
	if len(window) != 4 {
		t.Fatalf("expected 4 candles, got %d", len(window))
	}
	if !window[0].Timestamp.Equal(t0.Add(3 * time.Hour)) {
		t.Errorf("unexpected window start %s", window[0].Timestamp)
	}
	if !window[3].Timestamp.Equal(cutoff) {
		t.Errorf("window must include the cutoff bar, got %s", window[3].Timestamp)
	}
}

func TestSliceProvider_FiltersRange(t *testing.T) {
	provider := NewSliceProvider(map[domain.Resolution][]domain.Candle{
		domain.ResolutionM1: series(10, time.Minute),
	})

	candles, err := provider.Fetch(context.Background(), "EURUSD", domain.ResolutionM1,
		t0.Add(2*time.Minute), t0.Add(5*time.Minute))
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(candles) != 4 {
		t.Errorf("expected 4 candles, got %d", len(candles))
	}
}

func TestSliceProvider_EmptyRange(t *testing.T) {
	provider := NewSliceProvider(map[domain.Resolution][]domain.Candle{
		domain.ResolutionM1: series(10, time.Minute),
	})

	_, err := provider.Fetch(context.Background(), "EURUSD", domain.ResolutionM1,
		t0.Add(time.Hour), t0.Add(2*time.Hour))
	if !errors.Is(err, ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
}
