package marketdata

import (
	"fx-backtest-lab/internal/domain"
)

// Downsample aggregates a fine-grained series into coarser bars. Bars are
// bucketed by truncating timestamps to the target resolution; partial
// buckets at the edges are kept.
func Downsample(candles []domain.Candle, target domain.Resolution) []domain.Candle {
	step := target.Duration()
	if step <= 0 || len(candles) == 0 {
		return nil
	}

	var out []domain.Candle
	for _, c := range candles {
		bucket := c.Timestamp.Truncate(step)

		if n := len(out); n > 0 && out[n-1].Timestamp.Equal(bucket) {
			agg := &out[n-1]
			if c.High > agg.High {
				agg.High = c.High
			}
			if c.Low < agg.Low {
				agg.Low = c.Low
			}
			agg.Close = c.Close
			agg.TickVolume += c.TickVolume
			agg.Volume += c.Volume
			continue
		}

		bar := c
		bar.Timestamp = bucket
		out = append(out, bar)
	}
	return out
}
