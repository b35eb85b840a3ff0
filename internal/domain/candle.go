package domain

import (
	"fmt"
	"time"
)

// Resolution identifies a candle timeframe.
type Resolution string

// Supported candle resolutions.
const (
	ResolutionM1  Resolution = "M1"
	ResolutionM5  Resolution = "M5"
	ResolutionM15 Resolution = "M15"
	ResolutionH1  Resolution = "H1"
	ResolutionH4  Resolution = "H4"
	ResolutionD1  Resolution = "D1"
)

// Duration returns the bar length of the resolution.
func (r Resolution) Duration() time.Duration {
	switch r {
	case ResolutionM1:
		return time.Minute
	case ResolutionM5:
		return 5 * time.Minute
	case ResolutionM15:
		return 15 * time.Minute
	case ResolutionH1:
		return time.Hour
	case ResolutionH4:
		return 4 * time.Hour
	case ResolutionD1:
		return 24 * time.Hour
	default:
		return 0
	}
}

// Candle represents one OHLCV bar. Produced externally, consumed in
// timestamp order, never mutated.
type Candle struct {
	Timestamp  time.Time `json:"timestamp"`
	Open       float64   `json:"open"`
	High       float64   `json:"high"`
	Low        float64   `json:"low"`
	Close      float64   `json:"close"`
	TickVolume int64     `json:"tick_volume"`
	Volume     int64     `json:"volume"`
	Spread     int       `json:"spread"`
}

// Validate checks the bar invariant: low <= {open, close} <= high.
func (c Candle) Validate() error {
	if c.Timestamp.IsZero() {
		return fmt.Errorf("candle has zero timestamp")
	}
	if c.Low > c.High {
		return fmt.Errorf("candle at %s: low %.5f > high %.5f", c.Timestamp.Format(time.RFC3339), c.Low, c.High)
	}
	if c.Open < c.Low || c.Open > c.High {
		return fmt.Errorf("candle at %s: open %.5f outside [%.5f, %.5f]", c.Timestamp.Format(time.RFC3339), c.Open, c.Low, c.High)
	}
	if c.Close < c.Low || c.Close > c.High {
		return fmt.Errorf("candle at %s: close %.5f outside [%.5f, %.5f]", c.Timestamp.Format(time.RFC3339), c.Close, c.Low, c.High)
	}
	return nil
}
