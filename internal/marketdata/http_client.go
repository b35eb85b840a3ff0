package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"fx-backtest-lab/internal/domain"
)

// HTTPClient fetches candles from a twelvedata-compatible time_series API,
// with client-side rate limiting and retry with exponential backoff.
type HTTPClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetry   time.Duration
	logger     zerolog.Logger
}

// HTTPClientOptions holds options for creating an HTTPClient.
type HTTPClientOptions struct {
	APIKey          string
	BaseURL         string
	RequestTimeout  time.Duration
	RequestsPerSec  int
	MaxRetryTimeout time.Duration
}

// NewHTTPClient creates a new market data HTTP client.
func NewHTTPClient(opts HTTPClientOptions) *HTTPClient {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.twelvedata.com"
	}
	if opts.RequestTimeout == 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.RequestsPerSec == 0 {
		opts.RequestsPerSec = 5
	}
	if opts.MaxRetryTimeout == 0 {
		opts.MaxRetryTimeout = 30 * time.Second
	}

	return &HTTPClient{
		apiKey:     opts.APIKey,
		baseURL:    opts.BaseURL,
		httpClient: &http.Client{Timeout: opts.RequestTimeout},
		limiter:    rate.NewLimiter(rate.Every(time.Second), opts.RequestsPerSec),
		maxRetry:   opts.MaxRetryTimeout,
		logger:     log.With().Str("component", "marketdata_client").Logger(),
	}
}

var _ Provider = (*HTTPClient)(nil)

// resolutionIntervals maps internal resolutions to API interval names.
var resolutionIntervals = map[domain.Resolution]string{
	domain.ResolutionM1:  "1min",
	domain.ResolutionM5:  "5min",
	domain.ResolutionM15: "15min",
	domain.ResolutionH1:  "1h",
	domain.ResolutionH4:  "4h",
	domain.ResolutionD1:  "1day",
}

type timeSeriesResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Values  []struct {
		Datetime string `json:"datetime"`
		Open     string `json:"open"`
		High     string `json:"high"`
		Low      string `json:"low"`
		Close    string `json:"close"`
		Volume   string `json:"volume"`
	} `json:"values"`
}

// Fetch retrieves candles within [start, end], oldest first.
func (c *HTTPClient) Fetch(ctx context.Context, symbol string, resolution domain.Resolution, start, end time.Time) ([]domain.Candle, error) {
	interval, ok := resolutionIntervals[resolution]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported resolution %q", ErrMalformedData, resolution)
	}

	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("interval", interval)
	query.Set("start_date", start.UTC().Format("2006-01-02 15:04:05"))
	query.Set("end_date", end.UTC().Format("2006-01-02 15:04:05"))
	query.Set("timezone", "UTC")
	query.Set("apikey", c.apiKey)
	requestURL := c.baseURL + "/time_series?" + query.Encode()

	body, err := c.doRequest(ctx, requestURL)
	if err != nil {
		return nil, err
	}

	var data timeSeriesResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("%w: parsing response: %v", ErrMalformedData, err)
	}
	if data.Status == "error" {
		return nil, fmt.Errorf("%w: api error: %s", ErrNoData, data.Message)
	}
	if len(data.Values) == 0 {
		return nil, ErrNoData
	}

	candles := make([]domain.Candle, 0, len(data.Values))
	for _, v := range data.Values {
		candle, err := parseBar(v.Datetime, v.Open, v.High, v.Low, v.Close, v.Volume)
		if err != nil {
			return nil, err
		}
		candles = append(candles, candle)
	}

	// API returns newest first; the engine consumes oldest first.
	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})

	if err := ValidateSeries(candles); err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("symbol", symbol).
		Str("interval", interval).
		Int("count", len(candles)).
		Msg("fetched candles")
	return candles, nil
}

// doRequest performs one GET with rate limiting and bounded retries.
func (c *HTTPClient) doRequest(ctx context.Context, requestURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var body []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status %d", resp.StatusCode)
		}

		body, err = io.ReadAll(resp.Body)
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = c.maxRetry

	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return nil, fmt.Errorf("market data request failed: %w", err)
	}
	return body, nil
}

// parseBar converts one string-encoded API bar into a Candle.
func parseBar(datetime, open, high, low, close, volume string) (domain.Candle, error) {
	ts, err := time.Parse("2006-01-02 15:04:05", datetime)
	if err != nil {
		// Daily series omit the time part
		ts, err = time.Parse("2006-01-02", datetime)
		if err != nil {
			return domain.Candle{}, fmt.Errorf("%w: bad datetime %q", ErrMalformedData, datetime)
		}
	}

	fields := [4]float64{}
	for i, s := range []string{open, high, low, close} {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return domain.Candle{}, fmt.Errorf("%w: bad price %q", ErrMalformedData, s)
		}
		fields[i] = v
	}

	var vol int64
	if volume != "" {
		vol, _ = strconv.ParseInt(volume, 10, 64)
	}

	return domain.Candle{
		Timestamp:  ts.UTC(),
		Open:       fields[0],
		High:       fields[1],
		Low:        fields[2],
		Close:      fields[3],
		TickVolume: vol,
		Volume:     vol,
	}, nil
}
