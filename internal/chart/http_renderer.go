package chart

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"fx-backtest-lab/internal/domain"
)

// HTTPRenderer requests rendered candlestick PNGs from a chart-img style
// snapshot API.
type HTTPRenderer struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	width      int
	height     int
	logger     zerolog.Logger
}

// HTTPRendererOptions holds options for creating an HTTPRenderer.
type HTTPRendererOptions struct {
	APIKey         string
	BaseURL        string
	RequestTimeout time.Duration
	Width          int
	Height         int
}

// NewHTTPRenderer creates a new chart snapshot client.
func NewHTTPRenderer(opts HTTPRendererOptions) *HTTPRenderer {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.chart-img.com/v2/tradingview/advanced-chart"
	}
	if opts.RequestTimeout == 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.Width == 0 {
		opts.Width = 1200
	}
	if opts.Height == 0 {
		opts.Height = 800
	}
	return &HTTPRenderer{
		apiKey:     opts.APIKey,
		baseURL:    opts.BaseURL,
		httpClient: &http.Client{Timeout: opts.RequestTimeout},
		width:      opts.Width,
		height:     opts.Height,
		logger:     log.With().Str("component", "chart_renderer").Logger(),
	}
}

var _ Renderer = (*HTTPRenderer)(nil)

var rendererIntervals = map[domain.Resolution]string{
	domain.ResolutionM1:  "1m",
	domain.ResolutionM5:  "5m",
	domain.ResolutionM15: "15m",
	domain.ResolutionH1:  "1h",
	domain.ResolutionH4:  "4h",
	domain.ResolutionD1:  "1D",
}

// Render requests one PNG snapshot for the symbol and range.
func (r *HTTPRenderer) Render(ctx context.Context, symbol string, resolution domain.Resolution, start, end time.Time) ([]byte, error) {
	interval, ok := rendererIntervals[resolution]
	if !ok {
		return nil, fmt.Errorf("unsupported resolution %q", resolution)
	}

	payload := map[string]any{
		"symbol":   "FX:" + strings.ReplaceAll(symbol, "/", ""),
		"interval": interval,
		"width":    r.width,
		"height":   r.height,
		"range": map[string]string{
			"from": start.UTC().Format(time.RFC3339),
			"to":   end.UTC().Format(time.RFC3339),
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL, strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", r.apiKey)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chart render failed with status %d", resp.StatusCode)
	}

	img, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	r.logger.Debug().Str("symbol", symbol).Str("interval", interval).Int("bytes", len(img)).Msg("rendered chart")
	return img, nil
}
