// Package main runs a single backtest from the command line and prints the
// resulting performance summary.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"fx-backtest-lab/internal/chart"
	"fx-backtest-lab/internal/config"
	"fx-backtest-lab/internal/domain"
	"fx-backtest-lab/internal/marketdata"
	"fx-backtest-lab/internal/oracle"
	"fx-backtest-lab/internal/simulation"
	"fx-backtest-lab/internal/storage"
	"fx-backtest-lab/internal/storage/memory"
	"fx-backtest-lab/internal/storage/migrations"
	pgstore "fx-backtest-lab/internal/storage/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("loading configuration")
	}
	cfg.SetupLogging()

	symbol := flag.String("symbol", "EURUSD", "Symbol to backtest")
	startStr := flag.String("start", "", "Start date, YYYY-MM-DD (required)")
	endStr := flag.String("end", "", "End date, YYYY-MM-DD (required)")
	balance := flag.Float64("balance", 10000, "Initial balance")
	skipCandles := flag.Int("skip-candles", simulation.DefaultSkipCandles, "Candles to skip after a NO_TRADE decision")
	windowHours := flag.Int("window-hours", simulation.DefaultWindowHours, "Analysis look-back window (hours)")
	candlesFile := flag.String("candles", "", "JSON file with canned M1 candles (offline run)")
	postgresDSN := flag.String("postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string (in-memory when empty)")
	openAIKey := flag.String("openai-api-key", cfg.OpenAIAPIKey, "OpenAI API key (stub oracle when empty)")
	outputJSON := flag.Bool("json", false, "Print the full session as JSON")
	saveEachTrade := flag.Bool("save-each-trade", cfg.SaveEachTrade, "Persist a snapshot after every trade")
	flag.Parse()

	if *startStr == "" || *endStr == "" {
		log.Fatal().Msg("--start and --end are required")
	}
	start, err := time.Parse("2006-01-02", *startStr)
	if err != nil {
		log.Fatal().Err(err).Msg("parsing --start")
	}
	end, err := time.Parse("2006-01-02", *endStr)
	if err != nil {
		log.Fatal().Err(err).Msg("parsing --end")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runCfg := simulation.Config{
		UserID:              "cli",
		Symbol:              *symbol,
		StartDate:           start,
		EndDate:             end,
		InitialBalance:      *balance,
		SkipCandles:         *skipCandles,
		AnalysisWindowHours: *windowHours,
	}

	provider, err := createProvider(cfg, *candlesFile)
	if err != nil {
		log.Fatal().Err(err).Msg("creating market data provider")
	}

	sessions, cleanup, err := createSessionStore(ctx, *postgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("creating session store")
	}
	defer cleanup()

	var decider oracle.Oracle
	if *openAIKey != "" {
		decider = oracle.NewOpenAIOracle(oracle.OpenAIOracleOptions{
			APIKey:         *openAIKey,
			ScreeningModel: cfg.ScreeningModel,
			DecisionModel:  cfg.DecisionModel,
		})
	} else {
		log.Warn().Msg("no OpenAI key configured, using the stub oracle")
		decider = &oracle.StubOracle{}
	}

	var renderer chart.Renderer
	if cfg.ChartAPIKey != "" {
		renderer = chart.NewHTTPRenderer(chart.HTTPRendererOptions{APIKey: cfg.ChartAPIKey})
	}

	runner := simulation.NewRunner(simulation.Options{
		Provider:      provider,
		Oracle:        decider,
		Renderer:      renderer,
		Sessions:      sessions,
		SaveEachTrade: *saveEachTrade,
	})

	// Ctrl-C cancels the run cooperatively; a second signal kills it.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("cancelling run")
		runner.Cancel()
		<-sigCh
		os.Exit(1)
	}()

	session, err := runner.Run(ctx, runCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("backtest failed")
	}

	if *outputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(session); err != nil {
			log.Fatal().Err(err).Msg("encoding session")
		}
		return
	}
	printSummary(session)
}

// createProvider picks the candle source: a canned JSON file for offline
// runs, the HTTP provider otherwise.
func createProvider(cfg *config.Config, candlesFile string) (marketdata.Provider, error) {
	if candlesFile != "" {
		data, err := os.ReadFile(candlesFile)
		if err != nil {
			return nil, fmt.Errorf("reading candles file: %w", err)
		}
		var candles []domain.Candle
		if err := json.Unmarshal(data, &candles); err != nil {
			return nil, fmt.Errorf("parsing candles file: %w", err)
		}
		return marketdata.NewSliceProvider(map[domain.Resolution][]domain.Candle{
			domain.ResolutionM1: candles,
		}), nil
	}

	if cfg.MarketDataAPIKey == "" {
		return nil, fmt.Errorf("MARKET_DATA_API_KEY is required without --candles")
	}
	return marketdata.NewHTTPClient(marketdata.HTTPClientOptions{
		APIKey:         cfg.MarketDataAPIKey,
		BaseURL:        cfg.MarketDataURL,
		RequestTimeout: time.Duration(cfg.RequestTimeoutSec) * time.Second,
	}), nil
}

// createSessionStore returns a postgres-backed store when a DSN is given,
// the in-memory store otherwise.
func createSessionStore(ctx context.Context, dsn string) (storage.SessionStore, func(), error) {
	if dsn == "" {
		return memory.NewSessionStore(), func() {}, nil
	}
	pool, err := pgstore.NewPool(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}
	return pgstore.NewSessionStore(pool), func() { pool.Close() }, nil
}

// printSummary prints the human-readable run result.
func printSummary(s *domain.BacktestSession) {
	fmt.Printf("Session:       %s\n", s.ID)
	fmt.Printf("Status:        %s\n", s.Status)
	fmt.Printf("Symbol:        %s (%s to %s)\n", s.Symbol,
		s.StartDate.Format("2006-01-02"), s.EndDate.Format("2006-01-02"))
	fmt.Printf("Trades:        %d (W %d / L %d / BE %d)\n",
		s.Summary.TotalTrades, s.Summary.WinningTrades, s.Summary.LosingTrades, s.Summary.BreakevenTrades)
	fmt.Printf("Win rate:      %.2f%%\n", s.Summary.WinRatePercent)
	fmt.Printf("Profit factor: %.2f\n", s.Summary.ProfitFactor)
	fmt.Printf("Net P&L:       %.2f\n", s.Summary.NetPnL)
	fmt.Printf("Max drawdown:  %.2f%%\n", s.Summary.MaxDrawdownPercent)
	fmt.Printf("Sharpe:        %.4f  Sortino: %.4f  Calmar: %.4f\n",
		s.Summary.SharpeRatio, s.Summary.SortinoRatio, s.Summary.CalmarRatio)
	if len(s.ErrorLog) > 0 {
		fmt.Printf("Errors:        %d (see session error log)\n", len(s.ErrorLog))
	}
}
