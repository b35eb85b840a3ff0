// Package main runs the backtest lab API server: session management over
// HTTP, a websocket status stream, health and metrics endpoints.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"fx-backtest-lab/internal/chart"
	"fx-backtest-lab/internal/config"
	"fx-backtest-lab/internal/marketdata"
	"fx-backtest-lab/internal/observability"
	"fx-backtest-lab/internal/oracle"
	"fx-backtest-lab/internal/server"
	"fx-backtest-lab/internal/storage"
	chstore "fx-backtest-lab/internal/storage/clickhouse"
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

	// Flags override environment defaults.
	listenAddr := flag.String("listen-addr", cfg.ListenAddr, "HTTP listen address")
	postgresDSN := flag.String("postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", cfg.ClickhouseDSN, "ClickHouse connection string (optional trade archive)")
	useMemory := flag.Bool("use-memory", cfg.UseMemory, "Use in-memory storage instead of PostgreSQL")
	marketDataKey := flag.String("market-data-api-key", cfg.MarketDataAPIKey, "Market data API key")
	openAIKey := flag.String("openai-api-key", cfg.OpenAIAPIKey, "OpenAI API key (stub oracle when empty)")
	chartKey := flag.String("chart-api-key", cfg.ChartAPIKey, "Chart snapshot API key (charts disabled when empty)")
	saveEachTrade := flag.Bool("save-each-trade", cfg.SaveEachTrade, "Persist a session snapshot after every trade")
	flag.Parse()

	if !*useMemory && *postgresDSN == "" {
		log.Fatal().Msg("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}
	if *marketDataKey == "" {
		log.Fatal().Msg("--market-data-api-key is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sessions, users, archive, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		log.Fatal().Err(err).Msg("creating stores")
	}
	defer cleanup()

	provider := marketdata.NewHTTPClient(marketdata.HTTPClientOptions{
		APIKey:         *marketDataKey,
		BaseURL:        cfg.MarketDataURL,
		RequestTimeout: time.Duration(cfg.RequestTimeoutSec) * time.Second,
	})

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
	if *chartKey != "" {
		renderer = chart.NewHTTPRenderer(chart.HTTPRendererOptions{APIKey: *chartKey})
	}

	srv := server.New(server.Options{
		Provider:      provider,
		Oracle:        decider,
		Renderer:      renderer,
		Sessions:      sessions,
		Users:         users,
		Archive:       archive,
		Metrics:       observability.NewMetrics(""),
		SaveEachTrade: *saveEachTrade,
	})

	httpServer := &http.Server{
		Addr:    *listenAddr,
		Handler: srv.Handler(),
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server shutdown")
		}
		cancel()
	}()

	log.Info().Str("addr", *listenAddr).Msg("server listening")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server error")
	}
	log.Info().Msg("shutdown complete")
}

// createStores builds the session and user stores plus the optional trade
// archive.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (storage.SessionStore, storage.UserStore, storage.TradeArchive, func(), error) {
	if useMemory {
		return memory.NewSessionStore(), memory.NewUserStore(), nil, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	var archive storage.TradeArchive
	cleanup := func() { pool.Close() }

	if clickhouseDSN != "" {
		conn, err := chstore.NewConn(ctx, clickhouseDSN)
		if err != nil {
			pool.Close()
			return nil, nil, nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
			conn.Close()
			pool.Close()
			return nil, nil, nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		archive = chstore.NewTradeArchive(conn)
		cleanup = func() {
			conn.Close()
			pool.Close()
		}
	}

	return pgstore.NewSessionStore(pool), pgstore.NewUserStore(pool), archive, cleanup, nil
}
