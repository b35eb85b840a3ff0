package simulation

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"fx-backtest-lab/internal/chart"
	"fx-backtest-lab/internal/domain"
	"fx-backtest-lab/internal/engine"
	"fx-backtest-lab/internal/idgen"
	"fx-backtest-lab/internal/ledger"
	"fx-backtest-lab/internal/marketdata"
	"fx-backtest-lab/internal/observability"
	"fx-backtest-lab/internal/oracle"
	"fx-backtest-lab/internal/storage"
)

// contextResolutions are the coarser timeframes derived from the replay
// series for each oracle decision request.
var contextResolutions = []domain.Resolution{domain.ResolutionM15, domain.ResolutionH1}

// Options contains the collaborators of a Runner.
type Options struct {
	Provider marketdata.Provider
	Oracle   oracle.Oracle
	Sessions storage.SessionStore

	// Renderer supplies best-effort chart context; nil disables charts.
	Renderer chart.Renderer

	// Archive receives the terminal trade list; nil disables archival.
	Archive storage.TradeArchive

	// Metrics is optional instrumentation.
	Metrics *observability.Metrics

	// Now is the clock, defaults to time.Now.
	Now func() time.Time

	// SaveEachTrade persists a session snapshot after every trade close,
	// so a crash mid-run loses at most the in-flight iteration.
	SaveEachTrade bool
}

// Runner executes one backtest session from a validated configuration.
// A Runner drives exactly one run; Cancel may be called from another
// goroutine and takes effect between iterations.
type Runner struct {
	opts      Options
	logger    zerolog.Logger
	cancelled atomic.Bool
}

// NewRunner creates a backtest runner.
func NewRunner(opts Options) *Runner {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Runner{
		opts:   opts,
		logger: log.With().Str("component", "simulation_runner").Logger(),
	}
}

// Cancel requests cooperative cancellation of the run. Safe to call
// concurrently with Run; checked between candle iterations.
func (r *Runner) Cancel() {
	r.cancelled.Store(true)
}

// Run executes the full backtest and returns the terminal session.
// Steps:
//  1. Validate configuration
//  2. Create the session in RUNNING status, seed the equity curve
//  3. Fetch the replay candle series
//  4. Replay loop: per-candle engine update, oracle decisions when flat,
//     skip-ahead on NO_TRADE, single-candle advance on oracle failure
//  5. Close any open position at the last candle, derive advanced metrics
//  6. Finalize COMPLETED/FAILED/CANCELLED and persist the snapshot
func (r *Runner) Run(ctx context.Context, cfg Config) (*domain.BacktestSession, error) {
	cfg.ApplyDefaults()
	now := r.opts.Now()
	if err := cfg.Validate(now); err != nil {
		return nil, err
	}

	sessionID := cfg.SessionID
	if sessionID == "" {
		sessionID = idgen.ComputeSessionID(cfg.UserID, cfg.Symbol, cfg.StartDate, cfg.EndDate, now)
	}

	session := &domain.BacktestSession{
		ID:                  sessionID,
		UserID:              cfg.UserID,
		Symbol:              cfg.Symbol,
		StartDate:           cfg.StartDate,
		EndDate:             cfg.EndDate,
		InitialBalance:      cfg.InitialBalance,
		SkipCandles:         cfg.SkipCandles,
		AnalysisWindowHours: cfg.AnalysisWindowHours,
		ScreeningPrompt:     cfg.ScreeningPrompt,
		DecisionPrompt:      cfg.DecisionPrompt,
		Status:              domain.SessionStatusRunning,
		CreatedAt:           now,
	}
	ledger.SeedEquity(session, cfg.StartDate)

	if err := r.opts.Sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("saving initial session: %w", err)
	}

	started := now
	if m := r.opts.Metrics; m != nil {
		m.SessionsStarted.Inc()
		m.ActiveSessions.Inc()
		defer func() {
			m.ActiveSessions.Dec()
			m.SessionsFinished.WithLabelValues(string(session.Status)).Inc()
			m.SessionDuration.Observe(r.opts.Now().Sub(started).Seconds())
		}()
	}

	r.logger.Info().
		Str("session_id", session.ID).
		Str("symbol", cfg.Symbol).
		Time("start", cfg.StartDate).
		Time("end", cfg.EndDate).
		Msg("backtest started")

	fetchBegin := r.opts.Now()
	candles, err := r.opts.Provider.Fetch(ctx, cfg.Symbol, domain.ResolutionM1, cfg.StartDate, cfg.EndDate)
	if m := r.opts.Metrics; m != nil {
		m.FetchLatency.Observe(r.opts.Now().Sub(fetchBegin).Seconds())
		if err != nil {
			m.FetchErrors.Inc()
		} else {
			m.CandlesFetched.Add(float64(len(candles)))
		}
	}
	if err != nil {
		ledger.FailSession(session, r.opts.Now(), err)
		r.persist(ctx, session)
		return session, fmt.Errorf("fetching candles: %w", err)
	}

	mgr := engine.NewManager(engine.Config{
		SessionID:          session.ID,
		InitialBalance:     cfg.InitialBalance,
		SymbolSpec:         domain.SpecForSymbol(cfg.Symbol),
		CommissionPerLot:   cfg.CommissionPerLot,
		SwapLongPerLotDay:  cfg.SwapLongPerLotDay,
		SwapShortPerLotDay: cfg.SwapShortPerLotDay,
		Leverage:           cfg.Leverage,
		Logger:             r.logger,
	})

	// lastDone tracks the newest candle the engine has actually seen; the
	// cursor itself may point past it after a skip or an early break.
	cursor := 0
	lastDone := -1
	for cursor < len(candles) {
		if r.cancelled.Load() {
			break
		}
		if err := ctx.Err(); err != nil {
			ledger.FailSession(session, candles[cursor].Timestamp, err)
			break
		}
		advance := r.step(ctx, &cfg, session, mgr, candles, cursor)
		lastDone = cursor
		cursor += advance
	}

	r.finalize(ctx, session, mgr, candles, lastDone)
	r.persist(ctx, session)
	r.archive(ctx, session)

	r.logger.Info().
		Str("session_id", session.ID).
		Str("status", string(session.Status)).
		Int("trades", session.Summary.TotalTrades).
		Float64("net_pnl", session.Summary.NetPnL).
		Msg("backtest finished")
	return session, nil
}

// step processes exactly one candle and returns how far to advance the
// cursor. A panic inside an iteration is recovered, logged on the session
// and costs a single-candle advance.
func (r *Runner) step(ctx context.Context, cfg *Config, session *domain.BacktestSession, mgr *engine.Manager, candles []domain.Candle, cursor int) (advance int) {
	c := candles[cursor]
	advance = 1

	defer func() {
		if rec := recover(); rec != nil {
			ledger.LogError(session, c.Timestamp, fmt.Errorf("iteration panic: %v", rec))
			if m := r.opts.Metrics; m != nil {
				m.IterationErrors.Inc()
			}
			advance = 1
		}
	}()

	result := mgr.ProcessCandle(c)
	if m := r.opts.Metrics; m != nil {
		m.CandlesProcessed.Inc()
		if result.Expired > 0 {
			m.OrdersExpired.Add(float64(result.Expired))
		}
	}
	if result.Closed != nil {
		r.recordTrade(ctx, session, *result.Closed)
	}

	// A fresh decision opportunity requires a flat book: no open position
	// and no pending order still waiting for its trigger.
	stats := mgr.Stats()
	if stats.PositionOpen || stats.PendingOrders > 0 || !mgr.CanPlaceOrder() {
		return 1
	}

	decision, err := r.decide(ctx, cfg, candles, c)
	if err != nil {
		// A failed analysis must not silently skip a large time span.
		ledger.LogError(session, c.Timestamp, err)
		if m := r.opts.Metrics; m != nil {
			m.IterationErrors.Inc()
		}
		return 1
	}
	ledger.LogAnalysis(session, decision.ID)

	if decision.Verdict == domain.VerdictTrade && decision.Params != nil {
		p := decision.Params
		mgr.Submit(domain.StopOrderFor(p.Side), p.EntryPrice, p.StopLoss, p.TakeProfit, p.LotSize,
			c.Timestamp, c.Timestamp.Add(cfg.OrderExpiry), decision.ID)
		return 1
	}
	return cfg.SkipCandles
}

// decide builds the look-back decision context and queries the oracle.
func (r *Runner) decide(ctx context.Context, cfg *Config, candles []domain.Candle, c domain.Candle) (*domain.Decision, error) {
	window := marketdata.WindowBefore(candles, c.Timestamp, cfg.AnalysisWindowHours)
	windowStart := c.Timestamp.Add(-time.Duration(cfg.AnalysisWindowHours) * time.Hour)

	series := map[domain.Resolution][]domain.Candle{
		domain.ResolutionM1: window,
	}
	for _, res := range contextResolutions {
		if bars := marketdata.Downsample(window, res); len(bars) > 0 {
			series[res] = bars
		}
	}

	dctx := domain.DecisionContext{
		Symbol:          cfg.Symbol,
		WindowStart:     windowStart,
		WindowEnd:       c.Timestamp,
		Candles:         series,
		ScreeningPrompt: cfg.ScreeningPrompt,
		DecisionPrompt:  cfg.DecisionPrompt,
	}

	if r.opts.Renderer != nil {
		img, err := r.opts.Renderer.Render(ctx, cfg.Symbol, domain.ResolutionM15, windowStart, c.Timestamp)
		if err != nil {
			// Best-effort: the oracle still operates on candle text.
			r.logger.Warn().Err(err).Msg("chart render failed")
		} else {
			dctx.Charts = append(dctx.Charts, img)
		}
	}

	begin := r.opts.Now()
	if m := r.opts.Metrics; m != nil {
		m.OracleRequests.Inc()
	}
	decision, err := r.opts.Oracle.Decide(ctx, dctx)
	if m := r.opts.Metrics; m != nil {
		m.OracleLatency.Observe(r.opts.Now().Sub(begin).Seconds())
		if err != nil {
			m.OracleFailures.Inc()
		}
	}
	return decision, err
}

// recordTrade appends a closed trade to the ledger and optionally persists
// the snapshot immediately.
func (r *Runner) recordTrade(ctx context.Context, session *domain.BacktestSession, trade domain.Trade) {
	ledger.AddTrade(session, trade)
	if m := r.opts.Metrics; m != nil {
		m.TradesSimulated.Inc()
	}
	if r.opts.SaveEachTrade {
		if err := r.opts.Sessions.Save(ctx, session); err != nil {
			r.logger.Warn().Err(err).Str("session_id", session.ID).Msg("per-trade snapshot save failed")
		}
	}
}

// finalize settles any open position at the last processed candle, derives
// advanced metrics and applies the terminal status transition.
func (r *Runner) finalize(ctx context.Context, session *domain.BacktestSession, mgr *engine.Manager, candles []domain.Candle, last int) {
	if last >= 0 && mgr.Position() != nil {
		c := candles[last]
		if trade := mgr.CloseManually(c.Timestamp, c.Close); trade != nil {
			r.recordTrade(ctx, session, *trade)
		}
	}

	ledger.AdvancedMetrics(session)

	switch {
	case session.Terminal():
		// FailSession already applied inside the loop.
	case r.cancelled.Load():
		ledger.CancelSession(session, r.opts.Now())
	default:
		ledger.CompleteSession(session, r.opts.Now())
	}
}

// persist saves the session snapshot, logging on failure.
func (r *Runner) persist(ctx context.Context, session *domain.BacktestSession) {
	if err := r.opts.Sessions.Save(ctx, session); err != nil {
		r.logger.Error().Err(err).Str("session_id", session.ID).Msg("saving session failed")
	}
}

// archive writes the terminal trade list and equity curve to the
// analytical archive, best-effort.
func (r *Runner) archive(ctx context.Context, session *domain.BacktestSession) {
	if r.opts.Archive == nil {
		return
	}
	if len(session.Trades) > 0 {
		if err := r.opts.Archive.ArchiveTrades(ctx, session.Trades); err != nil {
			r.logger.Warn().Err(err).Str("session_id", session.ID).Msg("archiving trades failed")
		}
	}
	if err := r.opts.Archive.ArchiveEquityCurve(ctx, session.ID, session.EquityCurve); err != nil {
		r.logger.Warn().Err(err).Str("session_id", session.ID).Msg("archiving equity curve failed")
	}
}
