// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Session metrics
	SessionsStarted  prometheus.Counter
	SessionsFinished *prometheus.CounterVec
	SessionDuration  prometheus.Histogram
	ActiveSessions   prometheus.Gauge

	// Replay metrics
	CandlesProcessed prometheus.Counter
	TradesSimulated  prometheus.Counter
	OrdersExpired    prometheus.Counter
	IterationErrors  prometheus.Counter

	// Oracle metrics
	OracleRequests prometheus.Counter
	OracleFailures prometheus.Counter
	OracleLatency  prometheus.Histogram

	// Market data metrics
	CandlesFetched prometheus.Counter
	FetchErrors    prometheus.Counter
	FetchLatency   prometheus.Histogram
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "fx_backtest_lab"
	}

	return &Metrics{
		// Session metrics
		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "started_total",
			Help:      "Total number of backtest sessions started",
		}),
		SessionsFinished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "finished_total",
			Help:      "Total number of backtest sessions finished by status",
		}, []string{"status"}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "duration_seconds",
			Help:      "Backtest session wall-clock duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		}),
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "active",
			Help:      "Number of currently running backtest sessions",
		}),

		// Replay metrics
		CandlesProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replay",
			Name:      "candles_processed_total",
			Help:      "Total number of candles processed by the replay loop",
		}),
		TradesSimulated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replay",
			Name:      "trades_simulated_total",
			Help:      "Total number of trades simulated",
		}),
		OrdersExpired: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replay",
			Name:      "orders_expired_total",
			Help:      "Total number of pending orders that expired unfilled",
		}),
		IterationErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replay",
			Name:      "iteration_errors_total",
			Help:      "Total number of recovered per-iteration errors",
		}),

		// Oracle metrics
		OracleRequests: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "requests_total",
			Help:      "Total number of oracle decision requests",
		}),
		OracleFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "failures_total",
			Help:      "Total number of failed oracle decision requests",
		}),
		OracleLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "latency_seconds",
			Help:      "Oracle decision request latency in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60},
		}),

		// Market data metrics
		CandlesFetched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "marketdata",
			Name:      "candles_fetched_total",
			Help:      "Total number of candles fetched from providers",
		}),
		FetchErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "marketdata",
			Name:      "fetch_errors_total",
			Help:      "Total number of market data fetch errors",
		}),
		FetchLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "marketdata",
			Name:      "fetch_latency_seconds",
			Help:      "Market data fetch latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
