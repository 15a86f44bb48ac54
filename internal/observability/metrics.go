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
	// Loop metrics
	TicksTotal      prometheus.Counter
	TickDuration    prometheus.Histogram
	SnapshotsFailed *prometheus.CounterVec

	// Engine metrics
	EntriesTotal  *prometheus.CounterVec
	ExitsTotal    *prometheus.CounterVec
	OrdersTotal   *prometheus.CounterVec
	OpenPositions prometheus.Gauge
	Equity        prometheus.Gauge

	// Brain metrics
	BrainCyclesTotal *prometheus.CounterVec
	BrainMode        *prometheus.GaugeVec
	BlockedSymbols   prometheus.Gauge

	// Venue metrics
	VenueCallLatency *prometheus.HistogramVec

	// Database metrics
	DBQueryErrors *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "adaptive_trend_bot"
	}

	return &Metrics{
		// Loop metrics
		TicksTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "loop",
			Name:      "ticks_total",
			Help:      "Total number of tick loop iterations",
		}),
		TickDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "loop",
			Name:      "tick_duration_seconds",
			Help:      "Tick processing duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		SnapshotsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "loop",
			Name:      "snapshots_failed_total",
			Help:      "Total number of per-symbol snapshot failures",
		}, []string{"connector", "symbol"}),

		// Engine metrics
		EntriesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "entries_total",
			Help:      "Total number of positions opened by side",
		}, []string{"side"}),
		ExitsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "exits_total",
			Help:      "Total number of completed closes by exit reason",
		}, []string{"reason"}),
		OrdersTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "orders_total",
			Help:      "Total number of order placements by status",
		}, []string{"status"}),
		OpenPositions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "open_positions",
			Help:      "Current number of open positions",
		}),
		Equity: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "equity",
			Help:      "Current account equity",
		}),

		// Brain metrics
		BrainCyclesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "brain",
			Name:      "cycles_total",
			Help:      "Total number of brain evaluation cycles by status",
		}, []string{"status"}),
		BrainMode: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "brain",
			Name:      "mode",
			Help:      "Current risk mode (1 for the active mode, 0 otherwise)",
		}, []string{"mode"}),
		BlockedSymbols: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "brain",
			Name:      "blocked_symbols",
			Help:      "Current number of blocked symbols",
		}),

		// Venue metrics
		VenueCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "venue",
			Name:      "call_latency_seconds",
			Help:      "Venue API call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),

		// Database metrics
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordTick records one completed tick.
func RecordTick(durationSeconds float64) {
	DefaultMetrics.TicksTotal.Inc()
	DefaultMetrics.TickDuration.Observe(durationSeconds)
}

// RecordSnapshotFailure records a failed per-symbol snapshot fetch.
func RecordSnapshotFailure(connector, symbol string) {
	DefaultMetrics.SnapshotsFailed.WithLabelValues(connector, symbol).Inc()
}

// RecordEntry records one opened position.
func RecordEntry(side string) {
	DefaultMetrics.EntriesTotal.WithLabelValues(side).Inc()
}

// RecordExit records one completed close.
func RecordExit(reason string) {
	DefaultMetrics.ExitsTotal.WithLabelValues(reason).Inc()
}

// RecordOrder records an order placement outcome.
func RecordOrder(status string) {
	DefaultMetrics.OrdersTotal.WithLabelValues(status).Inc()
}

// UpdatePortfolio updates the open position and equity gauges.
func UpdatePortfolio(openPositions int, equity float64) {
	DefaultMetrics.OpenPositions.Set(float64(openPositions))
	DefaultMetrics.Equity.Set(equity)
}

// RecordBrainCycle records one brain cycle and the resulting mode.
func RecordBrainCycle(status, mode string, blocked int) {
	DefaultMetrics.BrainCyclesTotal.WithLabelValues(status).Inc()
	if mode == "" {
		return
	}
	for _, m := range []string{"DEFENSIVE", "NORMAL", "AGGRESSIVE"} {
		v := 0.0
		if m == mode {
			v = 1.0
		}
		DefaultMetrics.BrainMode.WithLabelValues(m).Set(v)
	}
	DefaultMetrics.BlockedSymbols.Set(float64(blocked))
}

// RecordVenueLatency records one venue API call.
func RecordVenueLatency(operation string, seconds float64) {
	DefaultMetrics.VenueCallLatency.WithLabelValues(operation).Observe(seconds)
}

// RecordDBError records a database query error.
func RecordDBError(database, operation string) {
	DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
}
