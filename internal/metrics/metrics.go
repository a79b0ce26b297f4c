// Package metrics provides Prometheus instrumentation for the paper
// trading engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// PositionsOpened counts paper positions opened, by strategy and side.
	PositionsOpened = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paperengine_positions_opened_total",
		Help: "Total paper positions opened",
	}, []string{"strategy", "side"})

	// PositionsClosed counts paper positions closed, by strategy and close reason.
	PositionsClosed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paperengine_positions_closed_total",
		Help: "Total paper positions closed",
	}, []string{"strategy", "reason"})

	// Rejections counts signals rejected by risk checks, by reason code.
	Rejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paperengine_signal_rejections_total",
		Help: "Signals rejected by risk limits",
	}, []string{"reason"})

	// OpenPositions tracks the process-wide count of open positions.
	OpenPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "paperengine_open_positions",
		Help: "Currently open paper positions across all portfolios",
	})

	// StrategyCapital tracks each strategy's current virtual capital.
	StrategyCapital = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "paperengine_strategy_capital_dollars",
		Help: "Current virtual capital per strategy",
	}, []string{"strategy"})

	// DailyPnL tracks the running realized P&L for the current UTC day.
	DailyPnL = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "paperengine_daily_pnl_dollars",
		Help: "Realized P&L accumulated in the current UTC day",
	})

	// Rebalances counts executed capital rebalances.
	Rebalances = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paperengine_rebalances_total",
		Help: "Capital rebalances executed",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paperengine_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "paperengine_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
