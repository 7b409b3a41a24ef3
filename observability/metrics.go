package observability

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type rpcMetrics struct {
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

type loanMetrics struct {
	operations *prometheus.CounterVec
	active     prometheus.Gauge
}

var (
	rpcMetricsOnce sync.Once
	rpcRegistry    *rpcMetrics

	loanMetricsOnce sync.Once
	loanRegistry    *loanMetrics
)

// RPCMetrics returns the lazily-initialised registry recording JSON-RPC
// activity.
func RPCMetrics() *rpcMetrics {
	rpcMetricsOnce.Do(func() {
		rpcRegistry = &rpcMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "loanchain",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by method and outcome.",
			}, []string{"method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "loanchain",
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Total JSON-RPC errors segmented by method and status code.",
			}, []string{"method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "loanchain",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
		}
		prometheus.MustRegister(
			rpcRegistry.requests,
			rpcRegistry.errors,
			rpcRegistry.latency,
		)
	})
	return rpcRegistry
}

// Observe records the outcome of one RPC request. The status code should be
// the HTTP status ultimately written to the response writer.
func (m *rpcMetrics) Observe(method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(method).Observe(duration.Seconds())
}

// LoanMetrics returns the registry tracking the loan lifecycle.
func LoanMetrics() *loanMetrics {
	loanMetricsOnce.Do(func() {
		loanRegistry = &loanMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "loanchain",
				Subsystem: "loan",
				Name:      "operations_total",
				Help:      "Count of completed loan lifecycle operations by kind.",
			}, []string{"operation"}),
			active: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "loanchain",
				Subsystem: "loan",
				Name:      "active_loans",
				Help:      "Number of currently live loans.",
			}),
		}
		prometheus.MustRegister(loanRegistry.operations, loanRegistry.active)
	})
	return loanRegistry
}

// RecordOriginated counts a successful origination.
func (m *loanMetrics) RecordOriginated() {
	if m == nil {
		return
	}
	m.operations.WithLabelValues("start").Inc()
	m.active.Inc()
}

// RecordRepaid counts a successful repayment.
func (m *loanMetrics) RecordRepaid() {
	if m == nil {
		return
	}
	m.operations.WithLabelValues("repay").Inc()
	m.active.Dec()
}

// RecordClaimed counts a successful default claim.
func (m *loanMetrics) RecordClaimed() {
	if m == nil {
		return
	}
	m.operations.WithLabelValues("claim").Inc()
	m.active.Dec()
}
