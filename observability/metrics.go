package observability

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type protocolMetrics struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	vaults     *prometheus.GaugeVec
	controller *prometheus.GaugeVec
}

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	protocolMetricsOnce sync.Once
	protocolRegistry    *protocolMetrics

	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics
)

// Protocol returns the lazily-initialised registry for protocol operations and
// record gauges.
func Protocol() *protocolMetrics {
	protocolMetricsOnce.Do(func() {
		protocolRegistry = &protocolMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stakevault",
				Subsystem: "protocol",
				Name:      "operations_total",
				Help:      "Protocol operations segmented by operation, outcome and error kind.",
			}, []string{"op", "outcome", "kind"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "stakevault",
				Subsystem: "protocol",
				Name:      "operation_duration_seconds",
				Help:      "Latency of protocol operations including commit.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"op"}),
			vaults: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "stakevault",
				Subsystem: "vault",
				Name:      "value",
				Help:      "Latest committed vault figures (total_assets, total_shares, buffered_liquidity, total_staked, exchange_rate).",
			}, []string{"vault", "field"}),
			controller: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "stakevault",
				Subsystem: "cdp",
				Name:      "controller_value",
				Help:      "Latest committed collateral controller aggregates.",
			}, []string{"field"}),
		}
		prometheus.MustRegister(
			protocolRegistry.operations,
			protocolRegistry.latency,
			protocolRegistry.vaults,
			protocolRegistry.controller,
		)
	})
	return protocolRegistry
}

// ObserveOperation records one protocol operation. kind is empty on success.
func (m *protocolMetrics) ObserveOperation(op, kind string, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "committed"
	if kind != "" {
		outcome = "rejected"
	} else {
		kind = "none"
	}
	m.operations.WithLabelValues(op, outcome, kind).Inc()
	m.latency.WithLabelValues(op).Observe(duration.Seconds())
}

// VaultSnapshot carries the committed figures exported per vault.
type VaultSnapshot struct {
	ID                uint64
	TotalAssets       uint64
	TotalShares       uint64
	BufferedLiquidity uint64
	TotalStaked       uint64
	ExchangeRate      uint64
}

// RecordVault exports the committed vault figures.
func (m *protocolMetrics) RecordVault(s VaultSnapshot) {
	if m == nil {
		return
	}
	id := strconv.FormatUint(s.ID, 10)
	m.vaults.WithLabelValues(id, "total_assets").Set(float64(s.TotalAssets))
	m.vaults.WithLabelValues(id, "total_shares").Set(float64(s.TotalShares))
	m.vaults.WithLabelValues(id, "buffered_liquidity").Set(float64(s.BufferedLiquidity))
	m.vaults.WithLabelValues(id, "total_staked").Set(float64(s.TotalStaked))
	m.vaults.WithLabelValues(id, "exchange_rate").Set(float64(s.ExchangeRate) / 1e9)
}

// RecordController exports the committed controller aggregates.
func (m *protocolMetrics) RecordController(totalMinted, collateralValue, activePositions uint64) {
	if m == nil {
		return
	}
	m.controller.WithLabelValues("total_minted").Set(float64(totalMinted))
	m.controller.WithLabelValues("total_collateral_value").Set(float64(collateralValue))
	m.controller.WithLabelValues("active_positions").Set(float64(activePositions))
}

// ModuleMetrics returns the registry used to record HTTP API activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stakevault",
				Subsystem: "api",
				Name:      "requests_total",
				Help:      "Total API requests segmented by route and outcome.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stakevault",
				Subsystem: "api",
				Name:      "errors_total",
				Help:      "Total API errors segmented by route and status code.",
			}, []string{"module", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "stakevault",
				Subsystem: "api",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for API handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stakevault",
				Subsystem: "api",
				Name:      "throttles_total",
				Help:      "Count of API requests rejected by throttling.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of an API request. status is the HTTP status
// written to the client.
func (m *moduleMetrics) Observe(module, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", status)).Inc()
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter. Reasons should be stable
// strings such as "rate_limit".
func (m *moduleMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(module, reason).Inc()
}
