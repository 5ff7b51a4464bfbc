// Package observability bundles the Prometheus collectors for the vault
// daemon.
package observability

import (
	"math"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// VaultMetrics wraps collectors tracking vault operation activity and ledger
// health.
type VaultMetrics struct {
	requests        *prometheus.CounterVec
	errors          *prometheus.CounterVec
	latency         *prometheus.HistogramVec
	outstandingDebt prometheus.Gauge
	accruedFees     prometheus.Gauge
	liquidations    prometheus.Counter
	pauseEngaged    prometheus.Gauge
}

var (
	vaultMetricsOnce sync.Once
	vaultRegistry    *VaultMetrics
)

// Vault returns the lazily-initialised metrics registry for the vault daemon.
func Vault() *VaultMetrics {
	vaultMetricsOnce.Do(func() {
		vaultRegistry = &VaultMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stakevault",
				Subsystem: "vault",
				Name:      "requests_total",
				Help:      "Count of vault operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stakevault",
				Subsystem: "vault",
				Name:      "errors_total",
				Help:      "Count of vault operation failures segmented by operation and reason.",
			}, []string{"operation", "reason"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "stakevault",
				Subsystem: "vault",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for vault operation handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			outstandingDebt: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "stakevault",
				Subsystem: "vault",
				Name:      "outstanding_debt",
				Help:      "Total debt tokens outstanding across all positions, in base units.",
			}),
			accruedFees: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "stakevault",
				Subsystem: "vault",
				Name:      "accrued_fees",
				Help:      "Protocol fees accrued and not yet collected, in base units.",
			}),
			liquidations: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "stakevault",
				Subsystem: "vault",
				Name:      "liquidations_total",
				Help:      "Count of executed liquidations.",
			}),
			pauseEngaged: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "stakevault",
				Subsystem: "vault",
				Name:      "pause_engaged",
				Help:      "Indicates whether the vault pause guard is active (1) or not (0).",
			}),
		}
		prometheus.MustRegister(
			vaultRegistry.requests,
			vaultRegistry.errors,
			vaultRegistry.latency,
			vaultRegistry.outstandingDebt,
			vaultRegistry.accruedFees,
			vaultRegistry.liquidations,
			vaultRegistry.pauseEngaged,
		)
	})
	return vaultRegistry
}

// Observe records the outcome and latency of one vault operation.
func (m *VaultMetrics) Observe(operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
		reason := strings.TrimSpace(err.Error())
		if reason == "" {
			reason = "unknown"
		}
		m.errors.WithLabelValues(op, reason).Inc()
	}
	m.requests.WithLabelValues(op, outcome).Inc()
	m.latency.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordLedger refreshes the outstanding-debt and accrued-fee gauges after a
// committed operation.
func (m *VaultMetrics) RecordLedger(outstanding, fees *big.Int) {
	if m == nil {
		return
	}
	m.outstandingDebt.Set(bigToFloat(outstanding))
	m.accruedFees.Set(bigToFloat(fees))
}

// RecordLiquidation counts one executed liquidation.
func (m *VaultMetrics) RecordLiquidation() {
	if m == nil {
		return
	}
	m.liquidations.Inc()
}

// SetPause toggles the pause_engaged gauge.
func (m *VaultMetrics) SetPause(engaged bool) {
	if m == nil {
		return
	}
	if engaged {
		m.pauseEngaged.Set(1)
		return
	}
	m.pauseEngaged.Set(0)
}

func bigToFloat(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	floatVal, _ := new(big.Float).SetInt(value).Float64()
	if math.IsNaN(floatVal) || math.IsInf(floatVal, 0) {
		return 0
	}
	return floatVal
}
