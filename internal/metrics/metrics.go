// Package metrics exposes Prometheus instrumentation for the service.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"chainswitch/internal/model"
)

// Metrics bundles the service collectors. A nil *Metrics is a no-op, so
// instrumentation can be left unwired in tests.
type Metrics struct {
	GasPriceWei   *prometheus.GaugeVec
	SwapsTotal    *prometheus.CounterVec
	SwapDuration  prometheus.Histogram
	QuotesTotal   *prometheus.CounterVec
	BridgeCalls   *prometheus.CounterVec
	Registry      *prometheus.Registry
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		GasPriceWei: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "chainswitch_gas_price_wei",
			Help: "Latest observed gas price per chain in wei.",
		}, []string{"chain"}),
		SwapsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chainswitch_swaps_total",
			Help: "Cross-chain swaps by source chain and terminal status.",
		}, []string{"chain", "status"}),
		SwapDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "chainswitch_swap_duration_seconds",
			Help:    "Wall time from initiation to completion.",
			Buckets: prometheus.ExponentialBuckets(30, 2, 10),
		}),
		QuotesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chainswitch_quotes_total",
			Help: "Optimization quotes by decision.",
		}, []string{"optimize"}),
		BridgeCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chainswitch_bridge_calls_total",
			Help: "Bridge client calls by operation and outcome.",
		}, []string{"op", "outcome"}),
		Registry: reg,
	}
	reg.MustRegister(m.GasPriceWei, m.SwapsTotal, m.SwapDuration, m.QuotesTotal, m.BridgeCalls)
	return m
}

// ObserveGasPrice records the latest gas price for a chain.
func (m *Metrics) ObserveGasPrice(chainID model.ChainID, priceWei float64) {
	if m == nil {
		return
	}
	m.GasPriceWei.WithLabelValues(chainLabel(chainID)).Set(priceWei)
}

// ObserveSwapTerminal counts a swap reaching a terminal status.
func (m *Metrics) ObserveSwapTerminal(chainID model.ChainID, status model.SwapStatus, seconds float64) {
	if m == nil {
		return
	}
	m.SwapsTotal.WithLabelValues(chainLabel(chainID), status.String()).Inc()
	if status == model.StatusCompleted && seconds > 0 {
		m.SwapDuration.Observe(seconds)
	}
}

// ObserveQuote counts a quote decision.
func (m *Metrics) ObserveQuote(optimize bool) {
	if m == nil {
		return
	}
	m.QuotesTotal.WithLabelValues(strconv.FormatBool(optimize)).Inc()
}

// ObserveBridgeCall counts a bridge client call outcome.
func (m *Metrics) ObserveBridgeCall(op string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.BridgeCalls.WithLabelValues(op, outcome).Inc()
}

func chainLabel(chainID model.ChainID) string {
	return strconv.FormatUint(uint64(chainID), 10)
}
