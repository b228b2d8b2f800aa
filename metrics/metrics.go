// Package metrics exposes the engine's statistics surface: per-subsystem
// counters and latency histograms, served over Prometheus's text
// exposition format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Monitor is the engine's Prometheus metrics registry.
type Monitor struct {
	registry *prometheus.Registry

	// ring buffer
	ringPushFailures *prometheus.CounterVec
	ringPopFailures  *prometheus.CounterVec

	// order manager
	ordersProcessed prometheus.Counter
	ordersRejected  prometheus.Counter
	ordersCanceled  prometheus.Counter
	orderLatencyUs  prometheus.Histogram
	activeOrders    prometheus.Gauge

	// risk engine
	riskChecksTotal   prometheus.Counter
	riskRejectsTotal  *prometheus.CounterVec
	riskLatencyNs     prometheus.Histogram
	riskTotalExposure prometheus.Gauge
	riskDailyPnL      prometheus.Gauge

	// arbitrage
	arbDetectedTotal  prometheus.Counter
	arbProcessedPrice prometheus.Counter
	arbNetProfit      prometheus.Histogram

	// market maker
	mmQuotesGenerated prometheus.Counter
	mmMarketUpdates   prometheus.Counter
	mmSpreadBps       *prometheus.GaugeVec
	mmPosition        *prometheus.GaugeVec
	mmUnrealizedPnL   *prometheus.GaugeVec

	// aggregated book
	bookUpdates prometheus.Counter
}

// Config names the metric namespace/subsystem.
type Config struct {
	Namespace string
	Subsystem string
}

// DefaultConfig returns the engine's default namespace/subsystem.
func DefaultConfig() Config {
	return Config{Namespace: "oms", Subsystem: "core"}
}

// New builds a Monitor with its own registry (never the global default, so
// multiple engines in one process never collide).
func New(cfg Config) *Monitor {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Monitor{
		registry: reg,

		ringPushFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
			Name: "ring_push_failures_total", Help: "ring buffer push failures by ring name",
		}, []string{"ring"}),
		ringPopFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
			Name: "ring_pop_failures_total", Help: "ring buffer pop failures by ring name",
		}, []string{"ring"}),

		ordersProcessed: f.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
			Name: "order_manager_processed_total", Help: "orders dispatched by the order manager",
		}),
		ordersRejected: f.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
			Name: "order_manager_rejected_total", Help: "orders rejected at admission",
		}),
		ordersCanceled: f.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
			Name: "order_manager_canceled_total", Help: "orders canceled",
		}),
		orderLatencyUs: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
			Name:    "order_manager_dispatch_latency_microseconds",
			Help:    "dispatch-to-process latency",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		}),
		activeOrders: f.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
			Name: "order_manager_active_orders", Help: "orders currently indexed and non-terminal",
		}),

		riskChecksTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
			Name: "risk_engine_total_checks", Help: "pre-trade checks evaluated",
		}),
		riskRejectsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
			Name: "risk_engine_rejects_total", Help: "pre-trade checks rejected, by gate",
		}, []string{"gate"}),
		riskLatencyNs: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
			Name:    "risk_engine_check_latency_nanoseconds",
			Help:    "check_order latency",
			Buckets: []float64{1000, 2500, 5000, 10000, 25000, 50000, 100000},
		}),
		riskTotalExposure: f.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
			Name: "risk_engine_total_exposure", Help: "sum of |position value| across symbols",
		}),
		riskDailyPnL: f.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
			Name: "risk_engine_daily_pnl", Help: "realized PnL accumulated since the last reset",
		}),

		arbDetectedTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
			Name: "arbitrage_detected_total", Help: "opportunities pushed to the outbound ring",
		}),
		arbProcessedPrice: f.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
			Name: "arbitrage_processed_prices_total", Help: "price feed updates ingested",
		}),
		arbNetProfit: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
			Name:    "arbitrage_net_profit_amount",
			Help:    "net profit amount of emitted opportunities",
			Buckets: prometheus.DefBuckets,
		}),

		mmQuotesGenerated: f.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
			Name: "market_maker_quotes_generated_total", Help: "quotes pushed to the outbound ring",
		}),
		mmMarketUpdates: f.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
			Name: "market_maker_market_updates_total", Help: "market snapshot publications",
		}),
		mmSpreadBps: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
			Name: "market_maker_spread_bps", Help: "last computed quote spread, in basis points",
		}, []string{"symbol"}),
		mmPosition: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
			Name: "market_maker_position", Help: "current net inventory position",
		}, []string{"symbol"}),
		mmUnrealizedPnL: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
			Name: "market_maker_unrealized_pnl", Help: "unrealized PnL on current inventory",
		}, []string{"symbol"}),

		bookUpdates: f.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
			Name: "aggregated_book_updates_total", Help: "per-venue book updates applied",
		}),
	}
}

func (m *Monitor) RecordRingPushFailure(ring string) { m.ringPushFailures.WithLabelValues(ring).Inc() }
func (m *Monitor) RecordRingPopFailure(ring string)  { m.ringPopFailures.WithLabelValues(ring).Inc() }

func (m *Monitor) RecordOrderProcessed()           { m.ordersProcessed.Inc() }
func (m *Monitor) RecordOrderRejected()            { m.ordersRejected.Inc() }
func (m *Monitor) RecordOrderCanceled()            { m.ordersCanceled.Inc() }
func (m *Monitor) RecordOrderLatencyUs(us float64) { m.orderLatencyUs.Observe(us) }
func (m *Monitor) SetActiveOrders(n int)           { m.activeOrders.Set(float64(n)) }

func (m *Monitor) RecordRiskCheck(latencyNs float64, rejectedGate string) {
	m.riskChecksTotal.Inc()
	m.riskLatencyNs.Observe(latencyNs)
	if rejectedGate != "" {
		m.riskRejectsTotal.WithLabelValues(rejectedGate).Inc()
	}
}

// RecordRiskReject counts a pre-trade rejection outside CheckOrder's own
// latency accounting (guard chain, circuit breaker).
func (m *Monitor) RecordRiskReject(gate string) { m.riskRejectsTotal.WithLabelValues(gate).Inc() }

func (m *Monitor) SetTotalExposure(v float64) { m.riskTotalExposure.Set(v) }
func (m *Monitor) SetDailyPnL(v float64)      { m.riskDailyPnL.Set(v) }

func (m *Monitor) RecordArbitrageDetected(netProfit float64) {
	m.arbDetectedTotal.Inc()
	m.arbNetProfit.Observe(netProfit)
}
func (m *Monitor) RecordArbitrageProcessedPrice() { m.arbProcessedPrice.Inc() }

func (m *Monitor) RecordQuoteGenerated() { m.mmQuotesGenerated.Inc() }
func (m *Monitor) RecordMarketUpdate()   { m.mmMarketUpdates.Inc() }
func (m *Monitor) SetSpreadBps(symbol string, bps float64) {
	m.mmSpreadBps.WithLabelValues(symbol).Set(bps)
}
func (m *Monitor) SetPosition(symbol string, qty float64) {
	m.mmPosition.WithLabelValues(symbol).Set(qty)
}
func (m *Monitor) SetUnrealizedPnL(symbol string, pnl float64) {
	m.mmUnrealizedPnL.WithLabelValues(symbol).Set(pnl)
}

func (m *Monitor) RecordBookUpdate() { m.bookUpdates.Inc() }

// Handler serves the registry in Prometheus text format.
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry, e.g. to register process/go collectors.
func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}
