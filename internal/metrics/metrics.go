// Package metrics exposes the engine's Prometheus instrumentation.
//
// Primary metrics updated during operation:
//   - spikebot_tracked_assets            - Assets currently tracked (gauge)
//   - spikebot_open_trades               - Open positions (gauge)
//   - spikebot_prices_appended_total     - Price points ingested
//   - spikebot_spikes_detected_total     - Upward moves that cleared the threshold
//   - spikebot_trades_entered_total      - Positions opened
//   - spikebot_trades_exited_total{reason} - Positions closed, split by exit reason
//   - spikebot_order_failures_total{side}  - Gateway orders that failed
//   - spikebot_cycle_errors_total{worker}  - Worker cycles aborted by an error
//
// All metrics are registered in init() and served by the HTTP server at
// /metrics in Prometheus text exposition format.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	trackedAssets = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "spikebot_tracked_assets",
			Help: "Number of asset IDs currently tracked for prices",
		},
	)

	openTrades = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "spikebot_open_trades",
			Help: "Number of currently open positions",
		},
	)

	pricesAppended = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "spikebot_prices_appended_total",
			Help: "Price points appended to asset histories",
		},
	)

	spikesDetected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "spikebot_spikes_detected_total",
			Help: "Price moves that met or exceeded the entry threshold",
		},
	)

	tradesEntered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "spikebot_trades_entered_total",
			Help: "Positions opened",
		},
	)

	tradesExited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spikebot_trades_exited_total",
			Help: "Positions closed, split by exit reason",
		},
		[]string{"reason"},
	)

	orderFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spikebot_order_failures_total",
			Help: "Gateway orders that returned an error",
		},
		[]string{"side"}, // BUY|SELL
	)

	cycleErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spikebot_cycle_errors_total",
			Help: "Worker cycles aborted by an error",
		},
		[]string{"worker"},
	)
)

func init() {
	prometheus.MustRegister(trackedAssets, openTrades)
	prometheus.MustRegister(pricesAppended, spikesDetected)
	prometheus.MustRegister(tradesEntered, tradesExited)
	prometheus.MustRegister(orderFailures, cycleErrors)
}

func SetTrackedAssets(n int) { trackedAssets.Set(float64(n)) }
func SetOpenTrades(n int)    { openTrades.Set(float64(n)) }

func AddPricesAppended(n int) { pricesAppended.Add(float64(n)) }

func IncSpikeDetected() { spikesDetected.Inc() }
func IncTradeEntered()  { tradesEntered.Inc() }

func IncTradeExited(reason string) { tradesExited.WithLabelValues(reason).Inc() }
func IncOrderFailure(side string)  { orderFailures.WithLabelValues(side).Inc() }
func IncCycleError(worker string)  { cycleErrors.WithLabelValues(worker).Inc() }
