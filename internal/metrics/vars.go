package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	OpportunitiesFound = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "triarb_opportunities_found",
		Help: "Profitable cycles found in the last scan",
	})

	BestProfitPct = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "triarb_best_profit_pct",
		Help: "Best net-of-fee profit percent in the last scan",
	})

	PriceFetchErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "triarb_price_fetch_errors_total",
		Help: "Number of failed ticker price fetch attempts",
	})

	TicksApplied = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "triarb_ticks_applied_total",
		Help: "Streaming ticker updates applied to the price cache",
	})

	TradesCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "triarb_trades_completed_total",
		Help: "Trade sequences with all three legs filled",
	})

	TradesAborted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "triarb_trades_aborted_total",
		Help: "Trade sequences stopped by the slippage guard or lot rules",
	})

	TradesFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "triarb_trades_failed_total",
		Help: "Trade sequences halted by an order or fetch error",
	})

	ScanDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "triarb_scan_duration_seconds",
		Help:    "Time to scan one snapshot for cycles",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(
		OpportunitiesFound,
		BestProfitPct,
		PriceFetchErrors,
		TicksApplied,
		TradesCompleted,
		TradesAborted,
		TradesFailed,
		ScanDuration,
	)
}
