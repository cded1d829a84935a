// Package metrics holds the Prometheus collectors the scanner updates each poll.
//
//   - hps_scans_total{watchlist,result}       scan cycles by outcome (ok|feed_unavailable|error)
//   - hps_scan_duration_seconds{watchlist}    wall time of a scan cycle
//   - hps_ticker_skips_total{kind}            per-ticker failures by error kind
//   - hps_transitions_total{transition}       tracker transitions (signaled, exited, golden_*)
//   - hps_vix_level                           VIX close used by the last cycle
//   - hps_ticker_score{watchlist,ticker}      latest score per ticker
//
// They are registered in init() and served by the API at /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	Scans = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hps_scans_total",
			Help: "Scan cycles by outcome",
		},
		[]string{"watchlist", "result"},
	)

	ScanDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hps_scan_duration_seconds",
			Help:    "Wall time of a scan cycle",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
		},
		[]string{"watchlist"},
	)

	TickerSkips = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hps_ticker_skips_total",
			Help: "Tickers skipped in a cycle, by error kind",
		},
		[]string{"kind"},
	)

	Transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hps_transitions_total",
			Help: "Signal and golden window tracker transitions",
		},
		[]string{"transition"},
	)

	VIX = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hps_vix_level",
			Help: "VIX close used by the last scan cycle",
		},
	)

	TickerScore = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hps_ticker_score",
			Help: "Latest HPS score per ticker",
		},
		[]string{"watchlist", "ticker"},
	)
)

func init() {
	prometheus.MustRegister(Scans, ScanDuration)
	prometheus.MustRegister(TickerSkips, Transitions)
	prometheus.MustRegister(VIX, TickerScore)
}
