// Package metrics exposes the Prometheus collectors the broker and
// optimizer update while a backtest (or a parameter sweep) runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	OrdersSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backcast_orders_submitted_total",
			Help: "Total number of orders submitted, by run label.",
		},
		[]string{"run"},
	)

	OrdersFilled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backcast_orders_filled_total",
			Help: "Total number of orders filled, by run label and fill kind (market/limit/stop/sl/tp).",
		},
		[]string{"run", "kind"},
	)

	TradesClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backcast_trades_closed_total",
			Help: "Total number of trades closed, by run label.",
		},
		[]string{"run"},
	)

	OutOfMoneyTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backcast_out_of_money_total",
			Help: "Number of runs that terminated early on the out-of-money signal.",
		},
		[]string{"run"},
	)

	EquityGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "backcast_equity",
			Help: "Current equity of a run's broker.",
		},
		[]string{"run"},
	)

	OptimizerRunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backcast_optimizer_run_duration_seconds",
			Help:    "Wall-clock duration of a single optimizer combination run.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(
		OrdersSubmitted,
		OrdersFilled,
		TradesClosed,
		OutOfMoneyTotal,
		EquityGauge,
		OptimizerRunDuration,
	)
}
