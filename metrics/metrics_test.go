package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorsAreUsable(t *testing.T) {
	OrdersSubmitted.WithLabelValues("t1").Inc()
	OrdersFilled.WithLabelValues("t1", "market").Inc()
	TradesClosed.WithLabelValues("t1").Inc()
	OutOfMoneyTotal.WithLabelValues("t1").Inc()
	EquityGauge.WithLabelValues("t1").Set(10_000)
	OptimizerRunDuration.WithLabelValues("grid").Observe(0.01)

	if got := testutil.ToFloat64(EquityGauge.WithLabelValues("t1")); got != 10_000 {
		t.Fatalf("EquityGauge = %v, want 10000", got)
	}
}
