package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCheckoutMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCheckoutMetrics(reg)

	m.IncCommit("cash", "ok")
	m.IncCommit("cash", "ok")
	m.IncCommit("gift_card", "insufficient_stock")
	m.IncStockRejection("TS-RED-S")
	m.IncRedemption("ok")
	m.ObserveCommit("cash", 25*time.Millisecond)

	if got := testutil.ToFloat64(m.commits.WithLabelValues("cash", "ok")); got != 2 {
		t.Fatalf("expected 2 cash commits, got %v", got)
	}
	if got := testutil.ToFloat64(m.stockRejections.WithLabelValues("TS-RED-S")); got != 1 {
		t.Fatalf("expected 1 rejection, got %v", got)
	}
	if got := testutil.ToFloat64(m.redemptions.WithLabelValues("ok")); got != 1 {
		t.Fatalf("expected 1 redemption, got %v", got)
	}
}

func TestCheckoutMetricsNilSafe(t *testing.T) {
	var m *CheckoutMetrics
	m.IncCommit("cash", "ok")
	m.IncStockRejection("X")
	m.IncRedemption("ok")
	m.ObserveCommit("cash", time.Second)

	empty := NewCheckoutMetrics(nil)
	empty.IncCommit("cash", "ok")
}
