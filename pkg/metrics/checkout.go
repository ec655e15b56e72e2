package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records commit outcomes and latency for the sale path.
type CheckoutMetrics struct {
	duration        *prometheus.HistogramVec
	commits         *prometheus.CounterVec
	stockRejections *prometheus.CounterVec
	redemptions     *prometheus.CounterVec
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_commit_duration_seconds",
		Help:    "Duration of checkout commits in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"payment_method"})
	commits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_commits_total",
		Help: "Checkout commit attempts by outcome.",
	}, []string{"payment_method", "outcome"})
	stockRejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_stock_rejections_total",
		Help: "Reservations rejected for insufficient stock.",
	}, []string{"sku"})
	redemptions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gift_card_redemptions_total",
		Help: "Gift card redemption attempts by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(duration, commits, stockRejections, redemptions)
	return &CheckoutMetrics{
		duration:        duration,
		commits:         commits,
		stockRejections: stockRejections,
		redemptions:     redemptions,
	}
}

// ObserveCommit records the duration for a commit with the given tender.
func (m *CheckoutMetrics) ObserveCommit(paymentMethod string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(paymentMethod)).Observe(duration.Seconds())
}

// IncCommit increments the commit counter for the given tender and outcome.
func (m *CheckoutMetrics) IncCommit(paymentMethod, outcome string) {
	if m == nil || m.commits == nil {
		return
	}
	m.commits.WithLabelValues(normalizeLabel(paymentMethod), normalizeLabel(outcome)).Inc()
}

// IncStockRejection increments the insufficient-stock counter for a SKU.
func (m *CheckoutMetrics) IncStockRejection(sku string) {
	if m == nil || m.stockRejections == nil {
		return
	}
	m.stockRejections.WithLabelValues(normalizeLabel(sku)).Inc()
}

// IncRedemption increments the gift card redemption counter for an outcome.
func (m *CheckoutMetrics) IncRedemption(outcome string) {
	if m == nil || m.redemptions == nil {
		return
	}
	m.redemptions.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
