package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// QuoteRequestsTotal counts quote requests by mode and outcome.
	QuoteRequestsTotal *prometheus.CounterVec
	// QuoteLinesTotal counts priced basket lines by mode and stock state.
	QuoteLinesTotal *prometheus.CounterVec
	// QuoteGrandTotal records the distribution of quote grand totals in currency units.
	QuoteGrandTotal *prometheus.HistogramVec
	// SettingsFallbackTotal counts reads that fell back to default pricing settings.
	SettingsFallbackTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		QuoteRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_requests_total",
			Help:      "Count of quote requests by mode and result.",
		}, []string{"mode", "result"})
		QuoteLinesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_lines_total",
			Help:      "Count of quoted basket lines by mode and stock state.",
		}, []string{"mode", "state"})
		QuoteGrandTotal = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "quote_grand_total",
			Help:      "Distribution of quote grand totals including VAT.",
			Buckets:   []float64{100, 250, 500, 1000, 2500, 5000, 10000, 25000, 50000, 100000},
		}, []string{"mode"})
		SettingsFallbackTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_settings_fallback_total",
			Help:      "Count of pricing settings reads served from defaults.",
		}, []string{"reason"})

		QuoteRequestsTotal = registerOrReuse(reg, QuoteRequestsTotal)
		QuoteLinesTotal = registerOrReuse(reg, QuoteLinesTotal)
		QuoteGrandTotal = registerOrReuse(reg, QuoteGrandTotal)
		SettingsFallbackTotal = registerOrReuse(reg, SettingsFallbackTotal)
	})
}

// ObserveQuote records a successfully priced quote. It is a no-op until the domain
// metrics are registered.
func ObserveQuote(mode string, priced, outOfStock int, grandTotal float64) {
	if QuoteRequestsTotal != nil {
		QuoteRequestsTotal.WithLabelValues(mode, "ok").Inc()
	}
	if QuoteLinesTotal != nil {
		QuoteLinesTotal.WithLabelValues(mode, "priced").Add(float64(priced))
		QuoteLinesTotal.WithLabelValues(mode, "out_of_stock").Add(float64(outOfStock))
	}
	if QuoteGrandTotal != nil {
		QuoteGrandTotal.WithLabelValues(mode).Observe(grandTotal)
	}
}

// ObserveQuoteRejected records a quote request rejected before pricing.
func ObserveQuoteRejected(mode, reason string) {
	if QuoteRequestsTotal == nil {
		return
	}
	if mode == "" {
		mode = "unknown"
	}
	QuoteRequestsTotal.WithLabelValues(mode, reason).Inc()
}

// ObserveSettingsFallback records a settings read served from defaults.
func ObserveSettingsFallback(reason string) {
	if SettingsFallbackTotal != nil {
		SettingsFallbackTotal.WithLabelValues(reason).Inc()
	}
}
