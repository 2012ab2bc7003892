package respcache

import "github.com/prometheus/client_golang/prometheus"

const (
	resultHit    = "hit"
	resultMiss   = "miss"
	resultBypass = "bypass"
)

// Metrics holds the cache's Prometheus collectors.
type Metrics struct {
	requests *prometheus.CounterVec
	entries  prometheus.Gauge
}

// NewMetrics creates the cache collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storefront_response_cache_requests_total",
				Help: "Response cache lookups by result.",
			},
			[]string{"result"},
		),
		entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "storefront_response_cache_entries",
			Help: "Entries currently held by the response cache.",
		}),
	}
	reg.MustRegister(m.requests, m.entries)
	return m
}

func (m *Metrics) observe(result string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(result).Inc()
}

func (m *Metrics) setEntries(n int) {
	if m == nil {
		return
	}
	m.entries.Set(float64(n))
}
