package sequence

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors shared by all allocators of a
// process. A nil *Metrics records nothing.
type Metrics struct {
	IDsIssued      *prometheus.CounterVec
	Refills        *prometheus.CounterVec
	RefillDuration *prometheus.HistogramVec
}

// NewMetrics creates the allocator collectors and registers them on reg.
// reg may be nil, in which case the collectors are created but not
// registered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		IDsIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "legacyid",
			Name:      "ids_issued_total",
			Help:      "Identifiers returned to callers.",
		}, []string{"sequence"}),
		Refills: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "legacyid",
			Name:      "refills_total",
			Help:      "Block reservations attempted against the counter store.",
		}, []string{"sequence", "result"}),
		RefillDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "legacyid",
			Name:      "refill_duration_seconds",
			Help:      "Duration of block reservation transactions.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"sequence"}),
	}
	if reg != nil {
		reg.MustRegister(m.IDsIssued, m.Refills, m.RefillDuration)
	}
	return m
}

func (m *Metrics) issued(name string) {
	if m == nil {
		return
	}
	m.IDsIssued.WithLabelValues(name).Inc()
}

func (m *Metrics) refilled(name string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Refills.WithLabelValues(name, result).Inc()
	m.RefillDuration.WithLabelValues(name).Observe(elapsed.Seconds())
}
