package bucketrt

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "kadtable"
	metricsSubsystem = "routing"
)

// metrics holds the collectors of a single Table. A nil *metrics records nothing.
type metrics struct {
	inserts      *prometheus.CounterVec
	unresponsive *prometheus.CounterVec
	contacts     prometheus.GaugeFunc
}

func newMetrics(reg prometheus.Registerer, size func() int) (*metrics, error) {
	m := &metrics{
		inserts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "inserts_total",
			Help:      "Number of peer sightings recorded by the routing table, by outcome.",
		}, []string{"outcome"}),
		unresponsive: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "unresponsive_total",
			Help:      "Number of unresponsive peer notifications handled by the routing table, by outcome.",
		}, []string{"outcome"}),
		contacts: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "contacts",
			Help:      "Number of active contacts held by the routing table.",
		}, func() float64 { return float64(size()) }),
	}

	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.inserts, m.unresponsive, m.contacts} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *metrics) inserted(o InsertOutcome) {
	if m == nil {
		return
	}
	m.inserts.WithLabelValues(o.String()).Inc()
}

func (m *metrics) removed(o removeOutcome) {
	if m == nil {
		return
	}
	m.unresponsive.WithLabelValues(o.String()).Inc()
}
