package buildinfo

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	ModuleInfoFailures *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ModuleInfoFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gosymtab_buildinfo_module_info_failures_total",
			Help: "Total number of module info blobs that could not be decoded",
		}, []string{"reason"}),
	}

	if reg != nil {
		reg.MustRegister(m.ModuleInfoFailures)
	}

	return m
}

func (m *Metrics) moduleInfoFailed(reason string) {
	if m == nil {
		return
	}
	m.ModuleInfoFailures.WithLabelValues(reason).Inc()
}
