package gosym

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	Lookups           *prometheus.CounterVec
	MalformedPCTables prometheus.Counter
	ReadErrors        *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gosymtab_lookups_total",
			Help: "Total number of function lookups by kind and result",
		}, []string{"kind", "result"}),
		MalformedPCTables: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gosymtab_malformed_pc_tables_total",
			Help: "Total number of pc-value tables that ended with a truncated or overflowing varint",
		}),
		ReadErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gosymtab_read_errors_total",
			Help: "Total number of failed reads from the backing pclntab source",
		}, []string{"region"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.Lookups,
			m.MalformedPCTables,
			m.ReadErrors,
		)
	}

	return m
}

func (m *Metrics) lookup(kind string, found bool) {
	if m == nil {
		return
	}
	result := "miss"
	if found {
		result = "hit"
	}
	m.Lookups.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) malformedPCTable() {
	if m == nil {
		return
	}
	m.MalformedPCTables.Inc()
}

func (m *Metrics) readError(region string) {
	if m == nil {
		return
	}
	m.ReadErrors.WithLabelValues(region).Inc()
}
