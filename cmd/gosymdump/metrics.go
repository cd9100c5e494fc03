package main

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/grafana/gosymtab/pkg/buildinfo"
	"github.com/grafana/gosymtab/pkg/gosym"
)

type metrics struct {
	symtab    *gosym.Metrics
	buildinfo *buildinfo.Metrics
}

func newMetrics(reg prometheus.Registerer) *metrics {
	return &metrics{
		symtab:    gosym.NewMetrics(reg),
		buildinfo: buildinfo.NewMetrics(reg),
	}
}

func dumpMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
