package symsld

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/botwmods/symsld/pkg/link"
	"github.com/botwmods/symsld/pkg/version"
)

type metrics struct {
	declarations     *prometheus.CounterVec
	diagnostics      *prometheus.CounterVec
	referenceSymbols *prometheus.GaugeVec
	linksWritten     *prometheus.GaugeVec
	lastRunSuccess   prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		declarations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "symsld_declarations_total",
			Help: "Link declarations accepted from source files.",
		}, []string{"version", "kind"}),
		diagnostics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "symsld_diagnostics_total",
			Help: "Diagnostics reported during a run.",
		}, []string{"severity"}),
		referenceSymbols: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "symsld_reference_symbols",
			Help: "Symbols loaded from a reference table.",
		}, []string{"table"}),
		linksWritten: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "symsld_links_written",
			Help: "Symbol definitions in the generated linker script.",
		}, []string{"version"}),
		lastRunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "symsld_last_run_success",
			Help: "Whether the last run produced a linker script.",
		}),
	}
	if reg != nil {
		m.declarations = registerOrGet(reg, m.declarations)
		m.diagnostics = registerOrGet(reg, m.diagnostics)
		m.referenceSymbols = registerOrGet(reg, m.referenceSymbols)
		m.linksWritten = registerOrGet(reg, m.linksWritten)
		m.lastRunSuccess = registerOrGet(reg, m.lastRunSuccess)
	}
	// Export every series, even before any declaration of its kind is seen.
	for _, v := range version.All() {
		for _, k := range link.Kinds() {
			m.declarations.WithLabelValues(v.String(), k.String())
		}
	}
	return m
}

// registerOrGet returns the already registered collector when c is a
// duplicate, so several generators can share a registry.
func registerOrGet[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			return already.ExistingCollector.(T)
		}
		panic(err)
	}
	return c
}
