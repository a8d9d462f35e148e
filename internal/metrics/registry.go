// Package metrics exposes the daemon's component counters as
// Prometheus metrics. Each component gets a collector that reads the
// component's stats snapshot at scrape time; nothing is sampled in
// the background.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry owns a dedicated prometheus registry so the daemon's
// metrics stay separate from any default-registry noise.
type Registry struct {
	registry *prometheus.Registry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		registry: prometheus.NewRegistry(),
	}
}

// Register adds a collector.
func (r *Registry) Register(c prometheus.Collector) error {
	return r.registry.Register(c)
}

// MustRegister adds collectors and panics on duplicates, for wiring
// at startup.
func (r *Registry) MustRegister(cs ...prometheus.Collector) {
	r.registry.MustRegister(cs...)
}

// HTTPHandler returns the scrape endpoint handler.
func (r *Registry) HTTPHandler() http.Handler {
	return promhttp.InstrumentMetricHandler(r.registry,
		promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{}))
}
