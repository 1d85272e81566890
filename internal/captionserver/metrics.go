package captionserver

import (
	"net/http"
	"sync"

	"github.com/anatolykoptev/go_caption/internal/engine"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registryOnce sync.Once
	registry     *prometheus.Registry
)

// Registry returns the process registry: engine counters plus Go runtime and
// process collectors. Counters read the engine atomics at scrape time.
func Registry() *prometheus.Registry {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		for _, name := range engine.MetricNames {
			registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: "go_caption",
				Name:      name + "_total",
				Help:      "Engine counter " + name + ".",
			}, func() float64 {
				return float64(engine.GetMetrics()[name])
			}))
		}
	})
	return registry
}

// MetricsHandler serves Registry in the Prometheus exposition format.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(Registry(), promhttp.HandlerOpts{})
}
