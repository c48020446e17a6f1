// Package prometheus wires the poolkeeper metrics.Sink interface to
// github.com/prometheus/client_golang, the same collector library
// darkweak/souin registers its cache metrics with in
// api/prometheus/prometheus.go. Unlike souin's package-level registered
// map, collectors here are held per-Sink so multiple coordinators in the
// same process don't collide on metric names.
package prometheus

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arvil-systems/poolkeeper/pkg/metrics"
)

// Sink is a metrics.Sink backed by Prometheus collectors. Counters and
// meters are registered as prometheus.Counter, histograms as
// prometheus.Histogram, and history events as a CounterVec keyed by the
// symbolic event name, since Prometheus has no native "event log" type.
type Sink struct {
	namespace string
	registry  prometheus.Registerer

	mu         sync.Mutex
	counters   map[string]prometheus.Counter
	histograms map[string]prometheus.Histogram
	history    *prometheus.CounterVec
}

// New creates a Sink that registers its collectors against registry
// (pass prometheus.DefaultRegisterer to use the global registry).
// namespace prefixes every metric name on top of the "pooler." prefix
// already baked into the names the Coordinator emits.
func New(namespace string, registry prometheus.Registerer) *Sink {
	history := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_total",
		Help:      "Count of symbolic pooler lifecycle events by kind.",
	}, []string{"event"})
	_ = registry.Register(history)

	return &Sink{
		namespace:  namespace,
		registry:   registry,
		counters:   make(map[string]prometheus.Counter),
		histograms: make(map[string]prometheus.Histogram),
		history:    history,
	}
}

// Notify implements metrics.Sink.
func (s *Sink) Notify(name string, value float64, kind metrics.Type) {
	switch kind {
	case metrics.Counter, metrics.Meter:
		s.counter(name).Add(value)
	case metrics.Histogram:
		s.histogram(name).Observe(value)
	case metrics.History:
		s.history.WithLabelValues(name).Inc()
	}
}

func (s *Sink) counter(name string) prometheus.Counter {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.counters[name]; ok {
		return c
	}
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: s.namespace,
		Name:      sanitize(name),
		Help:      "poolkeeper counter metric " + name,
	})
	_ = s.registry.Register(c)
	s.counters[name] = c
	return c
}

func (s *Sink) histogram(name string) prometheus.Histogram {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h, ok := s.histograms[name]; ok {
		return h
	}
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: s.namespace,
		Name:      sanitize(name),
		Help:      "poolkeeper histogram metric " + name,
	})
	_ = s.registry.Register(h)
	s.histograms[name] = h
	return h
}

// sanitize turns a "pooler.<pool>.take_rate"-style metric name into a
// Prometheus-legal identifier.
func sanitize(name string) string {
	r := strings.NewReplacer(".", "_", "-", "_")
	return r.Replace(name)
}
