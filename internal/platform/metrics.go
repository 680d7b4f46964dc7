package platform

import (
	"context"

	"github.com/haxdai/SWBPlatform-sub000/internal/msgcenter"
	"github.com/haxdai/SWBPlatform-sub000/internal/rdf"
	"github.com/haxdai/SWBPlatform-sub000/internal/semantic"
	"github.com/haxdai/SWBPlatform-sub000/internal/triplestore"
	"github.com/haxdai/SWBPlatform-sub000/internal/triplestore/cached"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "swb"

// metrics holds the metrics of a platform
type metrics struct {
	registry *prometheus.Registry

	storeOps      *prometheus.CounterVec
	events        *prometheus.CounterVec
	remoteHits    prometheus.Counter
	invalidations prometheus.Counter
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),

		storeOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "Operations performed on triplestores.",
		}, []string{"model", "backend", "op"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "object_events_total",
			Help:      "Object changes reported to observers.",
		}, []string{"kind"}),
		remoteHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_hits_total",
			Help:      "Object reads reported by other nodes.",
		}),
		invalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_invalidations_total",
			Help:      "Object changes reported by other nodes.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.storeOps, m.events, m.remoteHits, m.invalidations,
	)
	return m
}

// registerModel registers the cache metrics of model
func (m *metrics) registerModel(model *semantic.Model, store triplestore.Store) {
	labels := prometheus.Labels{"model": model.Name}
	stat := func(name, help string, value func(semantic.CacheStats) uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "object_cache",
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		}, func() float64 { return float64(value(model.Cache.Stats())) })
	}

	m.registry.MustRegister(
		stat("hits_total", "Objects found in the cache.", func(s semantic.CacheStats) uint64 { return s.Hits }),
		stat("misses_total", "Objects not found in the cache.", func(s semantic.CacheStats) uint64 { return s.Misses }),
		stat("loads_total", "Objects loaded from the store.", func(s semantic.CacheStats) uint64 { return s.Loads }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "object_cache",
			Name:        "entries",
			Help:        "Objects currently cached.",
			ConstLabels: labels,
		}, func() float64 { return float64(model.Cache.Len()) }),
	)

	if cs, ok := store.(*cached.Store); ok {
		m.registry.MustRegister(
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "store_cache",
				Name:        "hits_total",
				Help:        "Store reads answered from the cache.",
				ConstLabels: labels,
			}, func() float64 { return float64(cs.Stats().Hits) }),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "store_cache",
				Name:        "misses_total",
				Help:        "Store reads passed to the underlying store.",
				ConstLabels: labels,
			}, func() float64 { return float64(cs.Stats().Misses) }),
		)
	}
}

// registerMessages registers the counters of center
func (m *metrics) registerMessages(center *msgcenter.Center) {
	stat := func(name, help string, value func(msgcenter.Stats) uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messages",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(value(center.Stats())) })
	}

	m.registry.MustRegister(
		stat("sent_total", "Messages sent to other nodes.", func(s msgcenter.Stats) uint64 { return s.Sent }),
		stat("received_total", "Messages received from other nodes.", func(s msgcenter.Stats) uint64 { return s.Received }),
		stat("dropped_total", "Malformed messages dropped.", func(s msgcenter.Stats) uint64 { return s.Dropped }),
	)
}

// instrumented counts the operations on a store
type instrumented struct {
	triplestore.Store

	add, remove, match, count, graphs prometheus.Counter
}

func (m *metrics) instrument(model, backend string, store triplestore.Store) *instrumented {
	op := func(name string) prometheus.Counter {
		return m.storeOps.WithLabelValues(model, backend, name)
	}
	return &instrumented{
		Store:  store,
		add:    op("add"),
		remove: op("remove"),
		match:  op("match"),
		count:  op("count"),
		graphs: op("graphs"),
	}
}

func (is *instrumented) Add(ctx context.Context, stmts ...rdf.Statement) error {
	is.add.Inc()
	return is.Store.Add(ctx, stmts...)
}

func (is *instrumented) Remove(ctx context.Context, pattern rdf.Pattern) (int64, error) {
	is.remove.Inc()
	return is.Store.Remove(ctx, pattern)
}

func (is *instrumented) Match(ctx context.Context, pattern rdf.Pattern, f func(rdf.Statement) error) error {
	is.match.Inc()
	return is.Store.Match(ctx, pattern, f)
}

func (is *instrumented) Count(ctx context.Context, pattern rdf.Pattern) (int64, error) {
	is.count.Inc()
	return is.Store.Count(ctx, pattern)
}

func (is *instrumented) Graphs(ctx context.Context) ([]string, error) {
	is.graphs.Inc()
	return is.Store.Graphs(ctx)
}
