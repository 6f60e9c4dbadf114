package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	ResolveDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "metadesc_resolve_seconds",
		Help:    "Time spent resolving the imports of a root descriptor.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	ResolveErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "metadesc_resolve_errors_total",
		Help: "Total number of failed import resolutions.",
	}, []string{"kind"})

	ImportsVisitedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "metadesc_imports_visited_total",
		Help: "Total number of import declarations followed during resolution.",
	}, []string{"kind"})

	ImportCyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "metadesc_import_cycles_total",
		Help: "Total number of import edges skipped because they closed a cycle.",
	}, []string{"kind"})

	DescriptorParsesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "metadesc_descriptor_parses_total",
		Help: "Total number of descriptors fetched and parsed from source.",
	})

	ImportCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "metadesc_import_cache_hits_total",
		Help: "Total number of import cache lookups served without parsing.",
	})

	ImportCacheEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "metadesc_import_cache_entries",
		Help: "Current number of parsed descriptors held by import caches.",
	})

	NameLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "metadesc_name_lookups_total",
		Help: "Total number of by-name import lookups, by outcome.",
	}, []string{"outcome"})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "metadesc_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})
)
