package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion metrics
	RecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafkamon_records_total",
			Help: "Total number of records ingested",
		},
		[]string{"topic", "correlation"},
	)

	// Trace store metrics
	TracesCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kafkamon_traces_created_total",
			Help: "Total number of traces created",
		},
	)

	TracesEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kafkamon_traces_evicted_total",
			Help: "Total number of traces evicted at capacity",
		},
	)

	StoreSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kafkamon_store_traces",
			Help: "Current number of traces held by the store",
		},
	)

	ClearBatches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kafkamon_store_clear_batches_total",
			Help: "Total number of batches processed by asynchronous clears",
		},
	)

	// Stats cache metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafkamon_cache_hits_total",
			Help: "Total number of stats cache hits",
		},
		[]string{"cache"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafkamon_cache_misses_total",
			Help: "Total number of stats cache misses",
		},
		[]string{"cache"},
	)

	// Task manager metrics
	TasksActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kafkamon_tasks_active",
			Help: "Number of currently running background tasks",
		},
	)

	TasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafkamon_tasks_total",
			Help: "Total number of background tasks by outcome",
		},
		[]string{"outcome"},
	)

	// Poll controller metrics
	PollTimeout = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kafkamon_poll_timeout_seconds",
			Help: "Current adaptive poll timeout in seconds",
		},
	)

	PollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafkamon_polls_total",
			Help: "Total number of source polls",
		},
		[]string{"result"},
	)
)
