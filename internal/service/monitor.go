// Package service wires the trace assembly, statistics, graph, cache, and
// task layers into the monitor: a single ingestion loop feeding a bounded
// store, with snapshot-based read operations for the serving layer.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/SebastienCoste/KafkaMonitor-sub000/internal/cache"
	"github.com/SebastienCoste/KafkaMonitor-sub000/internal/config"
	"github.com/SebastienCoste/KafkaMonitor-sub000/internal/graph"
	"github.com/SebastienCoste/KafkaMonitor-sub000/internal/model"
	"github.com/SebastienCoste/KafkaMonitor-sub000/internal/poll"
	"github.com/SebastienCoste/KafkaMonitor-sub000/internal/publish"
	"github.com/SebastienCoste/KafkaMonitor-sub000/internal/source"
	"github.com/SebastienCoste/KafkaMonitor-sub000/internal/stats"
	"github.com/SebastienCoste/KafkaMonitor-sub000/internal/tasks"
	"github.com/SebastienCoste/KafkaMonitor-sub000/internal/trace"
)

// Monitor owns every core component. Construct with New, run the ingestion
// loop with Run, tear down with Close. Nothing here is a process-wide
// singleton; callers pass the instance where it is needed.
type Monitor struct {
	cfg    config.MonitorConfig
	logger *slog.Logger

	store     *trace.Store
	assembler *trace.Assembler
	engine    *stats.Engine
	graph     *graph.Graph
	tasks     *tasks.Manager
	poller    *poll.Controller
	src       source.Source
	collector *publish.Collector // nil when publishing is disabled

	statsCache *cache.Cache[*model.StatisticsResult]
	compCache  *cache.Cache[[]graph.Component]

	mu        sync.RWMutex
	env       string
	monitored []string
}

// New constructs a monitor from configuration and an already-loaded
// topology. collector may be nil.
func New(cfg *config.Config, topo *config.Topology, src source.Source, collector *publish.Collector, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}

	m := &Monitor{
		cfg:       cfg.Monitor,
		logger:    logger,
		src:       src,
		collector: collector,
		env:       "default",
	}

	m.store = trace.NewStore(cfg.Monitor.MaxTraces, logger.With("component", "store"))
	m.graph = graph.New(topo)
	m.assembler = trace.NewAssembler(
		m.store,
		cfg.Monitor.CorrelationHeader,
		logger.With("component", "assembler"),
		trace.WithEdgeFunc(m.graph.ObserveEdge),
		trace.WithStaleHook(cfg.Monitor.StaleMarkInterval, m.markStale),
	)
	m.engine = stats.NewEngine(m.store, m.assembler, cfg.Monitor.SlowTraceCount)
	m.tasks = tasks.NewManager(
		cfg.Tasks.MaxConcurrent,
		cfg.Tasks.WarnAfter,
		cfg.Tasks.SweepInterval,
		logger.With("component", "tasks"),
	)
	m.poller = poll.NewController(cfg.Poll.BaseTimeout, cfg.Poll.MaxTimeout, cfg.Poll.BackoffFactor)

	m.statsCache = cache.New("statistics", cfg.Monitor.CacheTTL,
		cfg.Monitor.DriftTraceRatio, cfg.Monitor.DriftMessageCount,
		func(r *model.StatisticsResult) *model.StatisticsResult { return r.Clone() })
	m.compCache = cache.New("components", cfg.Monitor.CacheTTL,
		cfg.Monitor.DriftTraceRatio, cfg.Monitor.DriftMessageCount,
		cloneComponents)

	if topo != nil {
		m.monitored = append([]string(nil), topo.Topics...)
	}

	return m
}

func cloneComponents(in []graph.Component) []graph.Component {
	out := make([]graph.Component, len(in))
	for i, c := range in {
		c.Topics = append([]string(nil), c.Topics...)
		c.Edges = append([]graph.Edge(nil), c.Edges...)
		c.TraceIDs = append([]string(nil), c.TraceIDs...)
		out[i] = c
	}
	return out
}

func (m *Monitor) markStale() {
	m.statsCache.MarkStale()
	m.compCache.MarkStale()
}

// Run drives the ingestion loop until ctx is cancelled. It is the sole
// writer of the store and the topic counters.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("ingestion loop started")
	for {
		timeout := m.poller.NextTimeout()
		records, err := m.src.Poll(ctx, timeout)
		if err != nil {
			if ctx.Err() != nil {
				m.logger.Info("ingestion loop stopped")
				return nil
			}
			return fmt.Errorf("source poll: %w", err)
		}

		m.poller.Observe(len(records))

		for _, rec := range records {
			m.graph.ObserveTopic(rec.Topic)
			m.assembler.Ingest(rec)
			if m.collector != nil {
				m.collector.Record(rec.Topic, rec.ReceivedAt)
			}
		}
	}
}

// Statistics returns the per-topic statistics and totals, served from the
// cache when it is still fresh for the current store fingerprint.
func (m *Monitor) Statistics() (*model.StatisticsResult, error) {
	fp := m.fingerprint()
	result, err := m.statsCache.GetOrCompute(fp, func() (*model.StatisticsResult, error) {
		topics := m.engine.Compute(m.Monitored())
		return &model.StatisticsResult{
			Topics: topics,
			Totals: model.Totals{
				Records:        m.assembler.TotalRecords(),
				Uncorrelated:   m.assembler.UncorrelatedRecords(),
				Traces:         int64(m.store.Len()),
				TopicsObserved: int64(len(m.assembler.Activity())),
			},
			GeneratedAt: time.Now(),
		}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("compute statistics: %w", err)
	}
	return result, nil
}

// Components returns the topic relationship graph decomposed into
// connected components. An empty graph yields an empty slice.
func (m *Monitor) Components() ([]graph.Component, error) {
	fp := m.fingerprint()
	components, err := m.compCache.GetOrCompute(fp, func() ([]graph.Component, error) {
		return m.graph.Decompose(m.store.All(), m.cfg.HealthyAge), nil
	})
	if err != nil {
		return nil, fmt.Errorf("decompose graph: %w", err)
	}
	return components, nil
}

// ClearTraces empties the store in batches and returns once done.
func (m *Monitor) ClearTraces(ctx context.Context) error {
	if err := m.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear traces: %w", err)
	}
	m.markStale()
	return nil
}

// SubmitTask schedules background work under the current environment's tag
// namespace.
func (m *Monitor) SubmitTask(ctx context.Context, tag string, fn tasks.Func) (*tasks.Handle, error) {
	return m.tasks.Submit(ctx, tag, fn)
}

// CancelTag cancels all background work under a tag.
func (m *Monitor) CancelTag(tag string) int {
	return m.tasks.CancelTag(tag)
}

// SwitchEnvironment tears down the current environment's background work,
// clears trace state, and installs the new topology. The clear runs as a
// background task tagged with the new environment so a follow-up switch
// can cancel it too.
func (m *Monitor) SwitchEnvironment(ctx context.Context, env string, topo *config.Topology) error {
	m.mu.Lock()
	oldEnv := m.env
	m.env = env
	if topo != nil {
		m.monitored = append([]string(nil), topo.Topics...)
	} else {
		m.monitored = nil
	}
	m.mu.Unlock()

	cancelled := m.tasks.CancelTag(envTag(oldEnv))
	m.graph.Reset(topo)

	handle, err := m.tasks.Submit(ctx, envTag(env), func(taskCtx context.Context) error {
		return m.store.Clear(taskCtx)
	})
	if err != nil {
		return fmt.Errorf("switch environment %s: %w", env, err)
	}
	if err := handle.Wait(ctx); err != nil {
		return fmt.Errorf("switch environment %s: %w", env, err)
	}

	m.statsCache.Invalidate()
	m.compCache.Invalidate()

	m.logger.Info("environment switched",
		"from", oldEnv,
		"to", env,
		"tasks_cancelled", cancelled,
	)
	return nil
}

func envTag(env string) string { return "env:" + env }

// Environment returns the active environment name.
func (m *Monitor) Environment() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.env
}

// Monitored returns the configured monitored topic set.
func (m *Monitor) Monitored() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.monitored...)
}

// TaskCounters exposes task lifecycle counters.
func (m *Monitor) TaskCounters() tasks.Counters {
	return m.tasks.Counters()
}

// CacheStats exposes hit/miss counters for both caches.
func (m *Monitor) CacheStats() map[string]cache.Stats {
	return map[string]cache.Stats{
		"statistics": m.statsCache.Stats(),
		"components": m.compCache.Stats(),
	}
}

// PollSnapshot exposes the adaptive poll controller's current state.
func (m *Monitor) PollSnapshot() poll.Snapshot {
	return m.poller.Snapshot()
}

// Close releases background resources: the task manager and, when
// publishing is enabled, the collector.
func (m *Monitor) Close() {
	m.tasks.Close()
	if m.collector != nil {
		m.collector.Stop()
	}
}

func (m *Monitor) fingerprint() cache.Fingerprint {
	return cache.NewFingerprint(m.store.Len(), m.assembler.TotalRecords(), m.Monitored())
}
