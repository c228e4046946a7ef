package trace

import (
	"log/slog"
	"sync"
	"time"

	"github.com/SebastienCoste/KafkaMonitor-sub000/internal/metrics"
	"github.com/SebastienCoste/KafkaMonitor-sub000/internal/model"
)

// rollingWindow is the span counted by the per-topic rolling message rate.
const rollingWindow = time.Minute

// EdgeFunc is invoked when a trace crosses from one topic to another.
type EdgeFunc func(from, to string)

// Assembler groups incoming records into traces by the configured
// correlation header and writes them through to the store. Records without
// the header still increment topic-level counters but join no trace; that
// is expected traffic, not an error.
type Assembler struct {
	store             *Store
	correlationHeader string
	logger            *slog.Logger

	onEdge    EdgeFunc
	onStale   func()
	staleEach int

	// Counters are written only by the single ingestion goroutine and
	// read by statistics callers.
	mu           sync.RWMutex
	topics       map[string]*topicActivity
	totalRecords int64
	uncorrelated int64
	sinceStale   int
}

// topicActivity is the raw per-topic counter state, covering every record
// seen on the topic whether or not it joined a trace.
type topicActivity struct {
	count     int64
	firstSeen time.Time
	lastSeen  time.Time
	recent    []time.Time // receipt times inside the rolling window
}

// TopicActivity is the read-side copy of per-topic raw counters.
type TopicActivity struct {
	Count     int64
	FirstSeen time.Time
	LastSeen  time.Time
}

// AssemblerOption configures an Assembler.
type AssemblerOption func(*Assembler)

// WithEdgeFunc registers a callback for discovered topic transitions.
func WithEdgeFunc(fn EdgeFunc) AssemblerOption {
	return func(a *Assembler) { a.onEdge = fn }
}

// WithStaleHook registers a hook invoked every n ingested records, letting
// the caller mark caches stale with bounded overhead.
func WithStaleHook(n int, fn func()) AssemblerOption {
	return func(a *Assembler) {
		a.staleEach = n
		a.onStale = fn
	}
}

// NewAssembler creates an assembler writing through to store.
func NewAssembler(store *Store, correlationHeader string, logger *slog.Logger, opts ...AssemblerOption) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Assembler{
		store:             store,
		correlationHeader: correlationHeader,
		logger:            logger,
		topics:            make(map[string]*topicActivity),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Ingest processes one decoded record. It must only be called from the
// single ingestion goroutine.
func (a *Assembler) Ingest(rec model.Record) {
	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = time.Now()
	}

	correlationID := rec.Headers[a.correlationHeader]
	a.count(rec, correlationID == "")

	if correlationID == "" {
		metrics.RecordsTotal.WithLabelValues(rec.Topic, "missing").Inc()
		a.logger.Debug("record without correlation header",
			"topic", rec.Topic,
			"header", a.correlationHeader,
		)
		return
	}
	metrics.RecordsTotal.WithLabelValues(rec.Topic, "ok").Inc()

	rec.CorrelationID = correlationID
	res := a.store.Put(correlationID, rec)

	if a.onEdge != nil && res.PrevTopic != "" && res.PrevTopic != rec.Topic {
		a.onEdge(res.PrevTopic, rec.Topic)
	}
}

// count updates topic-level counters and fires the stale hook every Nth record.
func (a *Assembler) count(rec model.Record, uncorrelated bool) {
	a.mu.Lock()
	ta, ok := a.topics[rec.Topic]
	if !ok {
		ta = &topicActivity{firstSeen: rec.ReceivedAt}
		a.topics[rec.Topic] = ta
	}
	ta.count++
	if rec.ReceivedAt.Before(ta.firstSeen) {
		ta.firstSeen = rec.ReceivedAt
	}
	if rec.ReceivedAt.After(ta.lastSeen) {
		ta.lastSeen = rec.ReceivedAt
	}

	cutoff := rec.ReceivedAt.Add(-rollingWindow)
	trimmed := ta.recent[:0]
	for _, at := range ta.recent {
		if at.After(cutoff) {
			trimmed = append(trimmed, at)
		}
	}
	ta.recent = append(trimmed, rec.ReceivedAt)

	a.totalRecords++
	if uncorrelated {
		a.uncorrelated++
	}

	a.sinceStale++
	fire := a.onStale != nil && a.staleEach > 0 && a.sinceStale >= a.staleEach
	if fire {
		a.sinceStale = 0
	}
	a.mu.Unlock()

	if fire {
		a.onStale()
	}
}

// Activity returns a copy of the per-topic raw counters, including records
// that joined no trace.
func (a *Assembler) Activity() map[string]TopicActivity {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make(map[string]TopicActivity, len(a.topics))
	for topic, ta := range a.topics {
		out[topic] = TopicActivity{
			Count:     ta.count,
			FirstSeen: ta.firstSeen,
			LastSeen:  ta.lastSeen,
		}
	}
	return out
}

// TotalRecords returns the total number of records seen.
func (a *Assembler) TotalRecords() int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.totalRecords
}

// UncorrelatedRecords returns how many records lacked the correlation header.
func (a *Assembler) UncorrelatedRecords() int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.uncorrelated
}

// RollingCount returns how many records arrived on the topic within the
// rolling window ending at now.
func (a *Assembler) RollingCount(topic string, now time.Time) int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()

	ta, ok := a.topics[topic]
	if !ok {
		return 0
	}

	cutoff := now.Add(-rollingWindow)
	var n int64
	for _, at := range ta.recent {
		if at.After(cutoff) {
			n++
		}
	}
	return n
}
