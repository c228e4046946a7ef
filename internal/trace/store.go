// Package trace holds the trace assembly layer: the bounded FIFO store that
// owns all trace state and the assembler that groups incoming records into
// traces by correlation id.
package trace

import (
	"context"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/SebastienCoste/KafkaMonitor-sub000/internal/metrics"
	"github.com/SebastienCoste/KafkaMonitor-sub000/internal/model"
)

// clearBatchSize is how many traces a Clear removes per lock acquisition.
// Ingestion is never blocked longer than one batch's processing time.
const clearBatchSize = 100

// node is a trace plus its links in the insertion-order list.
// head side is oldest; eviction always removes the head.
type node struct {
	prev, next *node

	id        string
	records   []model.Record
	firstSeen time.Time
	lastSeen  time.Time
}

func (n *node) snapshot() model.TraceSnapshot {
	records := make([]model.Record, len(n.records))
	for i, rec := range n.records {
		records[i] = rec.Clone()
	}
	return model.TraceSnapshot{
		ID:          n.id,
		Records:     records,
		FirstSeenAt: n.firstSeen,
		LastSeenAt:  n.lastSeen,
	}
}

// PutResult reports what a Put did to the store.
type PutResult struct {
	// Created is true when the record started a new trace.
	Created bool
	// EvictedID is the id of the trace removed to make room, if any.
	EvictedID string
	// PrevTopic is the topic of the record previously appended to the
	// trace, empty for a new trace. Used for edge discovery.
	PrevTopic string
}

// Store is a fixed-capacity, insertion-ordered collection of traces.
// Lookup is O(1) through the index map and eviction is O(1) through the
// intrusive list. A single ingestion goroutine is the only writer; readers
// receive detached snapshots and never observe internal state.
type Store struct {
	mu       sync.RWMutex
	capacity int
	index    map[string]*node
	head     *node // oldest inserted
	tail     *node // newest inserted
	logger   *slog.Logger
}

// NewStore creates a store holding at most capacity traces.
func NewStore(capacity int, logger *slog.Logger) *Store {
	if capacity <= 0 {
		capacity = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		capacity: capacity,
		index:    make(map[string]*node, capacity),
		logger:   logger,
	}
}

// Put appends the record to the trace with the given id, creating the trace
// if needed. When the store is full and the id is new, exactly the oldest
// inserted trace is evicted first.
func (s *Store) Put(id string, rec model.Record) PutResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res PutResult

	if n, ok := s.index[id]; ok {
		if len(n.records) > 0 {
			res.PrevTopic = n.records[len(n.records)-1].Topic
		}
		n.records = append(n.records, rec)
		if rec.ReceivedAt.After(n.lastSeen) {
			n.lastSeen = rec.ReceivedAt
		}
		return res
	}

	if len(s.index) >= s.capacity {
		evicted := s.removeOldestLocked()
		res.EvictedID = evicted
		metrics.TracesEvicted.Inc()
		s.logger.Debug("evicted oldest trace at capacity", "trace_id", evicted)
	}

	n := &node{
		id:        id,
		records:   []model.Record{rec},
		firstSeen: rec.ReceivedAt,
		lastSeen:  rec.ReceivedAt,
	}
	s.index[id] = n
	s.pushBackLocked(n)
	res.Created = true

	metrics.TracesCreated.Inc()
	metrics.StoreSize.Set(float64(len(s.index)))
	return res
}

// Get returns a snapshot of the trace with the given id.
func (s *Store) Get(id string) (model.TraceSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.index[id]
	if !ok {
		return model.TraceSnapshot{}, false
	}
	return n.snapshot(), true
}

// All returns snapshots of every trace in insertion order, oldest first.
func (s *Store) All() []model.TraceSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.TraceSnapshot, 0, len(s.index))
	for n := s.head; n != nil; n = n.next {
		out = append(out, n.snapshot())
	}
	return out
}

// Len returns the number of traces currently held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.index)
}

// Clear removes all traces in batches, yielding between batches so the
// ingestion path is never starved for more than one batch. It returns once
// the store is empty and hints the runtime to return freed memory.
func (s *Store) Clear(ctx context.Context) error {
	removed := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.mu.Lock()
		batch := 0
		for batch < clearBatchSize && s.head != nil {
			s.removeOldestLocked()
			batch++
		}
		remaining := len(s.index)
		s.mu.Unlock()

		removed += batch
		metrics.ClearBatches.Inc()
		metrics.StoreSize.Set(float64(remaining))

		if remaining == 0 {
			break
		}
		runtime.Gosched()
	}

	s.logger.Info("trace store cleared", "traces_removed", removed)
	debug.FreeOSMemory()
	return nil
}

func (s *Store) pushBackLocked(n *node) {
	if s.tail == nil {
		s.head = n
		s.tail = n
		return
	}
	n.prev = s.tail
	s.tail.next = n
	s.tail = n
}

func (s *Store) removeOldestLocked() string {
	n := s.head
	if n == nil {
		return ""
	}
	s.head = n.next
	if s.head != nil {
		s.head.prev = nil
	} else {
		s.tail = nil
	}
	n.next = nil
	delete(s.index, n.id)
	return n.id
}
