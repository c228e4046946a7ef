package publish

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Collector accumulates topic counts in-process and flushes to Redis
// periodically from a single background goroutine. The ingestion path only
// increments a map entry, so publishing never slows it down.
// Safe for concurrent use.
type Collector struct {
	client        *Client
	flushInterval time.Duration
	logger        *slog.Logger

	mu      sync.Mutex
	batches map[string]*Batch // topic -> batch

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCollector creates a collector and starts its flush loop.
func NewCollector(client *Client, flushInterval time.Duration, logger *slog.Logger) *Collector {
	if flushInterval <= 0 {
		flushInterval = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	c := &Collector{
		client:        client,
		flushInterval: flushInterval,
		logger:        logger,
		batches:       make(map[string]*Batch),
		ctx:           ctx,
		cancel:        cancel,
	}

	c.wg.Add(1)
	go c.flushLoop()

	return c
}

// Record accumulates one record observation for later flushing.
func (c *Collector) Record(topic string, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	batch, ok := c.batches[topic]
	if !ok {
		batch = &Batch{Topic: topic}
		c.batches[topic] = batch
	}
	batch.Add(1, at)
}

func (c *Collector) flushLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			// Final flush on shutdown
			c.flush()
			return
		case <-ticker.C:
			c.flush()
		}
	}
}

// flush writes all accumulated batches to Redis.
func (c *Collector) flush() {
	c.mu.Lock()
	// Swap out the batches map so we can release the lock quickly
	batches := c.batches
	c.batches = make(map[string]*Batch)
	c.mu.Unlock()

	if len(batches) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	flushed := 0
	totalRecords := int64(0)

	for _, batch := range batches {
		if err := c.client.FlushBatch(ctx, batch); err != nil {
			c.logger.Error("failed to flush topic stats batch",
				"topic", batch.Topic,
				"record_count", batch.RecordCount,
				"error", err,
			)
			// Re-add failed batch for retry (merge back)
			c.mu.Lock()
			if existing, ok := c.batches[batch.Topic]; ok {
				existing.Add(batch.RecordCount, batch.LastAt)
			} else {
				c.batches[batch.Topic] = batch
			}
			c.mu.Unlock()
		} else {
			flushed++
			totalRecords += batch.RecordCount
		}
	}

	if flushed > 0 {
		c.logger.Debug("flushed topic stats",
			"topics", flushed,
			"total_records", totalRecords,
		)
	}
}

// FlushNow forces an immediate flush of all accumulated batches.
func (c *Collector) FlushNow() {
	c.flush()
}

// Stop stops the collector and flushes any remaining batches.
func (c *Collector) Stop() {
	c.cancel()
	c.wg.Wait()
}
