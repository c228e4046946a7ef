// Package source delivers already-decoded records to the ingestion loop.
// Wire-level consumption and schema decoding happen upstream; this package
// only buffers decoded records and serves the blocking poll contract.
package source

import (
	"context"
	"time"

	"github.com/SebastienCoste/KafkaMonitor-sub000/internal/model"
)

// maxBatch bounds how many buffered records a single poll drains.
const maxBatch = 256

// Source is a blocking poll over decoded records. An empty result after
// the timeout is normal quiet traffic, not an error.
type Source interface {
	Poll(ctx context.Context, timeout time.Duration) ([]model.Record, error)
	Close() error
}

// ChannelSource is an in-memory Source fed through Publish. It backs tests
// and local seeding, and is the subscription end of the publisher-task
// pattern: producers push into the channel, the ingestion loop polls it.
type ChannelSource struct {
	ch chan model.Record
}

// NewChannelSource creates a channel source with the given buffer size.
func NewChannelSource(buffer int) *ChannelSource {
	if buffer <= 0 {
		buffer = 1024
	}
	return &ChannelSource{ch: make(chan model.Record, buffer)}
}

// Publish enqueues a record, dropping it if the buffer is full.
func (s *ChannelSource) Publish(rec model.Record) bool {
	select {
	case s.ch <- rec:
		return true
	default:
		return false
	}
}

// Poll waits up to timeout for a first record, then drains whatever else
// is immediately available.
func (s *ChannelSource) Poll(ctx context.Context, timeout time.Duration) ([]model.Record, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var records []model.Record
	select {
	case rec := <-s.ch:
		records = append(records, rec)
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	for len(records) < maxBatch {
		select {
		case rec := <-s.ch:
			records = append(records, rec)
		default:
			return records, nil
		}
	}
	return records, nil
}

// Close is a no-op for channel sources.
func (s *ChannelSource) Close() error { return nil }
