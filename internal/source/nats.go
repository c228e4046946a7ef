package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/SebastienCoste/KafkaMonitor-sub000/internal/model"
)

// NATSConfig holds NATS source configuration.
type NATSConfig struct {
	// URL is the NATS server URL (e.g., "nats://localhost:4222").
	URL string

	// Subject carries decoded record JSON payloads.
	Subject string

	// BufferSize bounds records held between polls.
	BufferSize int

	// Name identifies the connection.
	Name string
}

// NATSSource subscribes to a subject carrying decoded records and serves
// them through the blocking poll contract. Records that fail to decode are
// counted against the subject and dropped; a broken producer must not stall
// ingestion.
type NATSSource struct {
	conn    *nats.Conn
	sub     *nats.Subscription
	inner   *ChannelSource
	logger  *slog.Logger
	dropped atomic.Int64
}

// NewNATSSource connects and subscribes. The returned source is ready to
// poll immediately.
func NewNATSSource(cfg NATSConfig, logger *slog.Logger) (*NATSSource, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Name == "" {
		cfg.Name = "kafkamon-source"
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	s := &NATSSource{
		conn:   conn,
		inner:  NewChannelSource(cfg.BufferSize),
		logger: logger,
	}

	sub, err := conn.Subscribe(cfg.Subject, s.handle)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", cfg.Subject, err)
	}
	s.sub = sub

	return s, nil
}

func (s *NATSSource) handle(msg *nats.Msg) {
	var rec model.Record
	if err := json.Unmarshal(msg.Data, &rec); err != nil {
		s.dropped.Add(1)
		s.logger.Debug("dropping undecodable record",
			"subject", msg.Subject,
			"error", err,
		)
		return
	}
	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = time.Now()
	}
	if !s.inner.Publish(rec) {
		s.dropped.Add(1)
		s.logger.Warn("source buffer full, dropping record", "topic", rec.Topic)
	}
}

// Dropped returns how many records were discarded due to decode failures
// or a full buffer.
func (s *NATSSource) Dropped() int64 {
	return s.dropped.Load()
}

// Poll waits up to timeout for records.
func (s *NATSSource) Poll(ctx context.Context, timeout time.Duration) ([]model.Record, error) {
	return s.inner.Poll(ctx, timeout)
}

// Close unsubscribes and drains the connection.
func (s *NATSSource) Close() error {
	if s.sub != nil {
		_ = s.sub.Unsubscribe()
	}
	if err := s.conn.Drain(); err != nil {
		s.conn.Close()
		return fmt.Errorf("failed to drain NATS connection: %w", err)
	}
	return nil
}
