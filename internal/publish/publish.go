// Package publish pushes live per-topic figures to Redis so external
// dashboards can read them without querying the monitor. This is an
// observability side channel only; trace state itself never leaves memory.
//
// Redis Key Structure:
//
//	kafkamon:topics                       - Set of topics seen
//	kafkamon:topic:{topic}                - Hash with total_records, last_received_at
//	kafkamon:minute:{topic}:{YYYYMMDDHHMM} - Record count for that minute (expires 2h)
package publish

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// TopicSnapshot is the read-side view of one topic's published figures.
type TopicSnapshot struct {
	Topic          string     `json:"topic"`
	TotalRecords   int64      `json:"total_records"`
	LastReceivedAt *time.Time `json:"last_received_at,omitempty"`
}

// Client writes and reads published topic figures.
type Client struct {
	redis      *redis.Client
	instanceID string
}

// NewClient connects to Redis. instanceID should be unique per monitor
// instance (hostname, pod name, UUID).
func NewClient(redisURL, instanceID string) (*Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &Client{redis: client, instanceID: instanceID}, nil
}

// NewClientFromRedis creates a client from an existing Redis connection.
func NewClientFromRedis(client *redis.Client, instanceID string) *Client {
	return &Client{redis: client, instanceID: instanceID}
}

// Batch accumulates per-topic counts between flushes.
type Batch struct {
	Topic       string
	RecordCount int64
	LastAt      time.Time
}

// Add folds a record observation into the batch.
func (b *Batch) Add(count int64, at time.Time) {
	b.RecordCount += count
	if at.After(b.LastAt) {
		b.LastAt = at
	}
}

// FlushBatch writes an accumulated batch to Redis.
func (c *Client) FlushBatch(ctx context.Context, batch *Batch) error {
	if batch.RecordCount == 0 {
		return nil
	}

	minuteKey := batch.LastAt.Format("200601021504")

	pipe := c.redis.Pipeline()

	pipe.SAdd(ctx, "kafkamon:topics", batch.Topic)

	topicKey := fmt.Sprintf("kafkamon:topic:%s", batch.Topic)
	pipe.HSet(ctx, topicKey, "last_received_at", strconv.FormatInt(batch.LastAt.Unix(), 10))
	pipe.HIncrBy(ctx, topicKey, "total_records", batch.RecordCount)

	minKey := fmt.Sprintf("kafkamon:minute:%s:%s", batch.Topic, minuteKey)
	pipe.IncrBy(ctx, minKey, batch.RecordCount)
	pipe.Expire(ctx, minKey, 2*time.Hour)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to flush batch for topic %s: %w", batch.Topic, err)
	}
	return nil
}

// TopicSnapshot reads the published figures for one topic.
func (c *Client) TopicSnapshot(ctx context.Context, topic string) (*TopicSnapshot, error) {
	topicKey := fmt.Sprintf("kafkamon:topic:%s", topic)
	values, err := c.redis.HGetAll(ctx, topicKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read topic %s: %w", topic, err)
	}

	snap := &TopicSnapshot{Topic: topic}
	if totalStr, ok := values["total_records"]; ok {
		snap.TotalRecords, _ = strconv.ParseInt(totalStr, 10, 64)
	}
	if lastStr, ok := values["last_received_at"]; ok {
		if unix, err := strconv.ParseInt(lastStr, 10, 64); err == nil {
			t := time.Unix(unix, 0)
			snap.LastReceivedAt = &t
		}
	}
	return snap, nil
}

// Topics lists every topic that has published figures.
func (c *Client) Topics(ctx context.Context) ([]string, error) {
	topics, err := c.redis.SMembers(ctx, "kafkamon:topics").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list topics: %w", err)
	}
	return topics, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.redis.Close()
}
