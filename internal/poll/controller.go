// Package poll tunes the ingestion loop's poll timeout to observed
// message arrival. Quiet topics back the timeout off geometrically; any
// traffic snaps it straight back to the base.
package poll

import (
	"sync"
	"time"

	"github.com/SebastienCoste/KafkaMonitor-sub000/internal/metrics"
)

// windowSize bounds the rolling poll window used for rate reporting.
const windowSize = 100

// State names the controller's current mode.
type State string

const (
	StateIdle   State = "idle"
	StateActive State = "active"
)

type sample struct {
	at       time.Time
	messages int
}

// Snapshot reports the controller's current view for the stats surface.
type Snapshot struct {
	State             State         `json:"state"`
	CurrentTimeout    time.Duration `json:"current_timeout"`
	WindowPolls       int           `json:"window_polls"`
	WindowMessages    int64         `json:"window_messages"`
	MessagesPerSecond float64       `json:"messages_per_second"`
}

// Controller is the adaptive poll timeout state machine. It governs local
// poll cadence only; it carries no jitter or retry semantics.
type Controller struct {
	mu      sync.Mutex
	base    time.Duration
	max     time.Duration
	factor  float64
	current time.Duration
	state   State

	window [windowSize]sample
	next   int
	count  int
}

// NewController creates a controller starting at base in the active state.
func NewController(base, max time.Duration, factor float64) *Controller {
	if base <= 0 {
		base = time.Second
	}
	if max < base {
		max = base
	}
	if factor <= 1 {
		factor = 1.2
	}
	return &Controller{
		base:    base,
		max:     max,
		factor:  factor,
		current: base,
		state:   StateActive,
	}
}

// NextTimeout returns the timeout the next poll should use.
func (c *Controller) NextTimeout() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Observe records a poll result and adjusts the timeout: an empty poll
// multiplies the timeout by the backoff factor up to the maximum, while
// any poll with messages resets it to the base immediately.
func (c *Controller) Observe(messageCount int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.window[c.next] = sample{at: time.Now(), messages: messageCount}
	c.next = (c.next + 1) % windowSize
	if c.count < windowSize {
		c.count++
	}

	if messageCount > 0 {
		c.state = StateActive
		c.current = c.base
		metrics.PollsTotal.WithLabelValues("messages").Inc()
	} else {
		c.state = StateIdle
		backed := time.Duration(float64(c.current) * c.factor)
		if backed > c.max {
			backed = c.max
		}
		c.current = backed
		metrics.PollsTotal.WithLabelValues("empty").Inc()
	}
	metrics.PollTimeout.Set(c.current.Seconds())
}

// Snapshot returns the current state and the observed message rate over
// the rolling window.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		State:          c.state,
		CurrentTimeout: c.current,
		WindowPolls:    c.count,
	}
	if c.count == 0 {
		return snap
	}

	oldest := time.Now()
	for i := 0; i < c.count; i++ {
		s := c.window[i]
		snap.WindowMessages += int64(s.messages)
		if s.at.Before(oldest) {
			oldest = s.at
		}
	}
	if elapsed := time.Since(oldest).Seconds(); elapsed > 0 {
		snap.MessagesPerSecond = float64(snap.WindowMessages) / elapsed
	}
	return snap
}
