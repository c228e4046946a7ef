// Package stats computes per-topic statistics from current trace store
// contents: age percentiles, throughput rates, and slow-trace rankings.
package stats

import (
	"math"
	"sort"
	"time"

	"github.com/SebastienCoste/KafkaMonitor-sub000/internal/model"
	"github.com/SebastienCoste/KafkaMonitor-sub000/internal/trace"
)

// RateSource provides the raw topic-level counters kept by the ingestion
// path, covering records that never joined a trace.
type RateSource interface {
	Activity() map[string]trace.TopicActivity
	RollingCount(topic string, now time.Time) int64
}

// Engine computes TopicStats snapshots. Every Compute walks the store
// once; results are ephemeral and meant to be memoized by the stats cache.
type Engine struct {
	store *trace.Store
	rates RateSource
	topN  int
	now   func() time.Time
}

// NewEngine creates an engine reading from store and rates. topN bounds the
// slowest-trace ranking per topic.
func NewEngine(store *trace.Store, rates RateSource, topN int) *Engine {
	if topN <= 0 {
		topN = 5
	}
	return &Engine{
		store: store,
		rates: rates,
		topN:  topN,
		now:   time.Now,
	}
}

// topicAccum gathers per-topic intermediate values during the store walk.
type topicAccum struct {
	ages   []time.Duration
	traces int64
	slow   []model.SlowTrace
}

// Compute returns statistics for the monitored topics. When monitored is
// empty, every topic observed so far is included. Topics with no messages
// yield a zeroed struct, never an error.
func (e *Engine) Compute(monitored []string) map[string]model.TopicStats {
	now := e.now()
	activity := e.rates.Activity()
	accum := make(map[string]*topicAccum)

	for _, snap := range e.store.All() {
		total := snap.Duration()
		seen := make(map[string]struct{}, 4)
		for _, rec := range snap.Records {
			acc, ok := accum[rec.Topic]
			if !ok {
				acc = &topicAccum{}
				accum[rec.Topic] = acc
			}

			// Age is relative to the owning trace's timeline, not
			// wall-clock now, so snapshots are stable.
			age := snap.LastSeenAt.Sub(rec.ReceivedAt)
			if age < 0 {
				age = 0
			}
			acc.ages = append(acc.ages, age)

			if _, dup := seen[rec.Topic]; !dup {
				seen[rec.Topic] = struct{}{}
				acc.traces++
				acc.slow = append(acc.slow, model.SlowTrace{
					TraceID:       snap.ID,
					TimeToTopic:   rec.ReceivedAt.Sub(snap.FirstSeenAt),
					TotalDuration: total,
				})
			}
		}
	}

	topics := monitored
	if len(topics) == 0 {
		topicSet := make(map[string]struct{}, len(activity))
		for topic := range activity {
			topicSet[topic] = struct{}{}
		}
		for topic := range accum {
			topicSet[topic] = struct{}{}
		}
		topics = make([]string, 0, len(topicSet))
		for topic := range topicSet {
			topics = append(topics, topic)
		}
		sort.Strings(topics)
	}

	out := make(map[string]model.TopicStats, len(topics))
	for _, topic := range topics {
		out[topic] = e.topicStats(topic, accum[topic], activity[topic], now)
	}
	return out
}

func (e *Engine) topicStats(topic string, acc *topicAccum, act trace.TopicActivity, now time.Time) model.TopicStats {
	ts := model.TopicStats{
		MessageCount:  act.Count,
		SlowestTraces: []model.SlowTrace{},
	}
	if act.Count > 0 {
		ts.MessagesPerMinuteTotal = perMinuteRate(act)
		ts.MessagesPerMinuteRolling = e.rates.RollingCount(topic, now)
	}
	if acc == nil {
		return ts
	}

	ts.TraceCount = acc.traces

	sort.Slice(acc.ages, func(i, j int) bool { return acc.ages[i] < acc.ages[j] })
	ts.AgeP10Ms = percentile(acc.ages, 10).Milliseconds()
	ts.AgeP50Ms = percentile(acc.ages, 50).Milliseconds()
	ts.AgeP95Ms = percentile(acc.ages, 95).Milliseconds()

	sort.Slice(acc.slow, func(i, j int) bool {
		if acc.slow[i].TotalDuration != acc.slow[j].TotalDuration {
			return acc.slow[i].TotalDuration > acc.slow[j].TotalDuration
		}
		return acc.slow[i].TraceID < acc.slow[j].TraceID
	})
	if len(acc.slow) > e.topN {
		acc.slow = acc.slow[:e.topN]
	}
	ts.SlowestTraces = acc.slow

	return ts
}

// percentile applies the nearest-rank rule over sorted ages:
// index clamp(ceil(k/100*n)-1, 0, n-1). An empty input yields zero.
func percentile(sorted []time.Duration, k int) time.Duration {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	idx := int(math.Ceil(float64(k)/100*float64(n))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return sorted[idx]
}

// perMinuteRate is the lifetime average: message count over the observed
// span of the topic, with the span floored at one minute.
func perMinuteRate(act trace.TopicActivity) float64 {
	spanMinutes := act.LastSeen.Sub(act.FirstSeen).Minutes()
	if spanMinutes < 1 {
		spanMinutes = 1
	}
	return float64(act.Count) / spanMinutes
}
