package model

import "time"

// SlowTrace identifies one of the slowest traces touching a topic.
type SlowTrace struct {
	TraceID       string        `json:"trace_id"`
	TimeToTopic   time.Duration `json:"time_to_topic"`
	TotalDuration time.Duration `json:"total_duration"`
}

// TopicStats holds the per-topic figures computed from current store contents.
// Record age is measured against the owning trace's last activity, not
// wall-clock now, so a recomputation over unchanged input yields the same
// percentiles.
type TopicStats struct {
	MessageCount             int64       `json:"message_count"`
	TraceCount               int64       `json:"trace_count"`
	AgeP10Ms                 int64       `json:"age_p10_ms"`
	AgeP50Ms                 int64       `json:"age_p50_ms"`
	AgeP95Ms                 int64       `json:"age_p95_ms"`
	MessagesPerMinuteTotal   float64     `json:"messages_per_minute_total"`
	MessagesPerMinuteRolling int64       `json:"messages_per_minute_rolling"`
	SlowestTraces            []SlowTrace `json:"slowest_traces"`
}

// Totals aggregates figures across all topics.
type Totals struct {
	Records        int64 `json:"records"`
	Uncorrelated   int64 `json:"uncorrelated"`
	Traces         int64 `json:"traces"`
	TopicsObserved int64 `json:"topics_observed"`
}

// StatisticsResult is the full statistics payload served to readers.
type StatisticsResult struct {
	Topics      map[string]TopicStats `json:"topics"`
	Totals      Totals                `json:"totals"`
	GeneratedAt time.Time             `json:"generated_at"`
}

// Clone returns a deep copy of the result. The cache stores and serves
// clones so caller mutation cannot corrupt cached state.
func (r *StatisticsResult) Clone() *StatisticsResult {
	if r == nil {
		return nil
	}
	out := &StatisticsResult{
		Topics:      make(map[string]TopicStats, len(r.Topics)),
		Totals:      r.Totals,
		GeneratedAt: r.GeneratedAt,
	}
	for topic, ts := range r.Topics {
		if ts.SlowestTraces != nil {
			ts.SlowestTraces = append([]SlowTrace(nil), ts.SlowestTraces...)
		}
		out.Topics[topic] = ts
	}
	return out
}
