package model

import "time"

// TraceSnapshot is a copy-on-read view of a trace held by the store.
// Records appear in receipt order. Snapshots are fully detached from
// store internals, so callers may keep or mutate them freely.
type TraceSnapshot struct {
	ID          string    `json:"id"`
	Records     []Record  `json:"records"`
	FirstSeenAt time.Time `json:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
}

// Duration is the total wall time the trace spans.
func (s TraceSnapshot) Duration() time.Duration {
	return s.LastSeenAt.Sub(s.FirstSeenAt)
}

// Topics returns the distinct topics the trace visited, in first-visit order.
func (s TraceSnapshot) Topics() []string {
	seen := make(map[string]struct{}, len(s.Records))
	var topics []string
	for _, rec := range s.Records {
		if _, ok := seen[rec.Topic]; ok {
			continue
		}
		seen[rec.Topic] = struct{}{}
		topics = append(topics, rec.Topic)
	}
	return topics
}
