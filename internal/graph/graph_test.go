package graph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SebastienCoste/KafkaMonitor-sub000/internal/config"
	"github.com/SebastienCoste/KafkaMonitor-sub000/internal/model"
)

func snapshot(id string, topics []string, gaps ...time.Duration) model.TraceSnapshot {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	snap := model.TraceSnapshot{ID: id, FirstSeenAt: base, LastSeenAt: base}
	at := base
	for i, topic := range topics {
		if i > 0 && i-1 < len(gaps) {
			at = at.Add(gaps[i-1])
		}
		snap.Records = append(snap.Records, model.Record{Topic: topic, ReceivedAt: at})
		if at.After(snap.LastSeenAt) {
			snap.LastSeenAt = at
		}
	}
	return snap
}

func TestGraph_EmptyDecompose(t *testing.T) {
	g := New(nil)
	comps := g.Decompose(nil, 30*time.Second)
	require.NotNil(t, comps)
	assert.Empty(t, comps)
}

func TestGraph_SingletonComponents(t *testing.T) {
	g := New(&config.Topology{Topics: []string{"orders", "audit"}})

	comps := g.Decompose(nil, 30*time.Second)
	require.Len(t, comps, 2)
	assert.Equal(t, []string{"audit"}, comps[0].Topics)
	assert.Equal(t, []string{"orders"}, comps[1].Topics)
	assert.Empty(t, comps[0].Edges)
	assert.Zero(t, comps[0].TraceCount)
	assert.Zero(t, comps[0].HealthScore)
}

func TestGraph_ObservedEdgesMergeComponents(t *testing.T) {
	g := New(&config.Topology{Topics: []string{"orders", "payments", "audit"}})

	g.ObserveEdge("orders", "payments")

	comps := g.Decompose(nil, 30*time.Second)
	require.Len(t, comps, 2)
	assert.Equal(t, []string{"audit"}, comps[0].Topics)
	assert.Equal(t, []string{"orders", "payments"}, comps[1].Topics)
	require.Len(t, comps[1].Edges, 1)
	assert.Equal(t, Edge{A: "orders", B: "payments"}, comps[1].Edges[0])
}

func TestGraph_EdgeNormalization(t *testing.T) {
	g := New(nil)
	g.ObserveEdge("zeta", "alpha")
	g.ObserveEdge("alpha", "zeta")

	comps := g.Decompose(nil, 30*time.Second)
	require.Len(t, comps, 1)
	require.Len(t, comps[0].Edges, 1)
	assert.Equal(t, Edge{A: "alpha", B: "zeta"}, comps[0].Edges[0])
}

func TestGraph_SelfAndEmptyEdgesIgnored(t *testing.T) {
	g := New(nil)
	g.ObserveEdge("orders", "orders")
	g.ObserveEdge("", "orders")
	g.ObserveTopic("")

	comps := g.Decompose(nil, 30*time.Second)
	assert.Empty(t, comps)
}

func TestGraph_DeterministicOrdering(t *testing.T) {
	build := func() []Component {
		g := New(nil)
		g.ObserveEdge("delta", "echo")
		g.ObserveEdge("bravo", "charlie")
		g.ObserveTopic("alpha")
		return g.Decompose(nil, 30*time.Second)
	}

	first := build()
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, build())
	}
	require.Len(t, first, 3)
	assert.Equal(t, "alpha", first[0].Topics[0])
	assert.Equal(t, "bravo", first[1].Topics[0])
	assert.Equal(t, "delta", first[2].Topics[0])
}

func TestGraph_HealthScore(t *testing.T) {
	g := New(nil)
	g.ObserveEdge("orders", "payments")
	g.ObserveTopic("audit")

	traces := []model.TraceSnapshot{
		// p95 age 5ms: healthy against a 30s threshold.
		snapshot("fast", []string{"orders", "payments"}, 5*time.Millisecond),
		// p95 age 2m: unhealthy.
		snapshot("slow", []string{"orders", "payments"}, 2*time.Minute),
		// Touches no component topic: not a member.
		snapshot("elsewhere", []string{"unrelated"}),
	}

	comps := g.Decompose(traces, 30*time.Second)
	require.Len(t, comps, 2)

	audit := comps[0]
	assert.Equal(t, []string{"audit"}, audit.Topics)
	assert.Zero(t, audit.TraceCount)

	flow := comps[1]
	assert.Equal(t, []string{"orders", "payments"}, flow.Topics)
	assert.Equal(t, 2, flow.TraceCount)
	assert.ElementsMatch(t, []string{"fast", "slow"}, flow.TraceIDs)
	assert.InDelta(t, 0.5, flow.HealthScore, 0.001)
}

func TestGraph_ResetReplacesTopology(t *testing.T) {
	g := New(&config.Topology{Topics: []string{"old-a", "old-b"}})
	g.ObserveEdge("old-a", "old-b")

	g.Reset(&config.Topology{
		Topics: []string{"new-a", "new-b"},
		Edges:  []config.Edge{{From: "new-a", To: "new-b"}},
	})

	assert.Equal(t, []string{"new-a", "new-b"}, g.Topics())
	comps := g.Decompose(nil, 30*time.Second)
	require.Len(t, comps, 1)
	assert.Equal(t, []string{"new-a", "new-b"}, comps[0].Topics)
}

func TestUnionFind_SmallerRootWins(t *testing.T) {
	uf := newUnionFind([]string{"c", "a", "b"})
	uf.union("c", "b")
	uf.union("b", "a")

	assert.Equal(t, "a", uf.find("a"))
	assert.Equal(t, "a", uf.find("b"))
	assert.Equal(t, "a", uf.find("c"))
}
