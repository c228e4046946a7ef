// Package graph maintains the topic relationship graph and decomposes it
// into independently renderable connected components.
package graph

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/SebastienCoste/KafkaMonitor-sub000/internal/config"
	"github.com/SebastienCoste/KafkaMonitor-sub000/internal/model"
)

// Edge is an undirected relationship between two topics, normalized so
// A sorts before B.
type Edge struct {
	A string `json:"a"`
	B string `json:"b"`
}

func newEdge(a, b string) Edge {
	if b < a {
		a, b = b, a
	}
	return Edge{A: a, B: b}
}

// Component is a maximal connected subgraph plus its member traces and an
// aggregate health score: the fraction of member traces whose p95 record
// age sits below the healthy threshold.
type Component struct {
	Topics      []string `json:"topics"`
	Edges       []Edge   `json:"edges"`
	TraceIDs    []string `json:"trace_ids"`
	TraceCount  int      `json:"trace_count"`
	HealthScore float64  `json:"health_score"`
}

// Graph holds the topic node set and edges from static configuration plus
// edges discovered from traces that visited both endpoints.
type Graph struct {
	mu    sync.RWMutex
	nodes map[string]struct{}
	edges map[Edge]struct{}
}

// New builds a graph from the configured topology. Additional nodes and
// edges are discovered from traffic via ObserveTopic and ObserveEdge.
func New(topo *config.Topology) *Graph {
	g := &Graph{
		nodes: make(map[string]struct{}),
		edges: make(map[Edge]struct{}),
	}
	if topo != nil {
		for _, topic := range topo.Topics {
			g.nodes[topic] = struct{}{}
		}
		for _, e := range topo.Edges {
			g.addEdgeLocked(e.From, e.To)
		}
	}
	return g
}

// Reset replaces the graph contents with a new topology. Used on
// environment switches.
func (g *Graph) Reset(topo *config.Topology) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.nodes = make(map[string]struct{})
	g.edges = make(map[Edge]struct{})
	if topo == nil {
		return
	}
	for _, topic := range topo.Topics {
		g.nodes[topic] = struct{}{}
	}
	for _, e := range topo.Edges {
		g.addEdgeLocked(e.From, e.To)
	}
}

// ObserveTopic adds a topic seen in live traffic.
func (g *Graph) ObserveTopic(topic string) {
	if topic == "" {
		return
	}
	g.mu.Lock()
	g.nodes[topic] = struct{}{}
	g.mu.Unlock()
}

// ObserveEdge records that a trace crossed from one topic to another.
func (g *Graph) ObserveEdge(from, to string) {
	if from == "" || to == "" || from == to {
		return
	}
	g.mu.Lock()
	g.addEdgeLocked(from, to)
	g.mu.Unlock()
}

func (g *Graph) addEdgeLocked(a, b string) {
	if a == "" || b == "" || a == b {
		return
	}
	g.nodes[a] = struct{}{}
	g.nodes[b] = struct{}{}
	g.edges[newEdge(a, b)] = struct{}{}
}

// Topics returns the sorted node set.
func (g *Graph) Topics() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	topics := make([]string, 0, len(g.nodes))
	for topic := range g.nodes {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}

// Decompose splits the graph into maximal connected components in a stable
// order (sorted by each component's first topic), scoring health against
// the member traces. An empty graph yields an empty slice, not an error.
func (g *Graph) Decompose(traces []model.TraceSnapshot, healthyAge time.Duration) []Component {
	g.mu.RLock()
	topics := make([]string, 0, len(g.nodes))
	for topic := range g.nodes {
		topics = append(topics, topic)
	}
	edges := make([]Edge, 0, len(g.edges))
	for e := range g.edges {
		edges = append(edges, e)
	}
	g.mu.RUnlock()

	if len(topics) == 0 {
		return []Component{}
	}
	sort.Strings(topics)

	uf := newUnionFind(topics)
	for _, e := range edges {
		uf.union(e.A, e.B)
	}

	// Group topics and edges by component root. Iterating the sorted
	// topic list keeps member ordering deterministic.
	members := make(map[string][]string)
	for _, topic := range topics {
		root := uf.find(topic)
		members[root] = append(members[root], topic)
	}
	edgesByRoot := make(map[string][]Edge)
	for _, e := range edges {
		root := uf.find(e.A)
		edgesByRoot[root] = append(edgesByRoot[root], e)
	}

	components := make([]Component, 0, len(members))
	for _, topicSet := range members {
		comp := Component{
			Topics:   topicSet,
			Edges:    edgesByRoot[uf.find(topicSet[0])],
			TraceIDs: []string{},
		}
		sort.Slice(comp.Edges, func(i, j int) bool {
			if comp.Edges[i].A != comp.Edges[j].A {
				return comp.Edges[i].A < comp.Edges[j].A
			}
			return comp.Edges[i].B < comp.Edges[j].B
		})
		scoreComponent(&comp, traces, healthyAge)
		components = append(components, comp)
	}

	sort.Slice(components, func(i, j int) bool {
		return components[i].Topics[0] < components[j].Topics[0]
	})
	return components
}

// scoreComponent attaches member traces and the health score.
func scoreComponent(comp *Component, traces []model.TraceSnapshot, healthyAge time.Duration) {
	inComponent := make(map[string]struct{}, len(comp.Topics))
	for _, topic := range comp.Topics {
		inComponent[topic] = struct{}{}
	}

	healthy := 0
	for _, snap := range traces {
		member := false
		for _, topic := range snap.Topics() {
			if _, ok := inComponent[topic]; ok {
				member = true
				break
			}
		}
		if !member {
			continue
		}
		comp.TraceIDs = append(comp.TraceIDs, snap.ID)
		if traceAgeP95(snap) < healthyAge {
			healthy++
		}
	}

	comp.TraceCount = len(comp.TraceIDs)
	if comp.TraceCount > 0 {
		comp.HealthScore = float64(healthy) / float64(comp.TraceCount)
	}
}

// traceAgeP95 is the nearest-rank p95 of the trace's record ages, measured
// against the trace's own last activity.
func traceAgeP95(snap model.TraceSnapshot) time.Duration {
	n := len(snap.Records)
	if n == 0 {
		return 0
	}
	ages := make([]time.Duration, 0, n)
	for _, rec := range snap.Records {
		age := snap.LastSeenAt.Sub(rec.ReceivedAt)
		if age < 0 {
			age = 0
		}
		ages = append(ages, age)
	}
	sort.Slice(ages, func(i, j int) bool { return ages[i] < ages[j] })

	idx := int(math.Ceil(0.95*float64(n))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return ages[idx]
}

// unionFind is a plain disjoint-set over topic names.
type unionFind struct {
	parent map[string]string
}

func newUnionFind(topics []string) *unionFind {
	parent := make(map[string]string, len(topics))
	for _, t := range topics {
		parent[t] = t
	}
	return &unionFind{parent: parent}
}

func (u *unionFind) find(t string) string {
	root := t
	for u.parent[root] != root {
		root = u.parent[root]
	}
	for u.parent[t] != root {
		u.parent[t], t = root, u.parent[t]
	}
	return root
}

func (u *unionFind) union(a, b string) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	// Smaller root name wins so component identity is deterministic.
	if rb < ra {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
}
