package stats

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SebastienCoste/KafkaMonitor-sub000/internal/model"
	"github.com/SebastienCoste/KafkaMonitor-sub000/internal/trace"
)

// fakeRates implements RateSource with canned values.
type fakeRates struct {
	activity map[string]trace.TopicActivity
	rolling  map[string]int64
}

func (f *fakeRates) Activity() map[string]trace.TopicActivity { return f.activity }
func (f *fakeRates) RollingCount(topic string, _ time.Time) int64 {
	return f.rolling[topic]
}

func ingest(t *testing.T, store *trace.Store, a *trace.Assembler, topic, id string, at time.Time) {
	t.Helper()
	a.Ingest(model.Record{
		Topic:      topic,
		Headers:    map[string]string{"correlation-id": id},
		ReceivedAt: at,
	})
	_, ok := store.Get(id)
	require.True(t, ok)
}

func TestPercentile(t *testing.T) {
	ms := func(vals ...int) []time.Duration {
		out := make([]time.Duration, len(vals))
		for i, v := range vals {
			out[i] = time.Duration(v) * time.Millisecond
		}
		return out
	}

	tests := []struct {
		name   string
		sorted []time.Duration
		k      int
		want   time.Duration
	}{
		{"empty", nil, 95, 0},
		{"single p10", ms(100), 10, 100 * time.Millisecond},
		{"single p95", ms(100), 95, 100 * time.Millisecond},
		{"ten values p50", ms(1, 2, 3, 4, 5, 6, 7, 8, 9, 10), 50, 5 * time.Millisecond},
		{"ten values p95", ms(1, 2, 3, 4, 5, 6, 7, 8, 9, 10), 95, 10 * time.Millisecond},
		{"ten values p10", ms(1, 2, 3, 4, 5, 6, 7, 8, 9, 10), 10, 1 * time.Millisecond},
		{"four values p95", ms(10, 20, 30, 40), 95, 40 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, percentile(tt.sorted, tt.k))
		})
	}
}

func TestEngine_PercentilesOrdered(t *testing.T) {
	store := trace.NewStore(100, nil)
	a := trace.NewAssembler(store, "correlation-id", nil)
	base := time.Now()

	// Many traces with spread-out inter-record gaps on the same topic.
	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("t%02d", i)
		ingest(t, store, a, "orders", id, base)
		ingest(t, store, a, "orders", id, base.Add(time.Duration(i*7)*time.Millisecond))
	}

	e := NewEngine(store, a, 5)
	out := e.Compute(nil)
	require.Contains(t, out, "orders")

	ts := out["orders"]
	assert.LessOrEqual(t, ts.AgeP10Ms, ts.AgeP50Ms)
	assert.LessOrEqual(t, ts.AgeP50Ms, ts.AgeP95Ms)
	assert.Equal(t, int64(20), ts.TraceCount)
	assert.Equal(t, int64(40), ts.MessageCount)
}

func TestEngine_ZeroTopicYieldsZeroedStruct(t *testing.T) {
	store := trace.NewStore(10, nil)
	rates := &fakeRates{activity: map[string]trace.TopicActivity{}}
	e := NewEngine(store, rates, 5)

	out := e.Compute([]string{"never-seen"})
	require.Contains(t, out, "never-seen")

	ts := out["never-seen"]
	assert.Zero(t, ts.MessageCount)
	assert.Zero(t, ts.TraceCount)
	assert.Zero(t, ts.AgeP95Ms)
	assert.Zero(t, ts.MessagesPerMinuteTotal)
	assert.Zero(t, ts.MessagesPerMinuteRolling)
	require.NotNil(t, ts.SlowestTraces)
	assert.Empty(t, ts.SlowestTraces)
}

func TestEngine_SlowestTracesRankedAndCapped(t *testing.T) {
	store := trace.NewStore(100, nil)
	a := trace.NewAssembler(store, "correlation-id", nil)
	base := time.Now()

	// Trace durations 10ms, 20ms, ... 80ms, all touching "orders".
	for i := 1; i <= 8; i++ {
		id := fmt.Sprintf("t%d", i)
		ingest(t, store, a, "orders", id, base)
		ingest(t, store, a, "done", id, base.Add(time.Duration(i*10)*time.Millisecond))
	}

	e := NewEngine(store, a, 3)
	out := e.Compute([]string{"orders"})
	slow := out["orders"].SlowestTraces

	require.Len(t, slow, 3)
	assert.Equal(t, "t8", slow[0].TraceID)
	assert.Equal(t, "t7", slow[1].TraceID)
	assert.Equal(t, "t6", slow[2].TraceID)
	assert.Equal(t, 80*time.Millisecond, slow[0].TotalDuration)
	// All entered "orders" at trace start.
	assert.Zero(t, slow[0].TimeToTopic)
}

func TestEngine_SlowestTiebreakByTraceID(t *testing.T) {
	store := trace.NewStore(100, nil)
	a := trace.NewAssembler(store, "correlation-id", nil)
	base := time.Now()

	for _, id := range []string{"zeta", "alpha", "mid"} {
		ingest(t, store, a, "orders", id, base)
		ingest(t, store, a, "done", id, base.Add(50*time.Millisecond))
	}

	e := NewEngine(store, a, 5)
	slow := e.Compute([]string{"orders"})["orders"].SlowestTraces
	require.Len(t, slow, 3)
	assert.Equal(t, "alpha", slow[0].TraceID)
	assert.Equal(t, "mid", slow[1].TraceID)
	assert.Equal(t, "zeta", slow[2].TraceID)
}

func TestEngine_TraceCountedOncePerTopic(t *testing.T) {
	store := trace.NewStore(10, nil)
	a := trace.NewAssembler(store, "correlation-id", nil)
	base := time.Now()

	// One trace revisits "orders" three times.
	ingest(t, store, a, "orders", "t1", base)
	ingest(t, store, a, "orders", "t1", base.Add(time.Millisecond))
	ingest(t, store, a, "orders", "t1", base.Add(2*time.Millisecond))

	e := NewEngine(store, a, 5)
	ts := e.Compute([]string{"orders"})["orders"]
	assert.Equal(t, int64(1), ts.TraceCount)
	assert.Equal(t, int64(3), ts.MessageCount)
	require.Len(t, ts.SlowestTraces, 1)
}

func TestEngine_RatesFromRawCounters(t *testing.T) {
	store := trace.NewStore(10, nil)
	now := time.Now()
	rates := &fakeRates{
		activity: map[string]trace.TopicActivity{
			"orders": {
				Count:     120,
				FirstSeen: now.Add(-2 * time.Minute),
				LastSeen:  now,
			},
			"burst": {
				// Whole lifetime inside one minute: span floors at 1m.
				Count:     30,
				FirstSeen: now.Add(-10 * time.Second),
				LastSeen:  now,
			},
		},
		rolling: map[string]int64{"orders": 45},
	}

	e := NewEngine(store, rates, 5)
	out := e.Compute(nil)

	assert.InDelta(t, 60.0, out["orders"].MessagesPerMinuteTotal, 0.01)
	assert.Equal(t, int64(45), out["orders"].MessagesPerMinuteRolling)
	assert.InDelta(t, 30.0, out["burst"].MessagesPerMinuteTotal, 0.01)
}

func TestEngine_AgeFlooredAtZero(t *testing.T) {
	store := trace.NewStore(10, nil)
	a := trace.NewAssembler(store, "correlation-id", nil)
	base := time.Now()

	// Out-of-order receipt: second record is older than the first.
	ingest(t, store, a, "orders", "t1", base)
	ingest(t, store, a, "orders", "t1", base.Add(-10*time.Millisecond))

	e := NewEngine(store, a, 5)
	ts := e.Compute([]string{"orders"})["orders"]
	assert.GreaterOrEqual(t, ts.AgeP10Ms, int64(0))
	assert.GreaterOrEqual(t, ts.AgeP95Ms, int64(0))
}
