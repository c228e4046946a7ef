package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Values map[string]int
}

func clonePayload(p payload) payload {
	out := payload{Values: make(map[string]int, len(p.Values))}
	for k, v := range p.Values {
		out.Values[k] = v
	}
	return out
}

func newTestCache(ttl time.Duration) *Cache[payload] {
	return New[payload]("test", ttl, 0.10, 50, clonePayload)
}

func TestCache_MissThenHit(t *testing.T) {
	c := newTestCache(time.Minute)
	fp := NewFingerprint(10, 100, []string{"orders"})
	computes := 0
	compute := func() (payload, error) {
		computes++
		return payload{Values: map[string]int{"orders": computes}}, nil
	}

	first, err := c.GetOrCompute(fp, compute)
	require.NoError(t, err)
	second, err := c.GetOrCompute(fp, compute)
	require.NoError(t, err)

	assert.Equal(t, 1, computes)
	assert.Equal(t, first, second)

	s := c.Stats()
	assert.Equal(t, int64(1), s.Hits)
	assert.Equal(t, int64(1), s.Misses)
	assert.InDelta(t, 0.5, s.HitRatio, 0.001)
}

func TestCache_TTLExpiry(t *testing.T) {
	c := newTestCache(5 * time.Second)
	clock := time.Now()
	c.now = func() time.Time { return clock }

	fp := NewFingerprint(10, 100, nil)
	computes := 0
	compute := func() (payload, error) {
		computes++
		return payload{Values: map[string]int{}}, nil
	}

	_, err := c.GetOrCompute(fp, compute)
	require.NoError(t, err)

	clock = clock.Add(4 * time.Second)
	_, err = c.GetOrCompute(fp, compute)
	require.NoError(t, err)
	assert.Equal(t, 1, computes)

	clock = clock.Add(2 * time.Second)
	_, err = c.GetOrCompute(fp, compute)
	require.NoError(t, err)
	assert.Equal(t, 2, computes)
}

func TestCache_DriftInvalidation(t *testing.T) {
	base := NewFingerprint(100, 1000, []string{"orders"})

	tests := []struct {
		name      string
		next      Fingerprint
		recompute bool
	}{
		{"identical", NewFingerprint(100, 1000, []string{"orders"}), false},
		{"small trace drift", NewFingerprint(109, 1000, []string{"orders"}), false},
		{"trace drift at threshold", NewFingerprint(110, 1000, []string{"orders"}), true},
		{"trace drift downward", NewFingerprint(90, 1000, []string{"orders"}), true},
		{"small message drift", NewFingerprint(100, 1049, []string{"orders"}), false},
		{"message drift at threshold", NewFingerprint(100, 1050, []string{"orders"}), true},
		{"topic set changed", NewFingerprint(100, 1000, []string{"orders", "payments"}), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCache(time.Minute)
			computes := 0
			compute := func() (payload, error) {
				computes++
				return payload{Values: map[string]int{}}, nil
			}

			_, err := c.GetOrCompute(base, compute)
			require.NoError(t, err)
			_, err = c.GetOrCompute(tt.next, compute)
			require.NoError(t, err)

			if tt.recompute {
				assert.Equal(t, 2, computes)
			} else {
				assert.Equal(t, 1, computes)
			}
		})
	}
}

func TestCache_ZeroTraceBaseline(t *testing.T) {
	c := newTestCache(time.Minute)
	computes := 0
	compute := func() (payload, error) {
		computes++
		return payload{Values: map[string]int{}}, nil
	}

	_, err := c.GetOrCompute(NewFingerprint(0, 0, nil), compute)
	require.NoError(t, err)
	// Any trace appearing on an empty baseline invalidates.
	_, err = c.GetOrCompute(NewFingerprint(1, 0, nil), compute)
	require.NoError(t, err)
	assert.Equal(t, 2, computes)
}

func TestCache_MarkStale(t *testing.T) {
	c := newTestCache(time.Minute)
	fp := NewFingerprint(10, 100, nil)
	computes := 0
	compute := func() (payload, error) {
		computes++
		return payload{Values: map[string]int{}}, nil
	}

	_, err := c.GetOrCompute(fp, compute)
	require.NoError(t, err)

	c.MarkStale()
	_, err = c.GetOrCompute(fp, compute)
	require.NoError(t, err)
	assert.Equal(t, 2, computes)

	// Recompute clears staleness.
	_, err = c.GetOrCompute(fp, compute)
	require.NoError(t, err)
	assert.Equal(t, 2, computes)
}

func TestCache_ErrorsPropagateUncached(t *testing.T) {
	c := newTestCache(time.Minute)
	fp := NewFingerprint(10, 100, nil)
	boom := errors.New("compute failed")

	_, err := c.GetOrCompute(fp, func() (payload, error) {
		return payload{}, boom
	})
	assert.ErrorIs(t, err, boom)

	// The failure is not cached; the next call computes fresh.
	got, err := c.GetOrCompute(fp, func() (payload, error) {
		return payload{Values: map[string]int{"ok": 1}}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, got.Values["ok"])
}

func TestCache_HitsReturnIndependentCopies(t *testing.T) {
	c := newTestCache(time.Minute)
	fp := NewFingerprint(10, 100, nil)
	compute := func() (payload, error) {
		return payload{Values: map[string]int{"orders": 7}}, nil
	}

	first, err := c.GetOrCompute(fp, compute)
	require.NoError(t, err)
	first.Values["orders"] = -1

	second, err := c.GetOrCompute(fp, compute)
	require.NoError(t, err)
	assert.Equal(t, 7, second.Values["orders"])
}

func TestCache_Invalidate(t *testing.T) {
	c := newTestCache(time.Minute)
	fp := NewFingerprint(10, 100, nil)
	computes := 0
	compute := func() (payload, error) {
		computes++
		return payload{Values: map[string]int{}}, nil
	}

	_, err := c.GetOrCompute(fp, compute)
	require.NoError(t, err)
	c.Invalidate()
	_, err = c.GetOrCompute(fp, compute)
	require.NoError(t, err)
	assert.Equal(t, 2, computes)
}
