package store

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// getCounterVecValue reads the current value of a CounterVec for the given labels.
func getCounterVecValue(cv *prometheus.CounterVec, labels ...string) float64 {
	c, err := cv.GetMetricWithLabelValues(labels...)
	if err != nil {
		return 0
	}
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

// newInstrumentedTestStore creates an instrumented memory store with the given group and
// registers a cleanup that calls Close() at the end of the test.
func newInstrumentedTestStore(t *testing.T, group string) Store {
	t.Helper()
	s, err := New("memory", ProviderConfig{Size: 10, Group: group})
	if err != nil {
		t.Fatalf("New instrumented store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// useIsolatedRegistry returns a fresh registry that only gathers cache_entries.
func useIsolatedRegistry(t *testing.T) *prometheus.Registry {
	t.Helper()
	reg := prometheus.NewRegistry()
	reg.MustRegister(liveKeys)
	return reg
}

// gatherEntries returns the cache_entries gauge for group, or -1 when absent.
func gatherEntries(t *testing.T, reg *prometheus.Registry, group string) float64 {
	t.Helper()
	mfs, _ := reg.Gather()
	for _, mf := range mfs {
		if mf.GetName() != "cache_entries" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "cache" && lp.GetValue() == group {
					return m.GetGauge().GetValue()
				}
			}
		}
	}
	return -1
}

func TestInstrumentedStore_Hits(t *testing.T) {
	ctx := context.Background()
	s := newInstrumentedTestStore(t, "test-hits")

	_ = s.Set(ctx, "k", []byte("v"))
	before := getCounterVecValue(HitsTotal, "test-hits")

	_, _, _ = s.Get(ctx, "k") // hit

	after := getCounterVecValue(HitsTotal, "test-hits")
	if after != before+1 {
		t.Errorf("Expected hits to increment by 1, got diff %.0f", after-before)
	}
}

func TestInstrumentedStore_Misses(t *testing.T) {
	ctx := context.Background()
	s := newInstrumentedTestStore(t, "test-misses")

	before := getCounterVecValue(MissesTotal, "test-misses")

	_, _, _ = s.Get(ctx, "absent") // miss

	after := getCounterVecValue(MissesTotal, "test-misses")
	if after != before+1 {
		t.Errorf("Expected misses to increment by 1, got diff %.0f", after-before)
	}
}

func TestInstrumentedStore_Evictions(t *testing.T) {
	ctx := context.Background()
	evicted := make([]string, 0)
	onEvict := func(key string) {
		evicted = append(evicted, key)
	}

	// Size=2 so the third Set triggers an eviction.
	s, err := New("memory", ProviderConfig{Size: 2, Group: "test-evict", OnEvict: onEvict})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	before := getCounterVecValue(EvictionsTotal, "test-evict")

	_ = s.Set(ctx, "a", []byte("1"))
	_ = s.Set(ctx, "b", []byte("2"))
	_ = s.Set(ctx, "c", []byte("3")) // evicts "a"

	after := getCounterVecValue(EvictionsTotal, "test-evict")
	if after != before+1 {
		t.Errorf("Expected evictions to increment by 1, got diff %.0f", after-before)
	}

	// Original OnEvict callback must still fire.
	if len(evicted) != 1 || evicted[0] != "a" {
		t.Errorf("Expected original OnEvict to fire for key 'a', got %v", evicted)
	}
}

func TestInstrumentedStore_Errors(t *testing.T) {
	ctx := context.Background()
	useIsolatedRegistry(t)

	mr := miniredis.RunT(t)
	s, err := New("redis", ProviderConfig{RedisAddress: mr.Addr(), Group: "test-errors"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	mr.SetError("ERR simulated failure")
	defer mr.SetError("")

	beforeGet := getCounterVecValue(ErrorsTotal, "test-errors", "get")
	beforeSet := getCounterVecValue(ErrorsTotal, "test-errors", "set")
	beforeMiss := getCounterVecValue(MissesTotal, "test-errors")

	if _, _, err := s.Get(ctx, "k"); err == nil {
		t.Fatal("Expected Get to fail")
	}
	if err := s.Set(ctx, "k", []byte("v")); err == nil {
		t.Fatal("Expected Set to fail")
	}

	if d := getCounterVecValue(ErrorsTotal, "test-errors", "get") - beforeGet; d != 1 {
		t.Errorf("Expected one get error, got diff %.0f", d)
	}
	if d := getCounterVecValue(ErrorsTotal, "test-errors", "set") - beforeSet; d != 1 {
		t.Errorf("Expected one set error, got diff %.0f", d)
	}
	if d := getCounterVecValue(MissesTotal, "test-errors") - beforeMiss; d != 0 {
		t.Errorf("A failed Get must not count as a miss, got diff %.0f", d)
	}
}

func TestInstrumentedStore_EntriesLazy(t *testing.T) {
	ctx := context.Background()
	reg := useIsolatedRegistry(t)

	s := newInstrumentedTestStore(t, "test-entries")

	if v := gatherEntries(t, reg, "test-entries"); v != 0 {
		t.Fatalf("Expected 0 entries before Set, got %.0f", v)
	}

	_ = s.Set(ctx, "x", []byte("1"))
	_ = s.Set(ctx, "y", []byte("2"))

	// Keys() is queried at scrape time, so the gauge reflects the real count.
	if v := gatherEntries(t, reg, "test-entries"); v != 2 {
		t.Errorf("Expected 2 entries after two Sets, got %.0f", v)
	}

	_ = s.Delete(ctx, "x")
	if v := gatherEntries(t, reg, "test-entries"); v != 1 {
		t.Errorf("Expected 1 entry after Delete, got %.0f", v)
	}
}

func TestInstrumentedStore_Close_UnregistersEntries(t *testing.T) {
	s, err := New("memory", ProviderConfig{Size: 10, Group: "test-close"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if !liveKeys.has("test-close") {
		t.Fatal("Expected entries to be reported after New()")
	}

	_ = s.Close()

	if liveKeys.has("test-close") {
		t.Fatal("Expected entries to stop being reported after Close()")
	}
}
