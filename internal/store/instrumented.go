package store

import (
	"context"
	"time"
)

// scrapeTimeout bounds the key listing performed when Prometheus scrapes
// the entries gauge.
const scrapeTimeout = 2 * time.Second

// instrumentedStore wraps a Store and automatically records Prometheus metrics
// for hits, misses, evictions, and current entry count under the given group label.
// All metric tracking lives in the store layer so callers do not need to manage it.
type instrumentedStore struct {
	inner Store
	group string
}

// newInstrumentedStore wraps inner with metric instrumentation for the given
// group and reports its live keys as cache_entries.
func newInstrumentedStore(inner Store, group string) *instrumentedStore {
	liveKeys.add(group, inner)
	return &instrumentedStore{inner: inner, group: group}
}

func (s *instrumentedStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, ok, err := s.inner.Get(ctx, key)
	if err != nil {
		ErrorsTotal.WithLabelValues(s.group, "get").Inc()
		return val, ok, err
	}
	if ok {
		HitsTotal.WithLabelValues(s.group).Inc()
	} else {
		MissesTotal.WithLabelValues(s.group).Inc()
	}
	return val, ok, nil
}

func (s *instrumentedStore) Set(ctx context.Context, key string, value []byte) error {
	return s.count("set", s.inner.Set(ctx, key, value))
}

func (s *instrumentedStore) Delete(ctx context.Context, keys ...string) error {
	return s.count("delete", s.inner.Delete(ctx, keys...))
}

func (s *instrumentedStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.count("expire", s.inner.Expire(ctx, key, ttl))
}

func (s *instrumentedStore) Exists(ctx context.Context, key string) (bool, error) {
	ok, err := s.inner.Exists(ctx, key)
	return ok, s.count("exists", err)
}

func (s *instrumentedStore) Keys(ctx context.Context) ([]string, error) {
	keys, err := s.inner.Keys(ctx)
	return keys, s.count("keys", err)
}

// Close stops reporting entries for the group and closes the underlying store.
func (s *instrumentedStore) Close() error {
	liveKeys.remove(s.group)
	return s.inner.Close()
}

func (s *instrumentedStore) count(op string, err error) error {
	if err != nil {
		ErrorsTotal.WithLabelValues(s.group, op).Inc()
	}
	return err
}
