package store

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// defaultMemorySize is used when ProviderConfig.Size is not positive.
const defaultMemorySize = 10000

func init() {
	Register("memory", newMemoryStore)
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// memoryStore keeps entries in a bounded hashicorp simplelru guarded by a
// mutex. Expired entries are dropped lazily when they are next touched or
// listed; there is no background sweeper.
type memoryStore struct {
	mu      sync.Mutex
	inner   *simplelru.LRU[string, memoryEntry]
	size    int
	now     func() time.Time
	onEvict EvictCallback
}

func newMemoryStore(cfg ProviderConfig) (Store, error) {
	size := cfg.Size
	if size <= 0 {
		size = defaultMemorySize
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	// Evictions are reported by Set itself: simplelru would also invoke its
	// callback for explicit removals.
	inner, err := simplelru.NewLRU[string, memoryEntry](size, nil)
	if err != nil {
		return nil, err
	}
	return &memoryStore{
		inner:   inner,
		size:    size,
		now:     now,
		onEvict: cfg.OnEvict,
	}, nil
}

func (m *memoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.inner.Get(key)
	if !ok {
		return nil, false, nil
	}
	if e.expired(m.now()) {
		m.inner.Remove(key)
		return nil, false, nil
	}
	return bytes.Clone(e.value), true, nil
}

func (m *memoryStore) Set(_ context.Context, key string, value []byte) error {
	var evicted string
	m.mu.Lock()
	if !m.inner.Contains(key) && m.inner.Len() >= m.size {
		if oldest, _, ok := m.inner.RemoveOldest(); ok {
			evicted = oldest
		}
	}
	m.inner.Add(key, memoryEntry{value: bytes.Clone(value)})
	m.mu.Unlock()

	if evicted != "" && m.onEvict != nil {
		m.onEvict(evicted)
	}
	return nil
}

func (m *memoryStore) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range keys {
		m.inner.Remove(key)
	}
	return nil
}

// Expire follows Redis semantics: a missing key is ignored and a
// non-positive ttl deletes the key.
func (m *memoryStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.inner.Peek(key)
	now := m.now()
	if !ok || e.expired(now) {
		m.inner.Remove(key)
		return nil
	}
	if ttl <= 0 {
		m.inner.Remove(key)
		return nil
	}
	e.expiresAt = now.Add(ttl)
	m.inner.Add(key, e)
	return nil
}

func (m *memoryStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.inner.Peek(key)
	if !ok {
		return false, nil
	}
	if e.expired(m.now()) {
		m.inner.Remove(key)
		return false, nil
	}
	return true, nil
}

func (m *memoryStore) Keys(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	all := m.inner.Keys()
	live := make([]string, 0, len(all))
	for _, key := range all {
		e, ok := m.inner.Peek(key)
		if !ok {
			continue
		}
		if e.expired(now) {
			m.inner.Remove(key)
			continue
		}
		live = append(live, key)
	}
	return live, nil
}

func (m *memoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.inner.Purge()
	return nil
}
