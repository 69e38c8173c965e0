package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Belphemur/tagcache/internal/key"
	"github.com/Belphemur/tagcache/internal/store"
)

// SampleType is tagged as "sample_type[<Num>]" and "sample_types".
type SampleType struct {
	Num int
}

func (s SampleType) ID() int { return s.Num }

// Widget implements tag.Identifiable.
type Widget struct {
	Serial string
}

func (w *Widget) CacheID() string { return w.Serial }

// testClock is a manually advanced clock for the memory store.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// spyStore counts calls to the wrapped store and can inject failures.
type spyStore struct {
	store.Store
	calls  atomic.Int32
	getErr error
	setErr error
}

func (s *spyStore) Get(ctx context.Context, k string) ([]byte, bool, error) {
	s.calls.Add(1)
	if s.getErr != nil {
		return nil, false, s.getErr
	}
	return s.Store.Get(ctx, k)
}

func (s *spyStore) Set(ctx context.Context, k string, value []byte) error {
	s.calls.Add(1)
	if s.setErr != nil {
		return s.setErr
	}
	return s.Store.Set(ctx, k, value)
}

func (s *spyStore) Delete(ctx context.Context, keys ...string) error {
	s.calls.Add(1)
	return s.Store.Delete(ctx, keys...)
}

func (s *spyStore) Expire(ctx context.Context, k string, ttl time.Duration) error {
	s.calls.Add(1)
	return s.Store.Expire(ctx, k, ttl)
}

func (s *spyStore) Keys(ctx context.Context) ([]string, error) {
	s.calls.Add(1)
	return s.Store.Keys(ctx)
}

func newMemoryStore(t *testing.T, clock *testClock) store.Store {
	t.Helper()
	cfg := store.ProviderConfig{Size: 100}
	if clock != nil {
		cfg.Clock = clock.Now
	}
	s, err := store.New("memory", cfg)
	if err != nil {
		t.Fatalf("New memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestCache(t *testing.T, opts Options) *Cache {
	t.Helper()
	if opts.Store == nil {
		opts.Store = newMemoryStore(t, nil)
	}
	c, err := New(opts)
	if err != nil {
		t.Fatalf("New cache: %v", err)
	}
	return c
}

// counter returns a compute that yields value and counts its calls.
func counter[T any](value T, calls *int) func(context.Context) (T, error) {
	return func(context.Context) (T, error) {
		*calls++
		return value, nil
	}
}

// parsedKeys returns every live key of c in parsed form.
func parsedKeys(t *testing.T, c *Cache) []key.Key {
	t.Helper()
	raws, err := c.Keys(context.Background())
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	keys := make([]key.Key, 0, len(raws))
	for _, raw := range raws {
		k, err := key.Parse(raw)
		if err != nil {
			t.Fatalf("Parse(%q): %v", raw, err)
		}
		keys = append(keys, k)
	}
	return keys
}

func TestNew_RequiresStore(t *testing.T) {
	t.Parallel()
	if _, err := New(Options{}); err == nil {
		t.Fatal("Expected error when no store is given")
	}
}

func TestParseDecodePolicy(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw     string
		want    DecodePolicy
		wantErr bool
	}{
		{"", DecodeFail, false},
		{"fail", DecodeFail, false},
		{"recompute", DecodeRecompute, false},
		{"ignore", DecodeFail, true},
	}
	for _, tt := range tests {
		got, err := ParseDecodePolicy(tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDecodePolicy(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseDecodePolicy(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
	if DecodeRecompute.String() != "recompute" {
		t.Errorf("Unexpected policy name %q", DecodeRecompute.String())
	}
}
