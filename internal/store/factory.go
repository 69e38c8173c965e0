package store

import (
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ProviderConfig holds the configuration needed to create a store instance.
type ProviderConfig struct {
	// Namespace prefixes every key written by the store. Defaults to "tagcache".
	Namespace string

	// Size is the maximum number of entries for the in-memory store.
	Size int

	// Clock returns the current time. The in-memory store uses it to decide
	// which entries have expired. Defaults to time.Now.
	Clock func() time.Time

	// OnEvict is called when an entry is evicted. Not all providers support this.
	OnEvict EvictCallback

	// Logger receives diagnostics from store operations. The zero value logs nothing.
	Logger zerolog.Logger

	// RedisClient is an existing client to use instead of dialing a new one.
	// The store takes ownership and closes it on Close.
	RedisClient *redis.Client

	// RedisURL is a redis:// connection URL. When set it takes precedence over
	// RedisAddress, RedisPassword and RedisDB.
	RedisURL string

	// RedisAddress is the Redis/Valkey server address (e.g., "localhost:6379").
	RedisAddress string

	// RedisPassword is the password for the Redis/Valkey server.
	RedisPassword string

	// RedisDB is the Redis/Valkey database number.
	RedisDB int

	// Retries is the number of times a Redis command failing with a transient
	// network error is retried. Zero disables retries.
	Retries int

	// Group is an optional label value used to namespace Prometheus metrics
	// (cache_hits_total, cache_misses_total, etc.).
	// When non-empty the store is automatically wrapped with metric instrumentation.
	Group string
}

// DefaultNamespace is used when ProviderConfig.Namespace is empty.
const DefaultNamespace = "tagcache"

func (cfg ProviderConfig) namespace() string {
	if cfg.Namespace == "" {
		return DefaultNamespace
	}
	return cfg.Namespace
}

// Provider builds a Store from config.
type Provider func(cfg ProviderConfig) (Store, error)

var (
	providersMu sync.RWMutex
	providers   = make(map[string]Provider)
)

// Register makes a provider available to New under name. Providers register
// themselves from init; registering a nil provider or a taken name panics.
func Register(name string, p Provider) {
	if p == nil {
		panic("store: Register provider is nil")
	}
	providersMu.Lock()
	defer providersMu.Unlock()
	if _, taken := providers[name]; taken {
		panic(fmt.Sprintf("store: provider %q already registered", name))
	}
	providers[name] = p
}

func lookup(name string) (Provider, bool) {
	providersMu.RLock()
	defer providersMu.RUnlock()
	p, ok := providers[name]
	return p, ok
}

// New opens a Store with the named provider. A non-empty cfg.Group wraps it
// with Prometheus instrumentation labelled by the group.
func New(name string, cfg ProviderConfig) (Store, error) {
	p, ok := lookup(name)
	if !ok {
		return nil, fmt.Errorf("store: unknown provider %q (registered: %v)", name, RegisteredProviders())
	}
	if cfg.Group == "" {
		return p(cfg)
	}

	group, onEvict := cfg.Group, cfg.OnEvict
	cfg.OnEvict = func(key string) {
		EvictionsTotal.WithLabelValues(group).Inc()
		if onEvict != nil {
			onEvict(key)
		}
	}
	inner, err := p(cfg)
	if err != nil {
		return nil, err
	}
	return newInstrumentedStore(inner, group), nil
}

// RegisteredProviders returns the registered provider names, sorted.
func RegisteredProviders() []string {
	providersMu.RLock()
	names := slices.Collect(maps.Keys(providers))
	providersMu.RUnlock()
	slices.Sort(names)
	return names
}
