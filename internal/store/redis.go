package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	// scanCount is the COUNT hint passed to SCAN when listing keys.
	scanCount = 500

	// indexSuffix names the live-key set used by the redis-index provider.
	indexSuffix = "\x00index"
)

func init() {
	Register("redis", func(cfg ProviderConfig) (Store, error) { return newRedisStore(cfg, false) })
	Register("redis-index", func(cfg ProviderConfig) (Store, error) { return newRedisStore(cfg, true) })
}

// redisStore implements Store on Redis/Valkey.
//
// Each cache entry is a plain string key "{namespace}:{cache key}" so that
// the server's native TTL handles expiry.
//
// Two ways of listing keys are supported:
//
//   - "redis" walks the key space with SCAN MATCH "{namespace}:*". No
//     bookkeeping is needed and expired keys disappear on their own.
//   - "redis-index" keeps every written key in the set "{namespace}:\x00index"
//     for servers where SCAN is disabled. SET+SADD and DEL+SREM run in
//     MULTI blocks, but a TTL expiry leaves a stale member behind; Keys
//     prunes members whose entry no longer EXISTS.
type redisStore struct {
	client   *redis.Client
	prefix   string // e.g. "tagcache:"
	indexKey string // empty unless the live-key index is used
	retry    *retrier
	logger   zerolog.Logger
}

func newRedisClient(cfg ProviderConfig) (*redis.Client, error) {
	if cfg.RedisClient != nil {
		return cfg.RedisClient, nil
	}
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		return redis.NewClient(opts), nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddress,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}), nil
}

func newRedisStore(cfg ProviderConfig, indexed bool) (*redisStore, error) {
	client, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}

	// Verify connectivity.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	prefix := cfg.namespace() + ":"
	s := &redisStore{
		client: client,
		prefix: prefix,
		retry:  newRetrier(cfg.Retries, cfg.Logger),
		logger: cfg.Logger,
	}
	if indexed {
		s.indexKey = prefix + indexSuffix
	}
	return s, nil
}

func (r *redisStore) fullKey(key string) string {
	return r.prefix + key
}

func (r *redisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := r.retry.do(ctx, func() error {
		var err error
		value, err = r.client.Get(ctx, r.fullKey(key)).Bytes()
		return err
	})
	if err != nil {
		// redis.Nil is a miss.
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return value, true, nil
}

func (r *redisStore) Set(ctx context.Context, key string, value []byte) error {
	full := r.fullKey(key)
	return r.retry.do(ctx, func() error {
		if r.indexKey == "" {
			return r.client.Set(ctx, full, value, 0).Err()
		}
		_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, full, value, 0)
			pipe.SAdd(ctx, r.indexKey, key)
			return nil
		})
		return err
	})
}

func (r *redisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	members := make([]any, len(keys))
	for i, key := range keys {
		full[i] = r.fullKey(key)
		members[i] = key
	}
	return r.retry.do(ctx, func() error {
		if r.indexKey == "" {
			return r.client.Del(ctx, full...).Err()
		}
		_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, full...)
			pipe.SRem(ctx, r.indexKey, members...)
			return nil
		})
		return err
	})
}

func (r *redisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return r.retry.do(ctx, func() error {
		return r.client.PExpire(ctx, r.fullKey(key), ttl).Err()
	})
}

func (r *redisStore) Exists(ctx context.Context, key string) (bool, error) {
	var n int64
	err := r.retry.do(ctx, func() error {
		var err error
		n, err = r.client.Exists(ctx, r.fullKey(key)).Result()
		return err
	})
	return n > 0, err
}

func (r *redisStore) Keys(ctx context.Context) ([]string, error) {
	if r.indexKey != "" {
		return r.indexedKeys(ctx)
	}
	var scanned []string
	err := r.retry.do(ctx, func() error {
		scanned = scanned[:0]
		iter := r.client.Scan(ctx, 0, escapeGlob(r.prefix)+"*", scanCount).Iterator()
		for iter.Next(ctx) {
			scanned = append(scanned, iter.Val())
		}
		return iter.Err()
	})
	if err != nil {
		return nil, err
	}
	return stripScanned(r.prefix, scanned), nil
}

// stripScanned removes prefix from scanned keys, skipping the index key and
// the duplicates SCAN may return while the keyspace is rehashed.
func stripScanned(prefix string, scanned []string) []string {
	keys := make([]string, 0, len(scanned))
	seen := make(map[string]struct{}, len(scanned))
	for _, full := range scanned {
		if full == prefix+indexSuffix {
			continue
		}
		if _, dup := seen[full]; dup {
			continue
		}
		seen[full] = struct{}{}
		keys = append(keys, strings.TrimPrefix(full, prefix))
	}
	return keys
}

// indexedKeys reads the live-key set and drops members whose entry has
// expired since it was written.
func (r *redisStore) indexedKeys(ctx context.Context) ([]string, error) {
	var members []string
	err := r.retry.do(ctx, func() error {
		var err error
		members, err = r.client.SMembers(ctx, r.indexKey).Result()
		return err
	})
	if err != nil || len(members) == 0 {
		return nil, err
	}

	var checks []*redis.IntCmd
	err = r.retry.do(ctx, func() error {
		checks = make([]*redis.IntCmd, len(members))
		_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			for i, m := range members {
				checks[i] = pipe.Exists(ctx, r.fullKey(m))
			}
			return nil
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	live := make([]string, 0, len(members))
	var stale []any
	for i, m := range members {
		if checks[i].Val() > 0 {
			live = append(live, m)
		} else {
			stale = append(stale, m)
		}
	}
	if len(stale) > 0 {
		// Best effort: a failure here only leaves stale members for next time.
		if err := r.client.SRem(ctx, r.indexKey, stale...).Err(); err != nil {
			r.logger.Warn().Err(err).Int("stale", len(stale)).Msg("Failed to prune live-key index")
		} else {
			r.logger.Debug().Int("stale", len(stale)).Msg("Pruned expired keys from live-key index")
		}
	}
	return live, nil
}

func (r *redisStore) Close() error {
	return r.client.Close()
}

// escapeGlob escapes the characters SCAN MATCH treats as pattern syntax.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, c := range s {
		switch c {
		case '*', '?', '[', ']', '\\', '^', '-':
			b.WriteByte('\\')
		}
		b.WriteRune(c)
	}
	return b.String()
}
