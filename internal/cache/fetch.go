package cache

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Belphemur/tagcache/internal/apperrors"
	"github.com/Belphemur/tagcache/internal/key"
	"github.com/Belphemur/tagcache/internal/metrics"
	"github.com/Belphemur/tagcache/internal/tag"
)

type fetchOptions struct {
	tags   []any
	expiry time.Duration
	force  bool
}

// FetchOption customises a single Fetch.
type FetchOption func(*fetchOptions)

// WithTags relates the cached value to objs. Each object may be a string,
// a reflect.Type, a tag.Tag, a value with an identity (tag.Identifiable or an
// ID method) or a slice of those. Identity methods with pointer receivers are
// found on values too.
func WithTags(objs ...any) FetchOption {
	return func(o *fetchOptions) {
		o.tags = append(o.tags, objs...)
	}
}

// WithExpiry sets a TTL on the written entry. Non-positive durations mean no TTL.
func WithExpiry(d time.Duration) FetchOption {
	return func(o *fetchOptions) {
		o.expiry = d
	}
}

// WithForce skips the lookup and always recomputes and rewrites the entry.
func WithForce() FetchOption {
	return func(o *fetchOptions) {
		o.force = true
	}
}

// Fetch returns the cached value for name and its tags, or runs compute and
// caches its result.
//
// Concurrent misses for the same key all run compute and all write; the last
// write wins.
func Fetch[T any](ctx context.Context, c *Cache, name string, compute func(context.Context) (T, error), opts ...FetchOption) (_ T, err error) {
	var zero T
	if compute == nil {
		return zero, apperrors.NewComputeMissingError(name)
	}

	var o fetchOptions
	for _, opt := range opts {
		opt(&o)
	}

	result := metrics.ResultError
	ctx, span := c.tracer.Start(ctx, "tagcache.fetch", trace.WithAttributes(attribute.String("tagcache.name", name)))
	defer func() {
		metrics.FetchTotal.WithLabelValues(result).Inc()
		span.SetAttributes(attribute.String("tagcache.result", result))
		endSpan(span, err)
	}()

	elements, err := tag.Encode(o.tags...)
	if err != nil {
		return zero, err
	}

	if !c.enabled {
		result = metrics.ResultBypass
		return compute(ctx)
	}

	k := key.New(name, c.fingerprint.Fingerprint(compute), elements...)
	logger := c.logger.With().Str("key", k.String()).Logger()
	span.SetAttributes(attribute.String("tagcache.key", k.String()))

	outcome := metrics.ResultForced
	if !o.force {
		value, found, recovered, err := load[T](ctx, c, k)
		if err != nil {
			return zero, err
		}
		if found {
			logger.Debug().Msg("Cache hit")
			result = metrics.ResultHit
			return value, nil
		}
		outcome = metrics.ResultMiss
		if recovered {
			outcome = metrics.ResultRecovered
		}
		logger.Debug().Msg("Cache miss")
	}

	timer := prometheus.NewTimer(metrics.ComputeDuration)
	value, err := compute(ctx)
	timer.ObserveDuration()
	if err != nil {
		return zero, err
	}

	if err := write(ctx, c, k, value, o.expiry); err != nil {
		logger.Error().Err(err).Msg("Failed to write cache entry")
		return zero, err
	}
	result = outcome
	return value, nil
}

// load looks up the unflagged key and then the compressed variant. The
// returned recovered flag is set when an unreadable entry was discarded
// under DecodeRecompute.
func load[T any](ctx context.Context, c *Cache, k key.Key) (T, bool, bool, error) {
	var zero T
	recovered := false
	for _, variant := range []key.Key{k.WithCompressed(false), k.WithCompressed(true)} {
		raw := variant.String()
		payload, ok, err := c.store.Get(ctx, raw)
		if err != nil {
			return zero, false, recovered, err
		}
		if !ok {
			continue
		}

		value, err := decode[T](c, variant, payload)
		if err == nil {
			return value, true, recovered, nil
		}
		if c.onDecodeError != DecodeRecompute {
			return zero, false, recovered, apperrors.NewDeserializationError(raw, err)
		}

		c.logger.Warn().Err(err).Str("key", raw).Msg("Discarding unreadable cache entry")
		if err := c.store.Delete(ctx, raw); err != nil {
			return zero, false, recovered, err
		}
		recovered = true
	}
	return zero, false, recovered, nil
}

func decode[T any](c *Cache, k key.Key, payload []byte) (T, error) {
	var v T
	if k.Compressed() {
		var err error
		payload, err = c.compressor.Decompress(payload)
		if err != nil {
			return v, fmt.Errorf("%s: %w", c.compressor.Name(), err)
		}
	}
	err := c.serializer.Unmarshal(payload, &v)
	return v, err
}

// write stores value under the variant of k chosen by the compression rule
// and deletes the other variant, which would otherwise shadow or outlive it.
func write[T any](ctx context.Context, c *Cache, k key.Key, value T, expiry time.Duration) error {
	payload, err := c.serializer.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to serialize value for key %q: %w", k.String(), err)
	}

	target, sibling := k.WithCompressed(false), k.WithCompressed(true)
	if c.shouldCompress(value) {
		payload, err = c.compressor.Compress(payload)
		if err != nil {
			return fmt.Errorf("failed to compress value for key %q: %w", k.String(), err)
		}
		target, sibling = sibling, target
	}

	raw := target.String()
	if err := c.store.Set(ctx, raw, payload); err != nil {
		return err
	}
	if expiry > 0 {
		if err := c.store.Expire(ctx, raw, expiry); err != nil {
			return err
		}
	}
	if err := c.store.Delete(ctx, sibling.String()); err != nil {
		return err
	}

	c.logger.Debug().Str("key", raw).Int("bytes", len(payload)).Dur("expiry", expiry).Msg("Cache entry written")
	return nil
}

// shouldCompress applies only to string values with more characters than the
// configured minimum.
func (c *Cache) shouldCompress(value any) bool {
	if !c.compress {
		return false
	}
	s, ok := value.(string)
	return ok && utf8.RuneCountInString(s) > c.minSize
}
