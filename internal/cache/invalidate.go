package cache

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Belphemur/tagcache/internal/key"
	"github.com/Belphemur/tagcache/internal/metrics"
	"github.com/Belphemur/tagcache/internal/tag"
)

// Invalidator lists and deletes cached entries.
type Invalidator interface {
	// Keys returns the canonical strings of all live keys.
	Keys(ctx context.Context) ([]string, error)
	// ExpireKey deletes every key that equals selector or has it as name or element.
	ExpireKey(ctx context.Context, selector string) ([]string, error)
	// ExpireAll deletes every key.
	ExpireAll(ctx context.Context) error
	// ExpireFor deletes every key related to all of objs.
	ExpireFor(ctx context.Context, objs ...any) ([]key.Key, error)
}

var _ Invalidator = (*Cache)(nil)

// Keys returns the canonical strings of all live keys, namespace stripped.
// The listing is not a snapshot: keys written or expiring concurrently may
// or may not appear.
func (c *Cache) Keys(ctx context.Context) ([]string, error) {
	return c.store.Keys(ctx)
}

// ExpireKey deletes every live key whose raw string equals selector or whose
// name or elements contain it, and returns the deleted keys.
func (c *Cache) ExpireKey(ctx context.Context, selector string) (_ []string, err error) {
	ctx, span := c.tracer.Start(ctx, "tagcache.expire_key", trace.WithAttributes(attribute.String("tagcache.selector", selector)))
	defer func() { endSpan(span, err) }()

	raws, err := c.liveKeys(ctx)
	if err != nil {
		return nil, err
	}

	var matched []string
	for _, raw := range raws {
		if raw == selector {
			matched = append(matched, raw)
			continue
		}
		k, ok := c.parse(raw)
		if ok && k.HasElement(selector) {
			matched = append(matched, raw)
		}
	}

	if err := c.delete(ctx, "expire_key", matched); err != nil {
		return nil, err
	}
	return matched, nil
}

// ExpireAll deletes every live key.
func (c *Cache) ExpireAll(ctx context.Context) (err error) {
	ctx, span := c.tracer.Start(ctx, "tagcache.expire_all")
	defer func() { endSpan(span, err) }()

	raws, err := c.liveKeys(ctx)
	if err != nil {
		return err
	}
	return c.delete(ctx, "expire_all", raws)
}

// ExpireFor deletes every live key that matches all of the related objects
// and returns the deleted keys. Calling it with no objects deletes nothing.
//
// Matching depends on the kind of each tag:
//   - literal: the literal is the key's name or one of its elements
//   - type: an instance of the type, the type itself or its collection tag
//     is present
//   - instance: the instance, its type's collection tag or the bare type
//     name is present
func (c *Cache) ExpireFor(ctx context.Context, objs ...any) (_ []key.Key, err error) {
	ctx, span := c.tracer.Start(ctx, "tagcache.expire_for")
	defer func() { endSpan(span, err) }()

	tags, err := tag.Resolve(objs...)
	if err != nil {
		return nil, err
	}
	if len(tags) == 0 {
		return nil, nil
	}

	raws, err := c.liveKeys(ctx)
	if err != nil {
		return nil, err
	}

	var (
		deleted []key.Key
		matched []string
	)
	for _, raw := range raws {
		k, ok := c.parse(raw)
		if !ok || !matchesAll(k, tags) {
			continue
		}
		deleted = append(deleted, k)
		matched = append(matched, raw)
	}

	if err := c.delete(ctx, "expire_for", matched); err != nil {
		return nil, err
	}
	return deleted, nil
}

// liveKeys lists the store's keys once each, whatever the store returns.
func (c *Cache) liveKeys(ctx context.Context) ([]string, error) {
	raws, err := c.store.Keys(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(raws))
	unique := make([]string, 0, len(raws))
	for _, raw := range raws {
		if _, dup := seen[raw]; dup {
			continue
		}
		seen[raw] = struct{}{}
		unique = append(unique, raw)
	}
	return unique, nil
}

func (c *Cache) parse(raw string) (key.Key, bool) {
	k, err := key.Parse(raw)
	if err != nil {
		c.logger.Debug().Err(err).Msg("Skipping foreign key")
		return key.Key{}, false
	}
	return k, true
}

func (c *Cache) delete(ctx context.Context, operation string, raws []string) error {
	if len(raws) == 0 {
		return nil
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("tagcache.deleted", len(raws)))
	if err := c.store.Delete(ctx, raws...); err != nil {
		c.logger.Error().Err(err).Str("operation", operation).Msg("Failed to delete cache keys")
		return err
	}
	metrics.InvalidatedKeysTotal.WithLabelValues(operation).Add(float64(len(raws)))
	c.logger.Info().Str("operation", operation).Int("keys", len(raws)).Msg("Cache keys invalidated")
	return nil
}

func matchesAll(k key.Key, tags []tag.Tag) bool {
	for _, t := range tags {
		if !matches(k, t) {
			return false
		}
	}
	return true
}

func matches(k key.Key, t tag.Tag) bool {
	switch t.Kind {
	case tag.KindType:
		plural := t.Plural()
		return k.HasElementType(t.Type) || k.HasElementType(plural) || k.HasElement(plural)
	case tag.KindInstance:
		return k.HasElement(t.String()) || k.HasElement(t.Plural()) || k.HasElement(t.Type)
	default:
		return k.HasElement(t.Value)
	}
}
