// Package cache implements compute-if-absent caching over a Store. Values are
// cached under deterministic keys built from a name, a logic fingerprint and
// the tags of related objects, and can later be invalidated by exact key, by
// tag, or by a conjunction of tags.
package cache

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Belphemur/tagcache/internal/codec"
	"github.com/Belphemur/tagcache/internal/fingerprint"
	"github.com/Belphemur/tagcache/internal/store"
)

// DecodePolicy decides what a fetch does when a cached payload cannot be
// decoded.
type DecodePolicy int

const (
	// DecodeFail surfaces an ErrDeserialization to the caller.
	DecodeFail DecodePolicy = iota
	// DecodeRecompute deletes the unreadable entry and recomputes it.
	DecodeRecompute
)

func (p DecodePolicy) String() string {
	switch p {
	case DecodeFail:
		return "fail"
	case DecodeRecompute:
		return "recompute"
	default:
		return fmt.Sprintf("DecodePolicy(%d)", int(p))
	}
}

// ParseDecodePolicy parses "fail" or "recompute". The empty string is DecodeFail.
func ParseDecodePolicy(s string) (DecodePolicy, error) {
	switch s {
	case "", "fail":
		return DecodeFail, nil
	case "recompute":
		return DecodeRecompute, nil
	default:
		return DecodeFail, fmt.Errorf("cache: unknown decode policy %q (available: fail, recompute)", s)
	}
}

// Options configures a Cache. Only Store is required.
type Options struct {
	Store store.Store

	// Serializer encodes values. Defaults to codec.JSON.
	Serializer codec.Serializer

	// Compressor is used for string values longer than CompressMinSize when
	// Compress is set. Defaults to codec.Gzip at its default level.
	Compressor codec.Compressor

	// Fingerprint identifies the logic of each compute. Defaults to
	// fingerprint.None, which disables logic-change invalidation.
	Fingerprint fingerprint.Source

	// Disabled turns every fetch into a plain call of its compute.
	Disabled bool

	Compress bool

	// CompressMinSize is the number of characters a string value must exceed
	// to be compressed.
	CompressMinSize int

	OnDecodeError DecodePolicy

	Logger zerolog.Logger

	// Tracer records a span per fetch and invalidation. Defaults to the
	// tracer of the global OpenTelemetry provider.
	Tracer trace.Tracer
}

const tracerName = "github.com/Belphemur/tagcache/internal/cache"

// Cache fetches and invalidates cached computations. It holds no state of its
// own beyond its collaborators and is safe for concurrent use when its Store is.
type Cache struct {
	store         store.Store
	serializer    codec.Serializer
	compressor    codec.Compressor
	fingerprint   fingerprint.Source
	enabled       bool
	compress      bool
	minSize       int
	onDecodeError DecodePolicy
	logger        zerolog.Logger
	tracer        trace.Tracer
}

// New creates a Cache from opts.
func New(opts Options) (*Cache, error) {
	if opts.Store == nil {
		return nil, errors.New("cache: a store is required")
	}
	c := &Cache{
		store:         opts.Store,
		serializer:    opts.Serializer,
		compressor:    opts.Compressor,
		fingerprint:   opts.Fingerprint,
		enabled:       !opts.Disabled,
		compress:      opts.Compress,
		minSize:       opts.CompressMinSize,
		onDecodeError: opts.OnDecodeError,
		logger:        opts.Logger,
		tracer:        opts.Tracer,
	}
	if c.serializer == nil {
		c.serializer = codec.JSON{}
	}
	if c.compressor == nil {
		c.compressor = codec.Gzip{Level: gzip.DefaultCompression}
	}
	if c.fingerprint == nil {
		c.fingerprint = fingerprint.None{}
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer(tracerName)
	}
	return c, nil
}

// Store returns the underlying store.
func (c *Cache) Store() store.Store {
	return c.store
}

// Close closes the underlying store.
func (c *Cache) Close() error {
	return c.store.Close()
}

// endSpan records err on span, if any, and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
