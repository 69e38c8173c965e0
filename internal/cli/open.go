package cli

import (
	"github.com/rs/zerolog"

	"github.com/Belphemur/tagcache/internal/cache"
	"github.com/Belphemur/tagcache/internal/codec"
	"github.com/Belphemur/tagcache/internal/config"
	"github.com/Belphemur/tagcache/internal/fingerprint"
	"github.com/Belphemur/tagcache/internal/store"
)

// MetricsGroup is the "cache" label of store metrics recorded for caches
// opened from configuration.
const MetricsGroup = "tagcache"

// OpenFromConfig builds the store and codecs named in cfg and returns a
// cache over them.
func OpenFromConfig(cfg *config.Config, logger zerolog.Logger) (*cache.Cache, error) {
	serializer, err := codec.NewSerializer(cfg.Cache.Serializer)
	if err != nil {
		return nil, err
	}
	compressor, err := codec.NewCompressor(cfg.Cache.Compressor)
	if err != nil {
		return nil, err
	}
	policy, err := cache.ParseDecodePolicy(cfg.Cache.OnDecodeError)
	if err != nil {
		return nil, err
	}

	providerCfg := store.ProviderConfig{
		Namespace:     cfg.Cache.Namespace,
		Size:          cfg.Store.Size,
		Logger:        logger,
		RedisURL:      cfg.Store.URL,
		RedisAddress:  cfg.Store.Address,
		RedisPassword: cfg.Store.Password,
		RedisDB:       cfg.Store.DB,
		Retries:       cfg.Store.Retries,
	}
	if cfg.Metrics.Enabled {
		providerCfg.Group = MetricsGroup
	}
	s, err := store.New(cfg.Store.Provider, providerCfg)
	if err != nil {
		return nil, err
	}

	logger.Debug().
		Str("provider", cfg.Store.Provider).
		Str("namespace", cfg.Cache.Namespace).
		Str("serializer", serializer.Name()).
		Str("compressor", compressor.Name()).
		Msg("Cache store configured")

	return cache.New(cache.Options{
		Store:           s,
		Serializer:      serializer,
		Compressor:      compressor,
		Fingerprint:     fingerprintSource(cfg, logger),
		Disabled:        !cfg.Cache.Enabled,
		Compress:        cfg.Cache.Compress,
		CompressMinSize: cfg.Cache.CompressMinSize,
		OnDecodeError:   policy,
		Logger:          logger,
	})
}

func fingerprintSource(cfg *config.Config, logger zerolog.Logger) fingerprint.Source {
	switch {
	case cfg.Cache.IgnoreCodeChanges:
		return fingerprint.None{}
	case cfg.Cache.LogicVersion != "":
		return fingerprint.Static(cfg.Cache.LogicVersion)
	default:
		return fingerprint.NewSourceHash(logger)
	}
}
