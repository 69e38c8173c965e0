package config

import (
	"errors"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

type Config struct {
	LogLevel  string `mapstructure:"log_level"`
	SentryDSN string `mapstructure:"sentry_dsn"`
	Cache     struct {
		Enabled           bool   `mapstructure:"enabled"`
		Namespace         string `mapstructure:"namespace"`
		IgnoreCodeChanges bool   `mapstructure:"ignore_code_changes"` // Disables logic fingerprints
		LogicVersion      string `mapstructure:"logic_version"`       // Non-empty selects a static fingerprint
		Compress          bool   `mapstructure:"compress"`
		CompressMinSize   int    `mapstructure:"compress_min_size"` // Characters a string must exceed to be compressed
		Compressor        string `mapstructure:"compressor"`        // gzip, zstd, brotli or none
		Serializer        string `mapstructure:"serializer"`        // json or proto
		OnDecodeError     string `mapstructure:"on_decode_error"`   // fail or recompute
	} `mapstructure:"cache"`
	Store struct {
		Provider string `mapstructure:"provider"` // redis, redis-index or memory
		Address  string `mapstructure:"address"`
		URL      string `mapstructure:"url"` // redis:// URL, takes precedence over address
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
		Size     int    `mapstructure:"size"` // Maximum number of entries in the memory store
		Retries  int    `mapstructure:"retries"`
	} `mapstructure:"store"`
	Metrics struct {
		Enabled bool   `mapstructure:"enabled"`
		Address string `mapstructure:"address"`
		Port    int    `mapstructure:"port"`
	} `mapstructure:"metrics"`
}

var (
	globalConfig *Config
	logger       zerolog.Logger
	// configFile, when set, replaces the search for config.yaml.
	configFile string
)

func init() {
	// Initialize zerolog with console writer for human-readable output
	logger = zerolog.New(zerolog.ConsoleWriter{
		Out:     os.Stderr,
		NoColor: false,
	}).With().Timestamp().Logger()

	config, err := LoadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load config")
	}

	logger = logger.Level(parseLevel(config.LogLevel))
	zerolog.SetGlobalLevel(logger.GetLevel())

	logger.Debug().Str("level", logger.GetLevel().String()).Msg("Logging configured")
	globalConfig = config
}

// parseLevel turns the configured level into a zerolog level, warning and
// falling back to info when it cannot be parsed.
func parseLevel(raw string) zerolog.Level {
	if raw == "" {
		return zerolog.InfoLevel
	}
	level, err := zerolog.ParseLevel(raw)
	if err != nil {
		logger.Warn().Str("invalid_level", raw).Msg("Invalid log level, using default 'info'")
		return zerolog.InfoLevel
	}
	return level
}

func setDefaults() {
	viper.SetDefault("log_level", "info")
	viper.SetDefault("sentry_dsn", "")

	viper.SetDefault("cache.enabled", true)
	viper.SetDefault("cache.namespace", "tagcache")
	viper.SetDefault("cache.ignore_code_changes", false)
	viper.SetDefault("cache.logic_version", "")
	viper.SetDefault("cache.compress", true)
	viper.SetDefault("cache.compress_min_size", 10240)
	viper.SetDefault("cache.compressor", "gzip")
	viper.SetDefault("cache.serializer", "json")
	viper.SetDefault("cache.on_decode_error", "fail")

	viper.SetDefault("store.provider", "redis")
	viper.SetDefault("store.address", "127.0.0.1:6379")
	viper.SetDefault("store.url", "")
	viper.SetDefault("store.password", "")
	viper.SetDefault("store.db", 0)
	viper.SetDefault("store.size", 10000)
	viper.SetDefault("store.retries", 2)

	viper.SetDefault("metrics.enabled", false)
	viper.SetDefault("metrics.address", "0.0.0.0")
	viper.SetDefault("metrics.port", 9090)
}

func LoadConfig() (*Config, error) {
	// SetConfigName clears any file given to viper.SetConfigFile, so only
	// one of the two may be applied.
	viper.SetConfigType("yaml")
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
	}

	// Environment variable support
	viper.AutomaticEnv()
	viper.SetEnvPrefix("APP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Add specific environment variables for log level and Sentry
	_ = viper.BindEnv("log_level", "APP_LOG_LEVEL", "LOG_LEVEL")
	_ = viper.BindEnv("sentry_dsn", "APP_SENTRY_DSN", "SENTRY_DSN")

	setDefaults()

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// SetConfigFile makes later LoadConfig calls read path instead of searching
// for config.yaml. An empty path restores the search. A missing explicit
// file is an error.
func SetConfigFile(path string) {
	configFile = path
}

// Reload re-reads configuration and replaces the process configuration.
// The logger level follows the reloaded log_level.
func Reload() (*Config, error) {
	config, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	logger = logger.Level(parseLevel(config.LogLevel))
	zerolog.SetGlobalLevel(logger.GetLevel())
	globalConfig = config
	return config, nil
}

func GetConfig() *Config {
	return globalConfig
}

func GetLogger() zerolog.Logger {
	return logger
}
