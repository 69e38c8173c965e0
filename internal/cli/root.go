// Package cli provides the tagcache administration commands.
package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Belphemur/tagcache/internal/cache"
	"github.com/Belphemur/tagcache/internal/config"
)

// Opener builds the cache a command operates on.
type Opener func(cfg *config.Config, logger zerolog.Logger) (*cache.Cache, error)

// app carries the state shared by every command of one invocation.
type app struct {
	open       Opener
	configPath string
	cfg        *config.Config
	logger     zerolog.Logger
}

// openCache opens the configured cache. The caller closes it.
func (a *app) openCache() (*cache.Cache, error) {
	c, err := a.open(a.cfg, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	return c, nil
}

// NewRootCmd creates the root command. open is called by each subcommand
// that needs a cache.
func NewRootCmd(version string, open Opener) *cobra.Command {
	a := &app{open: open}

	rootCmd := &cobra.Command{
		Use:   "tagcache",
		Short: "Inspect and invalidate a tagcache store",
		Long: `tagcache administers the entries written by the tagcache library.

Keys have the canonical form name|fingerprint|tags...|flags. Entries can
be listed, expired by name, tag or exact key, expired by a conjunction of
tags, or flushed entirely.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if a.configPath != "" {
				config.SetConfigFile(a.configPath)
				cfg, err := config.Reload()
				if err != nil {
					return fmt.Errorf("failed to load config %s: %w", a.configPath, err)
				}
				a.cfg = cfg
			} else {
				a.cfg = config.GetConfig()
			}
			a.logger = config.GetLogger()

			if err := initSentry(a.cfg.SentryDSN, version); err != nil {
				a.logger.Warn().Err(err).Msg("Failed to initialize Sentry")
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "path to a config file (default: ./config.yaml or ./config/config.yaml)")

	rootCmd.AddCommand(
		newKeysCmd(a),
		newExpireCmd(a),
		newExpireForCmd(a),
		newFlushCmd(a),
		newServeMetricsCmd(a),
	)
	return rootCmd
}

// Execute runs the tagcache command line and returns the process exit code.
// Failures are reported to Sentry when a DSN is configured.
func Execute(version string) int {
	err := NewRootCmd(version, OpenFromConfig).Execute()
	if err != nil {
		captureError(err)
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	flushSentry()
	if err != nil {
		return 1
	}
	return 0
}
