// Package cmd contains all CLI commands for tdc.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tdcache/internal/config"
)

// Version is the current version of tdc.
var Version = "0.1.0"

// Global flags
var (
	verbose    bool
	configPath string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "tdc",
	Short: "Trade data cache synchronization and query tool",
	Long: `tdc maintains a local SQLite cache of trade reference data (systems,
stations, ships, commodities, upgrades) and per-station market prices,
mirrored from flat-file sources so route planning can run against indexed
queries instead of re-parsing text files.

On every run tdc decides whether the cache is stale relative to its sources
and performs the minimal correct rebuild: a full schema rebuild when the
schema version changed, a reference reload when reference sources changed, or
a price-only merge when just the market file changed.

Examples:
  tdc sync                     # bring the cache up to date
  tdc sync --prune-missing     # also drop batch prices absent from the source
  tdc stats                    # per-table row counts
  tdc selling "Hydrogen Fuel"  # stations selling an item, cheapest first`,
	Version: Version,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: tdcache.yaml)")
}

// loadConfig reads the configuration honoring the --config flag.
func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

// newLogger builds the CLI logger: quiet by default, console debug output
// with --verbose.
func newLogger() (*zap.Logger, error) {
	if !verbose {
		return zap.NewNop(), nil
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	return cfg.Build()
}
