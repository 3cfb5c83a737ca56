// Package cli implements the notable command tree.
package cli

import (
	"io"
	"log/slog"
	"sync"

	"github.com/couchcryptid/notable-obs-filter/internal/config"
	"github.com/couchcryptid/notable-obs-filter/internal/observability"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
}

// processMetrics registers the Prometheus collectors once per process.
var processMetrics = sync.OnceValue(observability.NewMetrics)

// NewRootCommand creates the root command for the notable CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "notable",
		Short: "Filter bird observation exports down to notable records",
		Long: `Filter eBird and iNaturalist observation exports against a rules file
that flags species as notable within a seasonal date window and an
optional geographic region.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log at debug level")

	cmd.AddCommand(NewFilterCommand(opts))
	cmd.AddCommand(NewRulesCommand(opts))

	return cmd
}

// loadEnv reads the environment configuration and builds the logger for a
// command. --verbose overrides LOG_LEVEL.
func loadEnv(opts *RootOptions, stderr io.Writer) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if opts.Verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, observability.NewLoggerTo(stderr, cfg.LogLevel, cfg.LogFormat), nil
}
