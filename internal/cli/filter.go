package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	httpadapter "github.com/couchcryptid/notable-obs-filter/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/notable-obs-filter/internal/adapter/kafka"
	"github.com/couchcryptid/notable-obs-filter/internal/adapter/mapbox"
	"github.com/couchcryptid/notable-obs-filter/internal/config"
	"github.com/couchcryptid/notable-obs-filter/internal/dataset"
	"github.com/couchcryptid/notable-obs-filter/internal/domain"
	"github.com/couchcryptid/notable-obs-filter/internal/observability"
	"github.com/couchcryptid/notable-obs-filter/internal/pipeline"
	"github.com/couchcryptid/notable-obs-filter/internal/sink"
	"github.com/spf13/cobra"
)

// FilterOptions holds the per-run inputs of a filter command.
type FilterOptions struct {
	Input      string
	Rules      string
	Output     string
	Profile    string
	Append     bool
	Unaccepted bool
	Raw        bool
}

// NewFilterCommand creates the filter command with one subcommand per dataset.
func NewFilterCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Extract notable observations from a dataset export",
	}
	cmd.AddCommand(newEBirdCommand(rootOpts))
	cmd.AddCommand(newINaturalistCommand(rootOpts))
	return cmd
}

func newEBirdCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FilterOptions{}
	cmd := &cobra.Command{
		Use:   "ebird",
		Short: "Filter an eBird Basic Dataset export",
		Long: `Filter an eBird Basic Dataset (tab-delimited) export. Matching rows are
written unchanged, sorted by taxonomic order, county code, time observations
started and observer ID.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFilter(cmd, rootOpts, dataset.EBirdName, opts)
		},
	}
	addFilterFlags(cmd, opts)
	cmd.Flags().BoolVarP(&opts.Unaccepted, "unaccepted", "u", false, "only keep observations not yet accepted by review")
	return cmd
}

func newINaturalistCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FilterOptions{}
	cmd := &cobra.Command{
		Use:   "inat",
		Short: "Filter an iNaturalist CSV export",
		Long: `Filter an iNaturalist CSV export. Captive or cultivated observations are
never written. Output holds the summary columns unless --extended is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFilter(cmd, rootOpts, dataset.INaturalistName, opts)
		},
	}
	addFilterFlags(cmd, opts)
	cmd.Flags().BoolVarP(&opts.Raw, "extended", "e", false, "write every column of matching rows")
	return cmd
}

func addFilterFlags(cmd *cobra.Command, opts *FilterOptions) {
	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "dataset export to read")
	cmd.Flags().StringVarP(&opts.Rules, "rules", "r", "", "rules CSV file")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "file to write notable observations to")
	cmd.Flags().BoolVarP(&opts.Append, "append", "a", false, "append to the output file instead of overwriting it")
	cmd.Flags().StringVar(&opts.Profile, "profile", "", "YAML file overriding the dataset column profile")
	for _, name := range []string{"input", "rules", "output"} {
		_ = cmd.MarkFlagRequired(name)
	}
}

func runFilter(cmd *cobra.Command, rootOpts *RootOptions, name string, opts *FilterOptions) error {
	cfg, logger, err := loadEnv(rootOpts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	metrics := processMetrics()

	profile, err := resolveProfile(name, opts.Profile)
	if err != nil {
		return err
	}
	comma, _ := profile.Comma()

	index, err := domain.LoadRules(opts.Rules)
	if err != nil {
		return err
	}
	logger.Info("rules loaded", "path", opts.Rules, "rules", index.Len(), "species", index.SpeciesCount())

	reader, err := dataset.Open(opts.Input, profile)
	if err != nil {
		return err
	}
	defer reader.Close()

	transformer, err := pipeline.NewTransformer(profile, reader.Header(), opts.Raw, newGeocoder(cfg, metrics, logger), logger)
	if err != nil {
		return err
	}

	out, err := sink.New(sink.Options{
		Path:           opts.Output,
		Header:         transformer.Header(),
		Delimiter:      comma,
		Append:         opts.Append,
		UnacceptedOnly: opts.Unaccepted,
		SortKeys:       profile.Sort,
		SpoolDir:       cfg.SpoolDir,
	}, logger)
	if err != nil {
		return err
	}

	var publisher pipeline.BatchPublisher
	if cfg.KafkaPublish {
		w := kafkaadapter.NewWriter(cfg, logger)
		defer func() {
			if err := w.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		publisher = w
		logger.Info("kafka publishing enabled", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	}

	p := pipeline.New(reader, index, transformer, out, publisher, logger, metrics, pipeline.WithBatchSize(cfg.BatchSize))

	if cfg.HTTPAddr != "" {
		stop := startStatusServer(cfg, p, logger)
		defer stop()
	}

	stats, err := p.Run(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d notable observations written to %s (%d read, %d matched, %d skipped)\n",
		stats.Written, opts.Output, stats.Read, stats.Matched, stats.Skipped)
	return nil
}

func resolveProfile(name, path string) (dataset.Profile, error) {
	if path != "" {
		return dataset.LoadProfile(path, name)
	}
	p, ok := dataset.Lookup(name)
	if !ok {
		return dataset.Profile{}, fmt.Errorf("unknown dataset %q", name)
	}
	return p, nil
}

// newGeocoder returns the county backfill geocoder, or nil when Mapbox is disabled.
func newGeocoder(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) domain.Geocoder {
	if !cfg.MapboxEnabled {
		logger.Debug("mapbox county backfill disabled")
		return nil
	}
	client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
	logger.Info("mapbox county backfill enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	return mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
}

// startStatusServer serves health, readiness, and metrics for the duration
// of the run. The returned function shuts the server down.
func startStatusServer(cfg *config.Config, p *pipeline.Pipeline, logger *slog.Logger) func() {
	srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
	}
}
