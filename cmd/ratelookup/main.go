package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zatekoja/ratebenchmark/internal/application/services"
	"github.com/zatekoja/ratebenchmark/internal/bootstrap"
	"github.com/zatekoja/ratebenchmark/internal/infrastructure/observability"
	"github.com/zatekoja/ratebenchmark/pkg/config"
)

// stackFactory builds the lookup pipeline for one command invocation.
type stackFactory func(ctx context.Context, cfg *config.Config) (*bootstrap.RateStack, error)

func main() {
	rootCmd := newRootCmd(func(ctx context.Context, cfg *config.Config) (*bootstrap.RateStack, error) {
		return bootstrap.NewRateStack(ctx, cfg)
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(build stackFactory) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "ratelookup",
		Short:        "Look up Medicare benchmark rates for procedure codes",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newLookupCmd(build))
	return rootCmd
}

func newLookupCmd(build stackFactory) *cobra.Command {
	var (
		region     string
		asJSON     bool
		datasetURL string
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "lookup [codes...]",
		Short: "Print the benchmark reference block for one or more codes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if datasetURL != "" {
				cfg.RateReference.DatasetURL = datasetURL
				if err := cfg.RateReference.Validate(); err != nil {
					return fmt.Errorf("loading config: %w", err)
				}
			}
			observability.InitLoggerWithWriter(cmd.ErrOrStderr(), cfg.OTEL.ServiceName, "development")
			if verbose {
				observability.SetLogLevel("debug")
			} else {
				observability.SetLogLevel("error")
			}

			// Handle signals
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			stack, err := build(ctx, cfg)
			if err != nil {
				return fmt.Errorf("building lookup stack: %w", err)
			}
			defer stack.Close()

			result := stack.Lookup.Lookup(ctx, args, region)
			if result.IsEmpty() {
				fmt.Fprintln(cmd.ErrOrStderr(), "No benchmark data found for the requested codes.")
				return nil
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}

			text, _ := services.FormatRateReference(result)
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}

	cmd.Flags().StringVar(&region, "region", "", "Two-letter state code; national data is used when empty or unavailable")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON keyed by code")
	cmd.Flags().StringVar(&datasetURL, "dataset-url", "", "Override RATE_DATASET_URL")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log fetch activity to stderr")

	return cmd
}
