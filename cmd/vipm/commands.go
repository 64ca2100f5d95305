package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/polkiloo/vipm-fulfillment/internal/app"
	"github.com/polkiloo/vipm-fulfillment/internal/config"
	"github.com/polkiloo/vipm-fulfillment/internal/di"
	"github.com/polkiloo/vipm-fulfillment/internal/events"
	"github.com/polkiloo/vipm-fulfillment/internal/pkg/auth"
	"github.com/polkiloo/vipm-fulfillment/internal/pricesync"
	"github.com/polkiloo/vipm-fulfillment/internal/storage/postgres"
)

var Version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "vipm",
		Short:         "Adobe VIP Marketplace fulfillment service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(serveCmd())
	root.AddCommand(processTransfersCmd())
	root.AddCommand(checkRunningTransfersCmd())
	root.AddCommand(syncPricesCmd())
	root.AddCommand(hashKeyCmd())

	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve [config flags]",
		Short: "Run the HTTP API, the order worker and the job scheduler",
		Long: `Run the long-lived service.

Configuration comes from the environment (and .env). The remaining arguments
are parsed as config flags, for example:
  vipm serve -a :8080 -products PRD-1111-1111,PRD-2222-2222`,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadArgs(args)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			fxApp := fx.New(
				fx.Provide(func() context.Context { return ctx }),
				di.Module(fx.Replace(cfg)),
			)
			return run(ctx, fxApp)
		},
	}
}

func processTransfersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "process-transfers",
		Short: "Start the pending and rescheduled batch migrations once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withFacade(cmd.Context(), func(ctx context.Context, f *app.FulfillmentFacade) error {
				report, err := f.ProcessTransfers(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
}

func checkRunningTransfersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-running-transfers",
		Short: "Poll the running batch migrations once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withFacade(cmd.Context(), func(ctx context.Context, f *app.FulfillmentFacade) error {
				report, err := f.CheckRunningTransfers(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
}

func syncPricesCmd() *cobra.Command {
	var (
		agreements []string
		opts       pricesync.Options
	)

	cmd := &cobra.Command{
		Use:   "sync-prices",
		Short: "Sync agreement prices with the backend",
		Long: `Sync agreement line prices and subscription prices with the licensing backend.

Without --agreements every agreement of the configured products is synced.

Examples:
  vipm sync-prices --agreements AGR-1111-2222-3333 --dry-run
  vipm sync-prices --allow-3yc`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withFacade(cmd.Context(), func(ctx context.Context, f *app.FulfillmentFacade) error {
				report, err := f.SyncPrices(ctx, agreements, opts)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}

	cmd.Flags().StringSliceVar(&agreements, "agreements", nil, "Agreement ids to sync")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Compute prices without updating the marketplace")
	cmd.Flags().BoolVar(&opts.Allow3YC, "allow-3yc", false, "Also sync customers with a three-year commitment")

	return cmd
}

func hashKeyCmd() *cobra.Command {
	var cost int

	cmd := &cobra.Command{
		Use:   "hash-key [key]",
		Short: "Print the bcrypt hash of an operator API key for OPERATOR_API_KEY_HASH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.NewBcryptHasher(cost).Hash(args[0])
			if err != nil {
				return fmt.Errorf("hash key: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
			return err
		},
	}

	cmd.Flags().IntVar(&cost, "cost", 0, "bcrypt cost, 0 for the library default")

	return cmd
}

// withFacade builds the dependency graph without starting the HTTP server or the worker.
func withFacade(ctx context.Context, fn func(context.Context, *app.FulfillmentFacade) error) error {
	cfg, err := config.LoadArgs(nil)
	if err != nil {
		return err
	}

	var (
		facade    *app.FulfillmentFacade
		storage   *postgres.Storage
		publisher events.Publisher
	)
	fxApp := fx.New(
		fx.NopLogger,
		fx.Provide(func() context.Context { return ctx }),
		di.Module(fx.Replace(cfg)),
		fx.Populate(&facade, &storage, &publisher),
	)
	if err := fxApp.Err(); err != nil {
		return err
	}
	defer storage.Close()
	defer func() { _ = publisher.Close() }()

	return fn(ctx, facade)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
