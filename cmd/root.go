// Package cmd wires the CLI commands for the recipeharvest service.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vantran-dev/recipeharvest/internal/app"
	"github.com/vantran-dev/recipeharvest/internal/config"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recipeharvest",
		Short: "Harvests Cookpad recipe listings into a recent-recipe product store.",
		Long: `recipeharvest walks keyword search listings, queues detail pages in a
Postgres-backed job queue, extracts JSON-LD recipe records, and promotes
recently published recipes from staging into the product tables.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML; env vars use the RECIPEHARVEST prefix)")

	cmd.AddCommand(newHarvestCmd())
	cmd.AddCommand(newWorkCmd())
	cmd.AddCommand(newPromoteCmd())
	cmd.AddCommand(newQueueCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadApp builds the service container shared by all subcommands.
func loadApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	a, err := app.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize services: %w", err)
	}
	return a, nil
}

// signalContext returns a context canceled on SIGINT/SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
