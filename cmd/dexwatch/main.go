package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/raykavin/dexwatch"
	"github.com/raykavin/dexwatch/internal/config"
	"github.com/raykavin/dexwatch/pkg/core"
	"github.com/spf13/cobra"
)

// Command line flags
var (
	configPath string
	settings   = config.New()
)

func main() {
	// Create root command
	rootCmd := &cobra.Command{
		Use:           "dexwatch",
		Short:         "DEX pair watch-list and discovery relay for Telegram",
		Version:       "1.0.0",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Configuration file (default ./dexwatch.yaml when present)")
	rootCmd.PersistentFlags().String("storage.driver", "buntdb", "State storage driver (buntdb or sqlite)")
	rootCmd.PersistentFlags().String("storage.path", config.DefaultStorage, "State storage file")
	rootCmd.PersistentFlags().String("log.level", "info", "Log level")

	// Add commands
	rootCmd.AddCommand(buildRunCmd(), buildStateCmd(), buildLookupCmd())

	// Execute
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Start the relay until interrupted",
		RunE:  runRelay,
	}

	runCmd.Flags().String("metrics.address", "", "Expose Prometheus metrics on this address (e.g. :9090)")
	runCmd.Flags().String("broadcast.recipient", "", "Chat receiving new pair alerts")
	runCmd.Flags().Bool("discovery.enabled", true, "Enable the new pair discovery sweep")

	return runCmd
}

func buildStateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Print the persisted watch lists and seen pairs",
		Args:  cobra.NoArgs,
		RunE:  runState,
	}
}

func buildLookupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <query>",
		Short: "Search the provider and print the best match",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runLookup,
	}
}

// loadConfig binds the command flags, reads the configuration and replaces the default logger
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if err := config.BindFlags(settings, cmd.Flags()); err != nil {
		return nil, err
	}

	cfg, err := config.Load(settings, configPath)
	if err != nil {
		return nil, err
	}

	log, err := config.NewLogger(cfg.Log, os.Stdout)
	if err != nil {
		return nil, err
	}
	dexwatch.DefaultLog = log

	return cfg, nil
}

func runRelay(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	relay, err := dexwatch.NewRelay(&cfg.Settings)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return relay.Run(ctx)
}

func runState(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	return printState(os.Stdout, cfg.Storage)
}

func runLookup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	item, err := lookup(ctx, cfg.Provider, strings.Join(args, " "))
	if errors.Is(err, core.ErrNotFound) {
		fmt.Println("No pair found")
		return nil
	}
	if err != nil {
		return err
	}

	return printItem(os.Stdout, cfg.Provider.SiteURL, item)
}
