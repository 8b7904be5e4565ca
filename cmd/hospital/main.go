package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/hospital-core/internal/config"
	"github.com/jwalitptl/hospital-core/internal/repository/postgres"
	"github.com/jwalitptl/hospital-core/pkg/logger"
	"github.com/jwalitptl/hospital-core/pkg/metrics"
)

// app holds what every subcommand shares once the config is loaded.
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
}

func main() {
	var configPath string
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "hospital",
		Short:         "Hospital operations record keeper",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(configPath)
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.yaml")

	rootCmd.AddCommand(migrateCmd(a))
	rootCmd.AddCommand(seedCmd(a))
	rootCmd.AddCommand(workerCmd(a))
	rootCmd.AddCommand(eventsCmd(a))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func (a *app) load(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		Console:    cfg.Log.Console,
	})
	a.registry = prometheus.NewRegistry()
	a.metrics = metrics.NewMetrics(cfg.Ops.Namespace, a.registry)
	return nil
}

func (a *app) openStore() (*postgres.Store, error) {
	return postgres.Open(a.cfg.Database, a.log, a.metrics)
}
