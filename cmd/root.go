package cmd

import (
	"fmt"
	"os"

	"github.com/jmehdipour/subhub/cmd/worker"
	"github.com/jmehdipour/subhub/internal/config"
	"github.com/jmehdipour/subhub/internal/logger"
	"github.com/jmehdipour/subhub/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var (
	cfgPath string
	cfg     config.Config
	rootCmd = &cobra.Command{
		Use:   "subhub",
		Short: "Stripe webhook router and delivery ledger",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger.Init(cfg.Log.Level, cfg.Log.Format)
			metrics.MustRegister(prometheus.DefaultRegisterer)
			return nil
		},
		SilenceUsage: true,
	}
)

func Execute() {
	defer func() { _ = logger.Log.Sync() }()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "path to YAML config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(worker.NewWorkerCmd())
}
