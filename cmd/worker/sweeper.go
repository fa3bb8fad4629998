package worker

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmehdipour/subhub/internal/app"
	"github.com/jmehdipour/subhub/internal/logger"
	"github.com/jmehdipour/subhub/internal/worker"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var sweeperCmd = &cobra.Command{
	Use:   "sweeper",
	Short: "Run the reconciliation sweep on a fixed interval",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		log := logger.Log.Named("sweeper")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := app.Build(ctx, cfg, logger.Log)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		p := &worker.PeriodicSweep{
			Sweeper:   a.Sweeper,
			Interval:  cfg.Sweep.Interval,
			HoursBack: cfg.Sweep.HoursBack,
			Log:       log,
		}
		log.Info("sweeper started",
			zap.Duration("interval", p.Interval), zap.Int("hours_back", p.HoursBack))
		return p.Run(ctx)
	},
}
