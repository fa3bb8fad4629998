package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmehdipour/subhub/internal/app"
	httpSrv "github.com/jmehdipour/subhub/internal/http"
	"github.com/jmehdipour/subhub/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook and admin HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.Log

		a, err := app.Build(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		server := httpSrv.NewServer(cfg, httpSrv.Deps{
			Intake:   a.Intake,
			Sweeper:  a.Sweeper,
			Ledger:   a.Ledger,
			Attempts: a.Attempts,
			Redis:    a.Redis,
			Log:      log.Named("http"),
		})

		errCh := make(chan error, 1)
		go func() {
			log.Info("webhook intake ready", zap.String("mode", a.Intake.Mode()))
			errCh <- server.Start(cfg.HTTP.Addr)
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-sigCh:
			log.Info("signal received, shutting down", zap.String("signal", sig.String()))
		case err := <-errCh:
			if err != nil {
				log.Error("http server exited", zap.Error(err))
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)

		return nil
	},
}
