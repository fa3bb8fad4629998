package worker

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmehdipour/subhub/internal/app"
	"github.com/jmehdipour/subhub/internal/kafka"
	"github.com/jmehdipour/subhub/internal/logger"
	"github.com/jmehdipour/subhub/internal/service/intake"
	"github.com/jmehdipour/subhub/internal/worker"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var routerCmd = &cobra.Command{
	Use:   "router",
	Short: "Consume queued webhook events and route them to destinations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		log := logger.Log.Named("router")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := app.Build(ctx, cfg, logger.Log)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		topic := cfg.Kafka.EventsTopic
		if topic == "" {
			topic = intake.EventsKafkaTopic
		}
		groupID := cfg.Kafka.GroupID
		if groupID == "" {
			groupID = "subhub-router"
		}

		consumer := kafka.NewConsumerFromConfig(kafka.Config{
			Brokers:        cfg.Kafka.Brokers,
			Topic:          topic,
			GroupID:        groupID,
			MinBytes:       cfg.Kafka.MinBytes,
			MaxBytes:       cfg.Kafka.MaxBytes,
			CommitInterval: time.Duration(cfg.Kafka.CommitInterval) * time.Millisecond,
		}, log)
		defer consumer.Close()

		w := worker.NewRouterKafka(consumer, a.Dispatcher, log)
		if cfg.Dispatcher.WorkerCount > 0 {
			w.Workers = cfg.Dispatcher.WorkerCount
		}

		log.Info("router started",
			zap.String("topic", topic), zap.String("group", groupID), zap.Int("workers", w.Workers))
		return w.Run(ctx)
	},
}
