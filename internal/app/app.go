// Package app builds the routing pipeline from config for the CLI commands.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmehdipour/subhub/internal/config"
	"github.com/jmehdipour/subhub/internal/db"
	"github.com/jmehdipour/subhub/internal/dispatcher"
	"github.com/jmehdipour/subhub/internal/kafka"
	"github.com/jmehdipour/subhub/internal/natsq"
	"github.com/jmehdipour/subhub/internal/payments"
	"github.com/jmehdipour/subhub/internal/projector"
	"github.com/jmehdipour/subhub/internal/repository"
	"github.com/jmehdipour/subhub/internal/routing"
	"github.com/jmehdipour/subhub/internal/service/intake"
	"github.com/jmehdipour/subhub/internal/service/sweep"
	"github.com/jmehdipour/subhub/internal/util"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// App holds every long-lived connection and service a command may need.
type App struct {
	Config config.Config
	Log    *zap.Logger

	MySQL      *sqlx.DB
	ClickHouse *sqlx.DB // nil when the audit store is unavailable
	Redis      *redis.Client
	Producer   *kafka.Producer

	Billing    payments.Client
	Ledger     repository.DeliveryLedger
	Accounts   *repository.AccountsRepositoryImpl
	Attempts   repository.CHAttemptsRepository // nil without ClickHouse
	Dispatcher *dispatcher.Dispatcher
	Sweeper    *sweep.Sweeper
	Intake     *intake.Service

	closers []func() error
}

// Build connects the stores and transports named in cfg and assembles the
// dispatcher, sweeper and intake on top of them. On error everything opened
// so far is closed.
func Build(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	a := &App{Config: cfg, Log: log}
	built := false
	defer func() {
		if !built {
			_ = a.Close()
		}
	}()

	var err error

	// 1) stores
	if a.MySQL, err = db.OpenMySQL(cfg.MySQL); err != nil {
		return nil, fmt.Errorf("mysql connect: %w", err)
	}
	a.onClose(a.MySQL.Close)

	if a.Redis, err = db.OpenRedis(cfg.Redis); err != nil {
		return nil, fmt.Errorf("redis connect: %w", err)
	}
	a.onClose(a.Redis.Close)

	if strings.TrimSpace(cfg.ClickHouse.DSN) != "" {
		ch, chErr := db.OpenClickHouse(cfg.ClickHouse)
		if chErr != nil {
			log.Warn("clickhouse unavailable, delivery audit disabled", zap.Error(chErr))
		} else {
			a.ClickHouse = ch
			a.onClose(ch.Close)
			a.Attempts = repository.NewCHAttemptsRepository(ch)
		}
	}

	// 2) repositories
	switch cfg.Ledger.Driver {
	case "", "mysql":
		a.Ledger = repository.NewMySQLLedger(a.MySQL)
	case "redis":
		a.Ledger = repository.NewRedisLedger(a.Redis, "")
	default:
		return nil, fmt.Errorf("unknown ledger driver %q", cfg.Ledger.Driver)
	}
	a.Accounts = repository.NewAccountsRepository(a.MySQL)

	// 3) transports
	a.Producer = kafka.NewProducer(kafka.ProducerConfig{Brokers: cfg.Kafka.Brokers})
	a.onClose(a.Producer.Close)

	identityPub, err := a.identityPublisher(ctx)
	if err != nil {
		return nil, err
	}

	// 4) billing provider
	a.Billing = payments.NewStripeClient(cfg.Stripe.APIKey, cfg.Stripe.Timeout, payments.RetryPolicy{
		MaxAttempts: cfg.Stripe.Retry.MaxAttempts,
		MinWait:     cfg.Stripe.Retry.MinWait,
		MaxWait:     cfg.Stripe.Retry.MaxWait,
	}, log.Named("stripe"))

	// 5) services
	adapters := []dispatcher.Adapter{
		dispatcher.NewIdentityAdapter(identityPub, cfg.Identity.Topic, util.New),
	}
	if strings.TrimSpace(cfg.Marketing.URL) != "" {
		adapters = append(adapters, dispatcher.NewMarketingAdapter(dispatcher.MarketingConfig{
			URL:           strings.TrimRight(cfg.Marketing.URL, "/"),
			APIKey:        cfg.Marketing.APIKey,
			TimeoutMs:     cfg.Marketing.TimeoutMs,
			Require2xx:    cfg.Marketing.Require2xx,
			FailThreshold: cfg.Marketing.Breaker.FailThreshold,
			OpenForMs:     cfg.Marketing.Breaker.OpenForMs,
		}))
	} else {
		log.Warn("marketing url not configured, marketing deliveries will fail until set")
	}

	var audit dispatcher.AttemptSink
	if a.Attempts != nil {
		audit = a.Attempts
	}
	a.Dispatcher = dispatcher.NewDispatcher(dispatcher.Config{
		Routes:          routing.DefaultTable(),
		Projector:       projector.New(a.Billing, a.Accounts, log.Named("projector")),
		Ledger:          a.Ledger,
		Adapters:        adapters,
		Audit:           audit,
		DeliveryTimeout: cfg.Dispatcher.DeliveryTimeout,
		Logger:          log.Named("dispatcher"),
	})

	a.Sweeper = sweep.New(a.Billing, a.Ledger, a.Dispatcher, sweep.Config{
		PageSize:      cfg.Sweep.PageSize,
		ReplayPartial: cfg.Sweep.ReplayPartial,
		EventTimeout:  cfg.Sweep.EventTimeout,
	}, log.Named("sweep"))

	mode := cfg.Webhook.Mode
	if mode == "" {
		mode = intake.ModeSync
	}
	if a.Intake, err = intake.New(mode, a.Dispatcher, a.Producer, cfg.Kafka.EventsTopic); err != nil {
		return nil, err
	}
	built = true
	return a, nil
}

func (a *App) identityPublisher(ctx context.Context) (dispatcher.Publisher, error) {
	switch a.Config.Identity.Transport {
	case "", "kafka":
		return a.Producer, nil
	case "nats":
		cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		pub, err := natsq.Connect(cctx, natsq.Config{
			URL:     a.Config.NATS.URL,
			Stream:  a.Config.NATS.Stream,
			Timeout: a.Config.NATS.Timeout,
		}, a.Config.Identity.Topic)
		if err != nil {
			return nil, fmt.Errorf("nats connect: %w", err)
		}
		a.onClose(pub.Close)
		return pub, nil
	default:
		return nil, fmt.Errorf("unknown identity transport %q", a.Config.Identity.Transport)
	}
}

func (a *App) onClose(fn func() error) { a.closers = append(a.closers, fn) }

// Close releases connections in reverse order of opening.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
